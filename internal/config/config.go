package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/semmy-space/kstore/internal/manage"
)

// Config holds the CLI configuration
type Config struct {
	DefaultOutput string `json:"default_output,omitempty"`
	DefaultStore  string `json:"default_store,omitempty"`
	// Paths overrides or adds named directories stores can be relative to.
	Paths map[string]string `json:"paths,omitempty"`
	// Stores are started by every command that needs a store.
	Stores map[string]manage.Definition `json:"stores,omitempty"`

	path string
}

// Load reads config from the XDG path, returns defaults if the file doesn't exist
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path. Save writes back to the same path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{path: path}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.path = path

	return &cfg, nil
}

// Path returns the file the config is saved to
func (c *Config) Path() string {
	if c.path == "" {
		return ConfigPath()
	}
	return c.path
}

// Save writes the config to its path
func (c *Config) Save() error {
	path := c.Path()

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to JSON (not JSON5 for writing - JSON is valid JSON5)
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions; definitions may hold clear-text passwords
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Keys lists the scalar settings Get and Set accept
func (c *Config) Keys() []string {
	var keys []string
	t := reflect.TypeOf(c).Elem()
	for i := 0; i < t.NumField(); i++ {
		if name, ok := scalarKey(t.Field(i)); ok {
			keys = append(keys, name)
		}
	}
	return keys
}

// Get retrieves a config value by key name
func (c *Config) Get(key string) (string, error) {
	v, err := c.field(key)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Set sets a config value by key name and saves
func (c *Config) Set(key, value string) error {
	v, err := c.field(key)
	if err != nil {
		return err
	}
	v.SetString(value)
	return c.Save()
}

// Unset sets a config value to its zero value and saves
func (c *Config) Unset(key string) error {
	return c.Set(key, "")
}

func (c *Config) field(key string) (reflect.Value, error) {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		if name, ok := scalarKey(t.Field(i)); ok && name == key {
			return v.Field(i), nil
		}
	}

	return reflect.Value{}, fmt.Errorf("unknown config key: %s", key)
}

func scalarKey(f reflect.StructField) (string, bool) {
	if !f.IsExported() || f.Type.Kind() != reflect.String {
		return "", false
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	return name, name != ""
}

// SetStore adds or replaces a store definition and saves
func (c *Config) SetStore(name string, def manage.Definition) error {
	if c.Stores == nil {
		c.Stores = make(map[string]manage.Definition)
	}
	c.Stores[name] = def
	return c.Save()
}

// RemoveStore deletes a store definition and saves
func (c *Config) RemoveStore(name string) error {
	if _, ok := c.Stores[name]; !ok {
		return fmt.Errorf("%w: %s", manage.ErrUnknownStore, name)
	}
	delete(c.Stores, name)
	if c.DefaultStore == name {
		c.DefaultStore = ""
	}
	return c.Save()
}

// StoreNames lists the defined stores, sorted
func (c *Config) StoreNames() []string {
	names := make([]string, 0, len(c.Stores))
	for name := range c.Stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetPath defines or moves a named directory and saves
func (c *Config) SetPath(name, dir string) error {
	if c.Paths == nil {
		c.Paths = make(map[string]string)
	}
	c.Paths[name] = dir
	return c.Save()
}

// RemovePath drops a named directory override and saves
func (c *Config) RemovePath(name string) error {
	if _, ok := c.Paths[name]; !ok {
		return fmt.Errorf("no path override named %s", name)
	}
	delete(c.Paths, name)
	return c.Save()
}
