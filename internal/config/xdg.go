package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// ConfigDir returns the XDG-compliant config directory for kstore
// Typically ~/.config/kstore/ on Linux
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "kstore")
}

// ConfigPath returns the full path to the config file
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json5")
}

// DataDir returns the XDG-compliant data directory for kstore
// Typically ~/.local/share/kstore/ on Linux; the default directory stores
// are relative to and the home of the fallback password file
func DataDir() string {
	return filepath.Join(xdg.DataHome, "kstore")
}
