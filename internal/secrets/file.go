package secrets

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/semmy-space/kstore/internal/backend"
	"github.com/semmy-space/kstore/internal/format"
	"github.com/semmy-space/kstore/internal/keystore"
	"github.com/semmy-space/kstore/internal/paths"
)

// FileStoreName is the file, relative to the data directory, that holds
// fallback passwords.
const FileStoreName = "passwords.ks"

// FileStore implements the Store interface on top of an encrypted key
// store file of password entries. It is the fallback for environments
// where the OS keyring is unavailable (WSL, headless, Docker).
type FileStore struct {
	store *keystore.Store
}

// NewFileStore opens the password file under dataDir. If password is
// empty, a machine-specific default is used (less secure, prints warning).
func NewFileStore(dataDir, password string) (*FileStore, error) {
	if password == "" {
		password = machinePassword()
		warnOnce(dataDir, "WARNING: Using machine-specific encryption key. For better security, set a password via KSTORE_STORE_PASSWORD env var.")
	}

	reg := paths.NewRegistry()
	reg.Define(paths.DataDir, dataDir)
	s, err := keystore.Open(keystore.Options{
		Type:       format.TypeChaCha,
		Password:   []byte(password),
		Path:       FileStoreName,
		RelativeTo: paths.DataDir,
	}, keystore.Deps{Codecs: format.NewDefaultRegistry(), Backend: backend.New(reg)})
	if err != nil {
		return nil, fmt.Errorf("failed to open password file: %w", err)
	}
	return &FileStore{store: s}, nil
}

func machinePassword() string {
	hostname, _ := os.Hostname()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME") // Windows fallback
	}
	sum := sha256.Sum256([]byte(username + "@" + hostname))
	return hex.EncodeToString(sum[:])
}

// Get retrieves a password, picking up changes made by other processes.
func (s *FileStore) Get(key string) (string, error) {
	if err := s.store.Reload(); err != nil {
		return "", err
	}
	e, err := s.store.Get(key)
	if errors.Is(err, keystore.ErrNotFound) || (err == nil && e.Password == nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(e.Password), nil
}

// Set stores a password and writes the file.
func (s *FileStore) Set(key, value string) error {
	if err := s.store.Reload(); err != nil {
		return err
	}
	if err := s.store.Put(keystore.Entry{Alias: key, Password: []byte(value)}); err != nil {
		return err
	}
	return s.store.Save()
}

// Delete removes a password and writes the file.
func (s *FileStore) Delete(key string) error {
	if err := s.store.Reload(); err != nil {
		return err
	}
	if err := s.store.Delete(key); err != nil {
		if errors.Is(err, keystore.ErrKeyStoreOperation) {
			return ErrNotFound
		}
		return err
	}
	return s.store.Save()
}

// List returns all keys in the password file, sorted.
func (s *FileStore) List() ([]string, error) {
	if err := s.store.Reload(); err != nil {
		return nil, err
	}
	return s.store.Aliases(), nil
}
