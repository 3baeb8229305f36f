// Package secrets keeps store passwords out of configuration files. A
// store definition names its password by reference and the reference is
// resolved against the OS keyring, the environment, a file, or an
// encrypted fallback store.
package secrets

import "errors"

// Store is the interface for password storage.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	List() ([]string, error)
}

// ErrNotFound is returned when a key is not found in the store
var ErrNotFound = errors.New("key not found")

// ServiceName is the service identifier for keyring storage
const ServiceName = "kstore"
