package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Password reference schemes. A reference without a known scheme is the
// password itself.
const (
	SchemeKeyring = "keyring"
	SchemeEnv     = "env"
	SchemeFile    = "file"
	SchemePass    = "pass"
)

// ErrUnresolved is returned when a password reference names something
// that does not exist.
var ErrUnresolved = errors.New("unable to resolve password reference")

// Resolver turns password references from store definitions into
// passwords. The password store is only opened when a keyring reference
// is resolved.
type Resolver struct {
	open   func() (Store, error)
	getenv func(string) (string, bool)

	once  sync.Once
	store Store
	err   error
}

// NewResolver returns a Resolver that opens its Store with open.
func NewResolver(open func() (Store, error)) *Resolver {
	return &Resolver{open: open, getenv: os.LookupEnv}
}

// Store returns the password store, opening it on first use.
func (r *Resolver) Store() (Store, error) {
	r.once.Do(func() {
		if r.open == nil {
			r.err = errors.New("no password store configured")
			return
		}
		r.store, r.err = r.open()
	})
	return r.store, r.err
}

// Resolve returns the password ref points at. An empty reference
// resolves to no password.
func (r *Resolver) Resolve(ref string) ([]byte, error) {
	if ref == "" {
		return nil, nil
	}
	scheme, name, ok := strings.Cut(ref, ":")
	if !ok {
		return []byte(ref), nil
	}

	switch scheme {
	case SchemePass:
		return []byte(name), nil
	case SchemeEnv:
		v, ok := r.getenv(name)
		if !ok {
			return nil, fmt.Errorf("%w: environment variable %s is not set", ErrUnresolved, name)
		}
		return []byte(v), nil
	case SchemeFile:
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnresolved, err)
		}
		return []byte(strings.TrimRight(string(data), "\r\n")), nil
	case SchemeKeyring:
		store, err := r.Store()
		if err != nil {
			return nil, err
		}
		v, err := store.Get(name)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: no stored password %q", ErrUnresolved, name)
		}
		if err != nil {
			return nil, err
		}
		return []byte(v), nil
	default:
		return []byte(ref), nil
	}
}

// KeyringRef returns the reference for a password stored under name.
func KeyringRef(name string) string {
	return SchemeKeyring + ":" + name
}
