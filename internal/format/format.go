// Package format implements the on-disk container formats of a key store.
//
// A container is a small JSON envelope carrying the key derivation
// parameters and an AEAD-sealed CBOR payload with the entries.
package format

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/semmy-space/kstore/internal/keystore"
)

const (
	// DefaultProvider is used when a store definition names no provider.
	DefaultProvider = "builtin"

	TypeGCM    = "kstore-gcm"
	TypeChaCha = "kstore-chacha"
)

var (
	// ErrWrongPassword is returned when the payload fails authentication,
	// either because the password is wrong or the file was altered.
	ErrWrongPassword = errors.New("wrong password or tampered key store")

	// ErrUnsupported is returned for an unknown provider, type or
	// envelope version.
	ErrUnsupported = errors.New("unsupported key store format")

	// ErrCorrupt is returned when the container cannot be parsed.
	ErrCorrupt = errors.New("corrupt key store")
)

// Registry maps provider names to the codecs they supply.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]map[string]keystore.Codec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]map[string]keystore.Codec)}
}

// NewDefaultRegistry returns a registry holding the builtin provider with
// the default key derivation cost.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterBuiltin(DefaultKDF)
	return r
}

// RegisterBuiltin registers the builtin codecs using kdf for new files.
func (r *Registry) RegisterBuiltin(kdf KDFParams) {
	for _, typ := range []string{TypeGCM, TypeChaCha} {
		c, _ := NewCodec(typ, kdf)
		r.Register(DefaultProvider, c)
	}
}

// Register adds c under provider, replacing a codec of the same type.
func (r *Registry) Register(provider string, c keystore.Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	types, ok := r.providers[provider]
	if !ok {
		types = make(map[string]keystore.Codec)
		r.providers[provider] = types
	}
	types[c.Type()] = c
}

// Codec implements keystore.CodecSource.
func (r *Registry) Codec(provider, typ string) (keystore.Codec, error) {
	if provider == "" {
		provider = DefaultProvider
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	types, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q", ErrUnsupported, provider)
	}
	c, ok := types[typ]
	if !ok {
		return nil, fmt.Errorf("%w: type %q from provider %q", ErrUnsupported, typ, provider)
	}
	return c, nil
}

// Providers lists registered providers, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for p := range r.providers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Types lists the types a provider supplies, sorted.
func (r *Registry) Types(provider string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers[provider]))
	for t := range r.providers[provider] {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
