// Package keystore holds a versioned, file-backed collection of secret
// entries. Readers always see one fully committed snapshot; every change
// (reload, revert, save, alias mutation) publishes a new snapshot by
// swapping a single pointer.
package keystore

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Codec is the serialize/parse contract of a store container format.
type Codec interface {
	Type() string
	Encode(entries []Entry, password []byte) ([]byte, error)
	Decode(data, password []byte) ([]Entry, error)
}

// CodecSource looks up a codec by provider and type. An empty provider
// selects the default.
type CodecSource interface {
	Codec(provider, typ string) (Codec, error)
}

// Backend performs the file I/O for a store. Read returns nil, nil for a
// missing file; Write must not leave a partial file on failure.
type Backend interface {
	Resolve(path, relativeTo string) (string, error)
	Read(location string) ([]byte, error)
	Write(location string, data []byte) error
}

// Options configure a store.
type Options struct {
	Provider string
	Type     string
	Password []byte

	// Path is empty for a memory-only store.
	Path       string
	RelativeTo string
	// Required makes a missing file an error instead of an empty store.
	Required bool
}

// Deps are the collaborators a store is built with.
type Deps struct {
	Codecs  CodecSource
	Backend Backend
	Logger  *slog.Logger
	Now     func() time.Time
}

// Snapshot is an immutable committed version of a store.
type Snapshot struct {
	version uint64
	synced  time.Time
	entries map[string]Entry
}

// Version is the monotonically increasing version token.
func (s *Snapshot) Version() uint64 { return s.version }

// Synced is the time of the last successful load or save.
func (s *Snapshot) Synced() time.Time { return s.synced }

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.entries) }

// Aliases returns all aliases, sorted.
func (s *Snapshot) Aliases() []string {
	aliases := make([]string, 0, len(s.entries))
	for alias := range s.entries {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// Get returns a copy of the entry for alias.
func (s *Snapshot) Get(alias string) (Entry, error) {
	e, ok := s.entries[alias]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, alias)
	}
	return e.Clone(), nil
}

// Classify returns the kind of alias, or Other when it does not exist.
func (s *Snapshot) Classify(alias string) Kind {
	e, ok := s.entries[alias]
	if !ok {
		return Other
	}
	return e.Kind()
}

func (s *Snapshot) list() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, alias := range s.Aliases() {
		out = append(out, s.entries[alias])
	}
	return out
}

// LoadKey captures a committed snapshot so it can be restored with Revert.
type LoadKey struct {
	store uuid.UUID
	snap  *Snapshot
}

// Version is the version the key captured.
func (k *LoadKey) Version() uint64 { return k.snap.version }

// Store is an atomically reloadable, revertible secret store. Reads are
// lock-free; mutations are serialized per store.
type Store struct {
	id       uuid.UUID
	codec    Codec
	backend  Backend
	password []byte
	location string
	required bool
	log      *slog.Logger
	now      func() time.Time

	mu      sync.Mutex // serializes mutations
	version uint64     // guarded by mu
	current atomic.Pointer[Snapshot]
}

// Open initializes a store and loads it as version 0.
func Open(opts Options, deps Deps) (*Store, error) {
	if opts.Type == "" {
		return nil, fmt.Errorf("%w: store type is required", ErrInitialization)
	}
	if deps.Codecs == nil {
		return nil, fmt.Errorf("%w: no codec source", ErrInitialization)
	}
	codec, err := deps.Codecs.Codec(opts.Provider, opts.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	s := &Store{
		id:       uuid.New(),
		codec:    codec,
		backend:  deps.Backend,
		password: append([]byte{}, opts.Password...),
		required: opts.Required,
		log:      deps.Logger,
		now:      deps.Now,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	if opts.Path != "" {
		if s.backend == nil {
			return nil, fmt.Errorf("%w: no backend for path %s", ErrInitialization, opts.Path)
		}
		s.location, err = s.backend.Resolve(opts.Path, opts.RelativeTo)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
		}
	}

	synced := s.now()
	entries, err := s.read()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	s.current.Store(&Snapshot{version: 0, synced: synced, entries: entries})

	s.log.Debug("key store initialised",
		slog.String("type", codec.Type()),
		slog.String("location", s.location),
		slog.Int("entries", len(entries)))
	return s, nil
}

// ID identifies this store instance.
func (s *Store) ID() uuid.UUID { return s.id }

// Location is the resolved file location, empty when memory-only.
func (s *Store) Location() string { return s.location }

// Type is the container format type.
func (s *Store) Type() string { return s.codec.Type() }

// Snapshot returns the committed snapshot.
func (s *Store) Snapshot() *Snapshot { return s.current.Load() }

// Load captures the committed snapshot in a LoadKey, then replaces the
// store with a fresh read of its file. On failure nothing is published.
func (s *Store) Load() (*LoadKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := &LoadKey{store: s.id, snap: s.current.Load()}
	synced := s.now()
	entries, err := s.read()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.publish(entries, synced)
	return key, nil
}

// Capture returns a LoadKey for the committed snapshot without reading
// the file, so a following mutation can be undone with Revert.
func (s *Store) Capture() *LoadKey {
	return &LoadKey{store: s.id, snap: s.current.Load()}
}

// Reload loads the store from its file, discarding any unsaved changes.
func (s *Store) Reload() error {
	_, err := s.Load()
	return err
}

// Revert restores exactly the entries and sync time captured in key.
func (s *Store) Revert(key *LoadKey) error {
	if key == nil || key.store != s.id {
		return ErrForeignLoadKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(key.snap.entries, key.snap.synced)
	return nil
}

// Save writes the committed snapshot to the store's file.
func (s *Store) Save() error {
	if s.location == "" {
		return ErrNoBackingFile
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.current.Load()
	data, err := s.codec.Encode(snap.list(), s.password)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := s.backend.Write(s.location, data); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.publish(snap.entries, s.now())
	return nil
}

// publish must be called with mu held. entries must not be modified
// afterwards.
func (s *Store) publish(entries map[string]Entry, synced time.Time) {
	s.version++
	s.current.Store(&Snapshot{version: s.version, synced: synced, entries: entries})
}

// read returns the entries stored at the store's location. A memory-only
// store reads as empty.
func (s *Store) read() (map[string]Entry, error) {
	entries := make(map[string]Entry)
	if s.location == "" {
		return entries, nil
	}

	data, err := s.backend.Read(s.location)
	if err != nil {
		return nil, err
	}
	if data == nil {
		if s.required {
			return nil, fmt.Errorf("%w: %s", errRequiredMissing, s.location)
		}
		return entries, nil
	}

	decoded, err := s.codec.Decode(data, s.password)
	if err != nil {
		return nil, err
	}
	for _, e := range decoded {
		if _, dup := entries[e.Alias]; dup {
			return nil, fmt.Errorf("duplicate alias %q in %s", e.Alias, s.location)
		}
		entries[e.Alias] = e
	}
	return entries, nil
}
