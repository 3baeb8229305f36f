package manage

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/semmy-space/kstore/internal/certinfo"
	"github.com/semmy-space/kstore/internal/keystore"
	"github.com/semmy-space/kstore/internal/paths"
)

// Service owns the running store of one definition.
type Service struct {
	name string
	env  *Env

	// mutation is held from capture to save of an alias mutation.
	mutation sync.Mutex

	mu     sync.Mutex
	def    Definition
	store  *keystore.Store
	handle paths.Handle

	reloadRequired atomic.Bool
}

func newService(name string, def Definition, env *Env) *Service {
	return &Service{name: name, def: def, env: env}
}

// Name returns the service's store name.
func (s *Service) Name() string { return s.name }

// Definition returns the definition the service runs with.
func (s *Service) Definition() Definition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def
}

// Start opens the store. Starting a running service opens a fresh store
// and swaps it in only on success.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Service) startLocked() error {
	password, err := s.env.Passwords.Resolve(s.def.Password)
	if err != nil {
		return fmt.Errorf("%w: %w", keystore.ErrInitialization, err)
	}
	store, err := keystore.Open(keystore.Options{
		Provider:   s.def.Provider,
		Type:       s.def.Type,
		Password:   password,
		Path:       s.def.Path,
		RelativeTo: s.def.RelativeTo,
		Required:   s.def.Required,
	}, keystore.Deps{
		Codecs:  s.env.Codecs,
		Backend: s.env.backend,
		Logger:  s.env.Logger.With(slog.String("store", s.name)),
		Now:     s.env.Now,
	})
	if err != nil {
		return err
	}

	s.handle.Remove()
	s.handle = paths.Handle{}
	if s.def.Watch && s.def.RelativeTo != "" {
		s.handle = s.env.backend.Subscribe(s.def.RelativeTo, s.onRelocated, s.onRelocated)
	}
	s.store = store
	s.reloadRequired.Store(false)
	s.env.Logger.Debug("store started", slog.String("store", s.name), slog.String("location", store.Location()))
	return nil
}

// onRelocated runs when the directory the store is relative to changes.
// The manager restarts dependents itself when allowed; otherwise the
// running store keeps its old location until reloaded.
func (s *Service) onRelocated(ev *paths.Event) {
	if ev.RestartAllowed() {
		return
	}
	ev.ReloadRequired()
	s.reloadRequired.Store(true)
	s.env.Logger.Info("store requires reload",
		slog.String("store", s.name),
		slog.String("path", ev.Name),
		slog.String("event", ev.Kind.String()))
}

// Stop closes the store. It is safe to stop a stopped service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle.Remove()
	s.handle = paths.Handle{}
	s.store = nil
}

// Store returns the running store.
func (s *Service) Store() (*keystore.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotStarted, s.name)
	}
	return s.store, nil
}

// ReloadRequired reports whether a relocation happened that the running
// store has not picked up.
func (s *Service) ReloadRequired() bool { return s.reloadRequired.Load() }

// update applies attributes that do not need a new store.
func (s *Service) update(def Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	watchChanged := s.def.Watch != def.Watch
	s.def = def
	if !watchChanged || s.store == nil {
		return
	}
	s.handle.Remove()
	s.handle = paths.Handle{}
	if def.Watch && def.RelativeTo != "" {
		s.handle = s.env.backend.Subscribe(def.RelativeTo, s.onRelocated, s.onRelocated)
	}
}

// State describes a service for reporting.
type State struct {
	Name           string     `json:"name" yaml:"name"`
	Definition     Definition `json:"definition" yaml:"definition"`
	Started        bool       `json:"started" yaml:"started"`
	Location       string     `json:"location,omitempty" yaml:"location,omitempty"`
	Version        uint64     `json:"version" yaml:"version"`
	Synced         string     `json:"synced,omitempty" yaml:"synced,omitempty"`
	Entries        int        `json:"entries" yaml:"entries"`
	ReloadRequired bool       `json:"reload_required" yaml:"reload_required"`
}

// State returns the service's current state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Name:           s.name,
		Definition:     s.def.Redacted(),
		ReloadRequired: s.reloadRequired.Load(),
	}
	if s.store != nil {
		snap := s.store.Snapshot()
		st.Started = true
		st.Location = s.store.Location()
		st.Version = snap.Version()
		st.Synced = certinfo.FormatTime(snap.Synced())
		st.Entries = snap.Len()
	}
	return st
}
