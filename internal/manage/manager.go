package manage

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/semmy-space/kstore/internal/backend"
	"github.com/semmy-space/kstore/internal/keystore"
	"github.com/semmy-space/kstore/internal/paths"
	"github.com/semmy-space/kstore/internal/secrets"
)

var (
	ErrUnknownStore   = errors.New("no such key store")
	ErrStoreExists    = errors.New("key store already exists")
	ErrNotStarted     = errors.New("key store is not started")
	ErrInvalidRequest = errors.New("invalid request")
)

// Env holds what every service is built from.
type Env struct {
	Paths     *paths.Registry
	Codecs    keystore.CodecSource
	Passwords *secrets.Resolver
	Logger    *slog.Logger
	Now       func() time.Time

	backend *backend.File
}

// Request is one administrative operation. Which fields are used depends
// on Op.
type Request struct {
	Op    Operation
	Store string
	Alias string

	// Definition is used by OpCreate and OpReconfigure.
	Definition *Definition
	// Entry is used by OpPutAlias.
	Entry *keystore.Entry
	// Persist saves the store after an alias mutation. If the save fails
	// the mutation is undone.
	Persist bool
	// DryRun makes OpReload verify the file loads, then restore the
	// previous content.
	DryRun bool
}

type handler func(m *Manager, req Request) (any, error)

var handlers = map[Operation]handler{
	OpCreate:      (*Manager).create,
	OpRemove:      (*Manager).remove,
	OpReload:      (*Manager).reload,
	OpSave:        (*Manager).save,
	OpReadAlias:   (*Manager).readAlias,
	OpListAliases: (*Manager).listAliases,
	OpDeleteAlias: (*Manager).deleteAlias,
	OpPutAlias:    (*Manager).putAlias,
	OpReconfigure: (*Manager).reconfigure,
	OpState:       (*Manager).state,
}

// Manager owns the named store services.
type Manager struct {
	env *Env
	log *slog.Logger

	mu       sync.RWMutex
	services map[string]*Service
}

// NewManager returns a manager with no stores.
func NewManager(env Env) *Manager {
	if env.Paths == nil {
		env.Paths = paths.NewDefaultRegistry()
	}
	if env.Passwords == nil {
		env.Passwords = secrets.NewResolver(nil)
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if env.Now == nil {
		env.Now = time.Now
	}
	env.backend = backend.New(env.Paths)
	return &Manager{env: &env, log: env.Logger, services: make(map[string]*Service)}
}

// Execute runs req and returns its operation-specific result.
func (m *Manager) Execute(req Request) (any, error) {
	h, ok := handlers[req.Op]
	if !ok {
		return nil, fmt.Errorf("%w: unknown operation %s", ErrInvalidRequest, req.Op)
	}
	if req.Op != OpState && req.Store == "" {
		return nil, fmt.Errorf("%w: %s needs a store name", ErrInvalidRequest, req.Op)
	}
	m.log.Debug("executing operation", slog.String("op", req.Op.String()), slog.String("store", req.Store))
	return h(m, req)
}

// Service returns the named service.
func (m *Manager) Service(name string) (*Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, name)
	}
	return svc, nil
}

// Names lists the stores, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.namesLocked()
}

// Close stops every service.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, svc := range m.services {
		svc.Stop()
	}
}

// Relocate moves the named directory and reports whether any store must
// be reloaded to pick it up. With restartAllowed, dependent stores are
// restarted at the new location instead.
func (m *Manager) Relocate(name, dir string, restartAllowed bool) (bool, error) {
	reload := m.env.Paths.Update(name, dir, restartAllowed)
	if !restartAllowed {
		return reload, nil
	}
	var errs []error
	for _, svc := range m.dependents(name) {
		if err := svc.Start(); err != nil {
			errs = append(errs, fmt.Errorf("restart %s: %w", svc.Name(), err))
		}
	}
	return reload, errors.Join(errs...)
}

// RemovePath undefines the named directory. With restartAllowed, stores
// relative to it are stopped.
func (m *Manager) RemovePath(name string, restartAllowed bool) bool {
	reload := m.env.Paths.Remove(name, restartAllowed)
	if restartAllowed {
		for _, svc := range m.dependents(name) {
			svc.Stop()
		}
	}
	return reload
}

func (m *Manager) dependents(pathName string) []*Service {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Service
	for _, name := range m.namesLocked() {
		svc := m.services[name]
		if svc.Definition().RelativeTo == pathName {
			out = append(out, svc)
		}
	}
	return out
}

func (m *Manager) namesLocked() []string {
	names := make([]string, 0, len(m.services))
	for name := range m.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) store(name string) (*keystore.Store, error) {
	svc, err := m.Service(name)
	if err != nil {
		return nil, err
	}
	return svc.Store()
}

func (m *Manager) create(req Request) (any, error) {
	if req.Definition == nil {
		return nil, fmt.Errorf("%w: create needs a definition", ErrInvalidRequest)
	}
	def := req.Definition.WithDefaults()
	if err := def.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.services[req.Store]; ok {
		return nil, fmt.Errorf("%w: %s", ErrStoreExists, req.Store)
	}
	svc := newService(req.Store, def, m.env)
	if err := svc.Start(); err != nil {
		return nil, err
	}
	m.services[req.Store] = svc
	return svc.State(), nil
}

func (m *Manager) remove(req Request) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	svc, ok := m.services[req.Store]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, req.Store)
	}
	svc.Stop()
	delete(m.services, req.Store)
	return nil, nil
}

// reload replaces the running store with a fresh one. A dry run loads the
// file into the running store and reverts straight away.
func (m *Manager) reload(req Request) (any, error) {
	svc, err := m.Service(req.Store)
	if err != nil {
		return nil, err
	}
	if !req.DryRun {
		if err := svc.Start(); err != nil {
			return nil, err
		}
		return svc.State(), nil
	}

	store, err := svc.Store()
	if err != nil {
		return nil, err
	}
	key, err := store.Load()
	if err != nil {
		return nil, err
	}
	loaded := store.Snapshot().Len()
	if err := store.Revert(key); err != nil {
		return nil, err
	}
	st := svc.State()
	st.Entries = loaded
	return st, nil
}

func (m *Manager) save(req Request) (any, error) {
	store, err := m.store(req.Store)
	if err != nil {
		return nil, err
	}
	return nil, store.Save()
}

func (m *Manager) readAlias(req Request) (any, error) {
	store, err := m.store(req.Store)
	if err != nil {
		return nil, err
	}
	return store.Attributes(req.Alias)
}

func (m *Manager) listAliases(req Request) (any, error) {
	store, err := m.store(req.Store)
	if err != nil {
		return nil, err
	}
	return store.Aliases(), nil
}

func (m *Manager) deleteAlias(req Request) (any, error) {
	return nil, m.mutate(req, func(s *keystore.Store) error { return s.Delete(req.Alias) })
}

func (m *Manager) putAlias(req Request) (any, error) {
	if req.Entry == nil {
		return nil, fmt.Errorf("%w: put-alias needs an entry", ErrInvalidRequest)
	}
	e := req.Entry.Clone()
	if req.Alias != "" {
		e.Alias = req.Alias
	}
	return nil, m.mutate(req, func(s *keystore.Store) error { return s.Put(e) })
}

// mutate applies fn and, when asked, saves. A failed save reverts fn.
func (m *Manager) mutate(req Request, fn func(*keystore.Store) error) error {
	svc, err := m.Service(req.Store)
	if err != nil {
		return err
	}
	svc.mutation.Lock()
	defer svc.mutation.Unlock()

	store, err := svc.Store()
	if err != nil {
		return err
	}
	key := store.Capture()
	if err := fn(store); err != nil {
		return err
	}
	if !req.Persist {
		return nil
	}
	if err := store.Save(); err != nil {
		if rerr := store.Revert(key); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

// reconfigure applies a new definition. Changes to what the store is
// built from start a new store, which replaces the running one only if
// it starts.
func (m *Manager) reconfigure(req Request) (any, error) {
	if req.Definition == nil {
		return nil, fmt.Errorf("%w: reconfigure needs a definition", ErrInvalidRequest)
	}
	def := req.Definition.WithDefaults()
	if err := def.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.services[req.Store]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, req.Store)
	}
	if !old.Definition().rebuildRequired(def) {
		old.update(def)
		return old.State(), nil
	}

	svc := newService(req.Store, def, m.env)
	if err := svc.Start(); err != nil {
		return nil, err
	}
	old.Stop()
	m.services[req.Store] = svc
	m.log.Info("store rebuilt", slog.String("store", req.Store))
	return svc.State(), nil
}

// state reports one store, or every store when none is named.
func (m *Manager) state(req Request) (any, error) {
	if req.Store != "" {
		svc, err := m.Service(req.Store)
		if err != nil {
			return nil, err
		}
		return svc.State(), nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]State, 0, len(m.services))
	for _, name := range m.namesLocked() {
		out = append(out, m.services[name].State())
	}
	return out, nil
}
