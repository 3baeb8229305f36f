// Package paths maintains named directories that store files may be
// resolved against, and notifies subscribers when a directory is
// relocated or removed.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/adrg/xdg"
)

// Well-known directory names.
const (
	DataDir   = "kstore.data.dir"
	ConfigDir = "kstore.config.dir"
	HomeDir   = "user.home"
)

// ErrUnknownPath is returned when resolving against an undefined name.
var ErrUnknownPath = errors.New("unknown path name")

// EventKind identifies what happened to a named directory.
type EventKind int

const (
	Updated EventKind = iota + 1
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is delivered to subscribers of a named directory.
type Event struct {
	Kind EventKind
	Name string
	Dir  string

	restartAllowed bool
	reloadRequired bool
}

// RestartAllowed reports whether the owner of affected services will
// restart them itself.
func (e *Event) RestartAllowed() bool { return e.restartAllowed }

// ReloadRequired tells the party that changed the directory that a
// subscriber cannot pick up the change without a full reload.
func (e *Event) ReloadRequired() { e.reloadRequired = true }

// Callback receives relocation events on the goroutine that triggered them.
type Callback func(ev *Event)

type subscription struct {
	fn    Callback
	kinds map[EventKind]bool
}

// Registry maps names to directories. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	dirs   map[string]string
	subs   map[string]map[uint64]subscription
	nextID uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		dirs: make(map[string]string),
		subs: make(map[string]map[uint64]subscription),
	}
}

// NewDefaultRegistry returns a registry with the XDG-based default names.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Define(DataDir, filepath.Join(xdg.DataHome, "kstore"))
	r.Define(ConfigDir, filepath.Join(xdg.ConfigHome, "kstore"))
	if home, err := os.UserHomeDir(); err == nil {
		r.Define(HomeDir, home)
	}
	return r
}

// Define sets a name without notifying subscribers. Used while building
// the initial registry.
func (r *Registry) Define(name, dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs[name] = filepath.Clean(dir)
}

// Lookup returns the directory for name.
func (r *Registry) Lookup(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dir, ok := r.dirs[name]
	return dir, ok
}

// Names returns all defined names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.dirs))
	for name := range r.dirs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the absolute location of path. Absolute paths are
// returned as-is; relative paths are joined to the directory named by
// relativeTo, or to the working directory when relativeTo is empty.
func (r *Registry) Resolve(path, relativeTo string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if relativeTo == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %q: %w", path, err)
		}
		return abs, nil
	}

	dir, ok := r.Lookup(relativeTo)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPath, relativeTo)
	}
	return filepath.Join(dir, path), nil
}

// Handle cancels a subscription.
type Handle struct {
	r    *Registry
	name string
	id   uint64
}

// Remove stops delivery to the subscription. Safe to call more than once
// and on the zero Handle.
func (h Handle) Remove() {
	if h.r == nil {
		return
	}
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	delete(h.r.subs[h.name], h.id)
}

// Subscribe registers fn for events on name. With no kinds given, fn
// receives every kind.
func (r *Registry) Subscribe(name string, fn Callback, kinds ...EventKind) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := subscription{fn: fn}
	if len(kinds) > 0 {
		sub.kinds = make(map[EventKind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	r.nextID++
	if r.subs[name] == nil {
		r.subs[name] = make(map[uint64]subscription)
	}
	r.subs[name][r.nextID] = sub
	return Handle{r: r, name: name, id: r.nextID}
}

// Update relocates name to dir and notifies subscribers. It reports
// whether any subscriber requires a reload.
func (r *Registry) Update(name, dir string, restartAllowed bool) bool {
	r.mu.Lock()
	r.dirs[name] = filepath.Clean(dir)
	r.mu.Unlock()

	return r.notify(&Event{Kind: Updated, Name: name, Dir: filepath.Clean(dir), restartAllowed: restartAllowed})
}

// Remove undefines name and notifies subscribers. It reports whether any
// subscriber requires a reload.
func (r *Registry) Remove(name string, restartAllowed bool) bool {
	r.mu.Lock()
	_, ok := r.dirs[name]
	delete(r.dirs, name)
	r.mu.Unlock()
	if !ok {
		return false
	}

	return r.notify(&Event{Kind: Removed, Name: name, restartAllowed: restartAllowed})
}

// notify runs callbacks outside the lock so they may call back into the
// registry.
func (r *Registry) notify(ev *Event) bool {
	r.mu.RLock()
	ids := make([]uint64, 0, len(r.subs[ev.Name]))
	for id := range r.subs[ev.Name] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]Callback, 0, len(ids))
	for _, id := range ids {
		sub := r.subs[ev.Name][id]
		if sub.kinds == nil || sub.kinds[ev.Kind] {
			fns = append(fns, sub.fn)
		}
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
	return ev.reloadRequired
}
