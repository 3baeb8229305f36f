// Package backend resolves store file locations and performs the raw byte
// I/O for them.
package backend

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"

	"github.com/semmy-space/kstore/internal/paths"
)

// Paths is the named-directory service a File resolves against.
type Paths interface {
	Resolve(path, relativeTo string) (string, error)
	Subscribe(name string, fn paths.Callback, kinds ...paths.EventKind) paths.Handle
}

// rename is swapped in tests to simulate a failed replace.
var rename = os.Rename

// File reads and writes whole store files. Writes go to a temp file in the
// target directory that replaces the target only once fully synced, so a
// failed write never leaves a partial file behind. A sibling lock file
// serializes access across processes.
type File struct {
	paths Paths
	mode  os.FileMode
}

// New returns a File resolving names through p.
func New(p Paths) *File {
	return &File{paths: p, mode: 0o600}
}

// Resolve returns the absolute location of path.
func (f *File) Resolve(path, relativeTo string) (string, error) {
	return f.paths.Resolve(path, relativeTo)
}

// Read returns the content at location, or nil with no error when the
// file does not exist.
func (f *File) Read(location string) ([]byte, error) {
	if _, err := os.Stat(filepath.Dir(location)); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	lock := flock.New(lockPath(location))
	switch err := lock.RLock(); {
	case err == nil:
		defer lock.Unlock()
	case lockUnavailable(err):
		// Unwritable directory: read without the lock.
	default:
		return nil, fmt.Errorf("failed to acquire read lock: %w", err)
	}

	data, err := os.ReadFile(location)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", location, err)
	}
	return data, nil
}

// Write replaces the content at location with data.
func (f *File) Write(location string, data []byte) error {
	dir := filepath.Dir(location)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	lock := flock.New(lockPath(location))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, filepath.Base(location)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	// Removing after a successful rename is a no-op.
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Chmod(f.mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := rename(tmpName, location); err != nil {
		return fmt.Errorf("failed to replace %s: %w", location, err)
	}
	syncDir(dir)
	return nil
}

// Subscribe forwards relocation events for relativeTo to the matching
// handler. Either handler may be nil.
func (f *File) Subscribe(relativeTo string, onRemoved, onUpdated paths.Callback) paths.Handle {
	return f.paths.Subscribe(relativeTo, func(ev *paths.Event) {
		switch {
		case ev.Kind == paths.Removed && onRemoved != nil:
			onRemoved(ev)
		case ev.Kind == paths.Updated && onUpdated != nil:
			onUpdated(ev)
		}
	}, paths.Removed, paths.Updated)
}

func lockPath(location string) string {
	return location + ".lock"
}

// syncDir makes the rename durable. Not every platform supports syncing a
// directory, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// lockUnavailable reports whether the lock file could not be created
// because the directory is not writable.
func lockUnavailable(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EROFS)
}
