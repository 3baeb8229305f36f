package backend

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmy-space/kstore/internal/paths"
)

func newTestFile(t *testing.T) (*File, *paths.Registry, string) {
	t.Helper()
	dir := t.TempDir()
	reg := paths.NewRegistry()
	reg.Define("test.dir", dir)
	return New(reg), reg, dir
}

func TestReadAbsentFile(t *testing.T) {
	f, _, dir := newTestFile(t)

	data, err := f.Read(filepath.Join(dir, "missing.ks"))
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = f.Read(filepath.Join(dir, "no", "such", "dir", "missing.ks"))
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestWriteThenRead(t *testing.T) {
	f, _, _ := newTestFile(t)

	loc, err := f.Resolve("nested/store.ks", "test.dir")
	require.NoError(t, err)

	require.NoError(t, f.Write(loc, []byte("first")))
	require.NoError(t, f.Write(loc, []byte("second")))

	data, err := f.Read(loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	info, err := os.Stat(loc)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestReadFromReadOnlyDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for this user")
	}
	f, _, dir := newTestFile(t)
	loc := filepath.Join(dir, "store.ks")
	require.NoError(t, os.WriteFile(loc, []byte("sealed"), 0o600))

	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	data, err := f.Read(loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed"), data)

	_, err = os.Stat(lockPath(loc))
	assert.True(t, os.IsNotExist(err), "no lock file should be created")

	data, err = f.Read(filepath.Join(dir, "missing.ks"))
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestFailedWriteKeepsPreviousContent(t *testing.T) {
	f, _, dir := newTestFile(t)
	loc := filepath.Join(dir, "store.ks")
	require.NoError(t, f.Write(loc, []byte("valid")))

	rename = func(string, string) error { return errors.New("disk full") }
	t.Cleanup(func() { rename = os.Rename })

	err := f.Write(loc, []byte("half-written"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("valid"), data)

	matches, err := filepath.Glob(filepath.Join(dir, "store.ks.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp file should be cleaned up")
}

func TestSubscribeRoutesEvents(t *testing.T) {
	f, reg, _ := newTestFile(t)

	var removed, updated int
	h := f.Subscribe("test.dir",
		func(*paths.Event) { removed++ },
		func(*paths.Event) { updated++ },
	)
	defer h.Remove()

	reg.Update("test.dir", t.TempDir(), true)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 0, removed)

	reg.Remove("test.dir", true)
	assert.Equal(t, 1, removed)
}
