package secrets

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore map[string]string

func (m memStore) Get(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m memStore) Set(key, value string) error {
	m[key] = value
	return nil
}

func (m memStore) Delete(key string) error {
	if _, ok := m[key]; !ok {
		return ErrNotFound
	}
	delete(m, key)
	return nil
}

func (m memStore) List() ([]string, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func TestResolve(t *testing.T) {
	pwFile := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(pwFile, []byte("from-file\n"), 0o600))

	r := NewResolver(func() (Store, error) { return memStore{"db": "from-keyring"}, nil })
	r.getenv = func(name string) (string, bool) {
		if name == "DB_PASSWORD" {
			return "from-env", true
		}
		return "", false
	}

	tests := []struct {
		name string
		ref  string
		want []byte
		err  error
	}{
		{name: "empty", ref: "", want: nil},
		{name: "clear text", ref: "changeit", want: []byte("changeit")},
		{name: "unknown scheme is literal", ref: "http://x", want: []byte("http://x")},
		{name: "pass scheme keeps colons", ref: "pass:a:b", want: []byte("a:b")},
		{name: "env", ref: "env:DB_PASSWORD", want: []byte("from-env")},
		{name: "env missing", ref: "env:NOPE", err: ErrUnresolved},
		{name: "file trims newline", ref: "file:" + pwFile, want: []byte("from-file")},
		{name: "file missing", ref: "file:" + pwFile + ".missing", err: ErrUnresolved},
		{name: "keyring", ref: KeyringRef("db"), want: []byte("from-keyring")},
		{name: "keyring missing", ref: "keyring:other", err: ErrUnresolved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.ref)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolverOpensStoreOnce(t *testing.T) {
	opened := 0
	r := NewResolver(func() (Store, error) {
		opened++
		return nil, errors.New("keyring locked")
	})

	_, err := r.Resolve("plain")
	require.NoError(t, err)
	assert.Equal(t, 0, opened, "non-keyring references do not open the store")

	_, err = r.Resolve("keyring:a")
	assert.EqualError(t, err, "keyring locked")
	_, err = r.Resolve("keyring:b")
	assert.Error(t, err)
	assert.Equal(t, 1, opened)
}

func TestFileStore(t *testing.T) {
	t.Setenv("KSTORE_QUIET", "1")
	dir := t.TempDir()

	s, err := NewFileStore(dir, "master")
	require.NoError(t, err)

	_, err = s.Get("db")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("db", "hunter2"))
	require.NoError(t, s.Set("api", "token"))

	other, err := NewFileStore(dir, "master")
	require.NoError(t, err)
	v, err := other.Get("db")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)

	keys, err := other.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "db"}, keys)

	require.NoError(t, other.Delete("api"))
	assert.ErrorIs(t, other.Delete("api"), ErrNotFound)

	keys, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"db"}, keys, "changes from another instance are picked up")

	_, err = NewFileStore(dir, "wrong")
	assert.Error(t, err)
}

func TestWarnOnce(t *testing.T) {
	t.Setenv("KSTORE_QUIET", "")
	dir := t.TempDir()
	var buf bytes.Buffer
	old := warnings
	warnings = &buf
	t.Cleanup(func() { warnings = old })

	warnOnce(dir, "first")
	markWarningsDone(dir)
	warnOnce(dir, "second")

	assert.Equal(t, "first\n", buf.String())
}
