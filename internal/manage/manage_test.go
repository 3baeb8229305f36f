package manage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmy-space/kstore/internal/format"
	"github.com/semmy-space/kstore/internal/keystore"
	"github.com/semmy-space/kstore/internal/paths"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "data")
	reg := paths.NewRegistry()
	reg.Define("data", dir)

	codecs := format.NewRegistry()
	codecs.RegisterBuiltin(format.KDFParams{N: 1 << 10, R: 8, P: 1})

	m := NewManager(Env{Paths: reg, Codecs: codecs})
	t.Cleanup(m.Close)
	return m, dir
}

func testDefinition() *Definition {
	return &Definition{Type: format.TypeGCM, Password: "pass:pw", Path: "main.ks", RelativeTo: "data"}
}

func mustExecute(t *testing.T, m *Manager, req Request) any {
	t.Helper()
	out, err := m.Execute(req)
	require.NoError(t, err, req.Op.String())
	return out
}

func TestCreatePutSaveReopen(t *testing.T) {
	m, dir := newTestManager(t)

	st := mustExecute(t, m, Request{Op: OpCreate, Store: "main", Definition: testDefinition()}).(State)
	assert.True(t, st.Started)
	assert.Equal(t, filepath.Join(dir, "main.ks"), st.Location)
	assert.Equal(t, format.DefaultProvider, st.Definition.Provider)

	mustExecute(t, m, Request{Op: OpPutAlias, Store: "main", Alias: "db", Entry: &keystore.Entry{Password: []byte("hunter2")}, Persist: true})
	_, err := os.Stat(filepath.Join(dir, "main.ks"))
	require.NoError(t, err)

	mustExecute(t, m, Request{Op: OpRemove, Store: "main"})
	mustExecute(t, m, Request{Op: OpCreate, Store: "main", Definition: testDefinition()})

	aliases := mustExecute(t, m, Request{Op: OpListAliases, Store: "main"}).([]string)
	assert.Equal(t, []string{"db"}, aliases)

	attrs := mustExecute(t, m, Request{Op: OpReadAlias, Store: "main", Alias: "db"}).(keystore.AliasAttributes)
	assert.Equal(t, "PasswordEntry", attrs.EntryType)
}

func TestRequestErrors(t *testing.T) {
	m, _ := newTestManager(t)
	mustExecute(t, m, Request{Op: OpCreate, Store: "main", Definition: testDefinition()})

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{name: "unknown operation", req: Request{Op: Operation(99), Store: "main"}, want: ErrInvalidRequest},
		{name: "missing store name", req: Request{Op: OpSave}, want: ErrInvalidRequest},
		{name: "duplicate store", req: Request{Op: OpCreate, Store: "main", Definition: testDefinition()}, want: ErrStoreExists},
		{name: "create without definition", req: Request{Op: OpCreate, Store: "other"}, want: ErrInvalidRequest},
		{name: "create without type", req: Request{Op: OpCreate, Store: "other", Definition: &Definition{}}, want: ErrInvalidRequest},
		{name: "required without path", req: Request{Op: OpCreate, Store: "other", Definition: &Definition{Type: format.TypeGCM, Required: true}}, want: ErrInvalidRequest},
		{name: "unknown store", req: Request{Op: OpSave, Store: "nope"}, want: ErrUnknownStore},
		{name: "put without entry", req: Request{Op: OpPutAlias, Store: "main", Alias: "x"}, want: ErrInvalidRequest},
		{name: "delete missing alias", req: Request{Op: OpDeleteAlias, Store: "main", Alias: "x"}, want: keystore.ErrKeyStoreOperation},
		{name: "read missing alias", req: Request{Op: OpReadAlias, Store: "main", Alias: "x"}, want: keystore.ErrNotFound},
		{name: "unknown type", req: Request{Op: OpCreate, Store: "other", Definition: &Definition{Type: "JKS"}}, want: format.ErrUnsupported},
		{name: "required file missing", req: Request{Op: OpCreate, Store: "other", Definition: &Definition{Type: format.TypeGCM, Path: "nope.ks", RelativeTo: "data", Required: true}}, want: keystore.ErrInitialization},
		{name: "unresolvable password", req: Request{Op: OpCreate, Store: "other", Definition: &Definition{Type: format.TypeGCM, Password: "env:KSTORE_TEST_UNSET_VARIABLE"}}, want: keystore.ErrInitialization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Execute(tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, []string{"main"}, m.Names())
}

func TestPersistFailureUndoesMutation(t *testing.T) {
	m, dir := newTestManager(t)
	mustExecute(t, m, Request{Op: OpCreate, Store: "main", Definition: testDefinition()})
	mustExecute(t, m, Request{Op: OpPutAlias, Store: "main", Alias: "kept", Entry: &keystore.Entry{SecretKey: []byte{1}}})

	// The store directory turns into a file, so saving cannot succeed.
	require.NoError(t, os.WriteFile(dir, []byte("not a directory"), 0o600))

	_, err := m.Execute(Request{Op: OpPutAlias, Store: "main", Alias: "new", Entry: &keystore.Entry{SecretKey: []byte{2}}, Persist: true})
	assert.ErrorIs(t, err, keystore.ErrPersistence)

	aliases := mustExecute(t, m, Request{Op: OpListAliases, Store: "main"}).([]string)
	assert.Equal(t, []string{"kept"}, aliases)
}

func TestPersistedMutationsAreSerialized(t *testing.T) {
	m, _ := newTestManager(t)
	mustExecute(t, m, Request{Op: OpCreate, Store: "main", Definition: testDefinition()})
	svc, err := m.Service("main")
	require.NoError(t, err)

	// Hold the service as an in-flight mutation would between capture and save.
	svc.mutation.Lock()
	done := make(chan error, 1)
	go func() {
		_, err := m.Execute(Request{Op: OpPutAlias, Store: "main", Alias: "waiting", Entry: &keystore.Entry{SecretKey: []byte{1}}, Persist: true})
		done <- err
	}()

	assert.Never(t, func() bool { return len(done) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	aliases := mustExecute(t, m, Request{Op: OpListAliases, Store: "main"}).([]string)
	assert.Empty(t, aliases)

	svc.mutation.Unlock()
	require.NoError(t, <-done)
	aliases = mustExecute(t, m, Request{Op: OpListAliases, Store: "main"}).([]string)
	assert.Equal(t, []string{"waiting"}, aliases)
}

func TestReload(t *testing.T) {
	m, _ := newTestManager(t)
	mustExecute(t, m, Request{Op: OpCreate, Store: "main", Definition: testDefinition()})
	mustExecute(t, m, Request{Op: OpPutAlias, Store: "main", Alias: "saved", Entry: &keystore.Entry{SecretKey: []byte{1}}, Persist: true})
	mustExecute(t, m, Request{Op: OpPutAlias, Store: "main", Alias: "unsaved", Entry: &keystore.Entry{SecretKey: []byte{2}}})

	t.Run("dry run keeps unsaved changes", func(t *testing.T) {
		st := mustExecute(t, m, Request{Op: OpReload, Store: "main", DryRun: true}).(State)
		assert.Equal(t, 1, st.Entries, "reports what the file holds")

		aliases := mustExecute(t, m, Request{Op: OpListAliases, Store: "main"}).([]string)
		assert.Equal(t, []string{"saved", "unsaved"}, aliases)
	})

	t.Run("reload discards unsaved changes", func(t *testing.T) {
		st := mustExecute(t, m, Request{Op: OpReload, Store: "main"}).(State)
		assert.Equal(t, 1, st.Entries)

		aliases := mustExecute(t, m, Request{Op: OpListAliases, Store: "main"}).([]string)
		assert.Equal(t, []string{"saved"}, aliases)
	})
}

func TestReconfigure(t *testing.T) {
	m, dir := newTestManager(t)
	mustExecute(t, m, Request{Op: OpCreate, Store: "main", Definition: testDefinition()})
	before, err := m.Service("main")
	require.NoError(t, err)

	t.Run("watch is applied in place", func(t *testing.T) {
		def := testDefinition()
		def.Watch = true
		st := mustExecute(t, m, Request{Op: OpReconfigure, Store: "main", Definition: def}).(State)
		assert.True(t, st.Definition.Watch)

		svc, err := m.Service("main")
		require.NoError(t, err)
		assert.Same(t, before, svc)
	})

	t.Run("path change rebuilds", func(t *testing.T) {
		def := testDefinition()
		def.Path = "other.ks"
		st := mustExecute(t, m, Request{Op: OpReconfigure, Store: "main", Definition: def}).(State)
		assert.Equal(t, filepath.Join(dir, "other.ks"), st.Location)

		svc, err := m.Service("main")
		require.NoError(t, err)
		assert.NotSame(t, before, svc)
		_, err = before.Store()
		assert.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("failed rebuild keeps running store", func(t *testing.T) {
		current, err := m.Service("main")
		require.NoError(t, err)

		def := testDefinition()
		def.Type = "JKS"
		_, err = m.Execute(Request{Op: OpReconfigure, Store: "main", Definition: def})
		assert.ErrorIs(t, err, format.ErrUnsupported)

		svc, err := m.Service("main")
		require.NoError(t, err)
		assert.Same(t, current, svc)
		_, err = svc.Store()
		assert.NoError(t, err)
	})
}

func TestRelocate(t *testing.T) {
	t.Run("without restart marks reload required", func(t *testing.T) {
		m, dir := newTestManager(t)
		def := testDefinition()
		def.Watch = true
		mustExecute(t, m, Request{Op: OpCreate, Store: "main", Definition: def})

		reload, err := m.Relocate("data", filepath.Join(filepath.Dir(dir), "moved"), false)
		require.NoError(t, err)
		assert.True(t, reload)

		st := mustExecute(t, m, Request{Op: OpState, Store: "main"}).(State)
		assert.True(t, st.ReloadRequired)
		assert.Equal(t, filepath.Join(dir, "main.ks"), st.Location)

		st = mustExecute(t, m, Request{Op: OpReload, Store: "main"}).(State)
		assert.False(t, st.ReloadRequired)
		assert.Equal(t, filepath.Join(filepath.Dir(dir), "moved", "main.ks"), st.Location)
	})

	t.Run("unwatched store is not flagged", func(t *testing.T) {
		m, dir := newTestManager(t)
		mustExecute(t, m, Request{Op: OpCreate, Store: "main", Definition: testDefinition()})

		reload, err := m.Relocate("data", filepath.Join(filepath.Dir(dir), "moved"), false)
		require.NoError(t, err)
		assert.False(t, reload)
	})

	t.Run("with restart moves dependents", func(t *testing.T) {
		m, dir := newTestManager(t)
		def := testDefinition()
		def.Watch = true
		mustExecute(t, m, Request{Op: OpCreate, Store: "main", Definition: def})
		mustExecute(t, m, Request{Op: OpCreate, Store: "mem", Definition: &Definition{Type: format.TypeChaCha}})

		moved := filepath.Join(filepath.Dir(dir), "moved")
		reload, err := m.Relocate("data", moved, true)
		require.NoError(t, err)
		assert.False(t, reload)

		st := mustExecute(t, m, Request{Op: OpState, Store: "main"}).(State)
		assert.False(t, st.ReloadRequired)
		assert.Equal(t, filepath.Join(moved, "main.ks"), st.Location)
	})

	t.Run("removed path stops dependents", func(t *testing.T) {
		m, _ := newTestManager(t)
		mustExecute(t, m, Request{Op: OpCreate, Store: "main", Definition: testDefinition()})

		m.RemovePath("data", true)
		_, err := m.Execute(Request{Op: OpSave, Store: "main"})
		assert.ErrorIs(t, err, ErrNotStarted)
	})
}

func TestStateRedactsPassword(t *testing.T) {
	t.Setenv("KSTORE_TEST_PASSWORD", "pw")
	m, _ := newTestManager(t)
	mustExecute(t, m, Request{Op: OpCreate, Store: "b", Definition: &Definition{Type: format.TypeGCM, Password: "clear"}})
	mustExecute(t, m, Request{Op: OpCreate, Store: "a", Definition: &Definition{Type: format.TypeGCM, Password: "env:KSTORE_TEST_PASSWORD"}})

	states := mustExecute(t, m, Request{Op: OpState}).([]State)
	require.Len(t, states, 2)
	assert.Equal(t, "a", states[0].Name)
	assert.Equal(t, "env:KSTORE_TEST_PASSWORD", states[0].Definition.Password)
	assert.Equal(t, "******", states[1].Definition.Password)
}

func TestParseOperation(t *testing.T) {
	for op := OpCreate; op <= OpState; op++ {
		parsed, err := ParseOperation(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}
	_, err := ParseOperation("explode")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, "Operation(0)", Operation(0).String())
}
