package format

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmy-space/kstore/internal/backend"
	"github.com/semmy-space/kstore/internal/certinfo"
	"github.com/semmy-space/kstore/internal/keystore"
	"github.com/semmy-space/kstore/internal/paths"
)

// testKDF keeps key derivation fast in tests.
var testKDF = KDFParams{N: 1 << 10, R: 8, P: 1}

func testRegistry() *Registry {
	r := NewRegistry()
	r.RegisterBuiltin(testKDF)
	return r
}

func sampleEntries() []keystore.Entry {
	created := time.Date(2024, 3, 4, 5, 6, 7, 891011121, time.UTC)
	return []keystore.Entry{
		{Alias: "db", Created: created, Password: []byte("hunter2")},
		{Alias: "empty-pw", Created: created, Password: []byte{}},
		{Alias: "enable", Created: created, Password: []byte("x"), Enabling: true},
		{Alias: "key", Created: created, PrivateKey: []byte{1, 2, 3}, Certificates: []certinfo.Encoded{
			{Type: certinfo.TypeX509, Data: []byte{4, 5}},
		}},
		{Alias: "secret", SecretKey: []byte{9, 9, 9}},
		{Alias: "blob", Opaque: []byte("opaque")},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	for _, typ := range []string{TypeGCM, TypeChaCha} {
		t.Run(typ, func(t *testing.T) {
			c, err := NewCodec(typ, testKDF)
			require.NoError(t, err)
			assert.Equal(t, typ, c.Type())

			in := sampleEntries()
			data, err := c.Encode(in, []byte("pw"))
			require.NoError(t, err)

			out, err := c.Decode(data, []byte("pw"))
			require.NoError(t, err)
			require.Len(t, out, len(in))
			for i := range in {
				assert.True(t, in[i].Equal(out[i]), "entry %s", in[i].Alias)
				assert.Equal(t, in[i].Kind(), out[i].Kind(), "entry %s", in[i].Alias)
			}
			assert.Nil(t, out[4].Password, "absent password stays absent")
		})
	}
}

func TestEncodeIsRandomized(t *testing.T) {
	c, err := NewCodec(TypeGCM, testKDF)
	require.NoError(t, err)
	a, err := c.Encode(sampleEntries(), []byte("pw"))
	require.NoError(t, err)
	b, err := c.Encode(sampleEntries(), []byte("pw"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecodeFailures(t *testing.T) {
	c, err := NewCodec(TypeGCM, testKDF)
	require.NoError(t, err)
	valid, err := c.Encode(sampleEntries(), []byte("pw"))
	require.NoError(t, err)

	mutate := func(fn func(env *envelope)) []byte {
		var env envelope
		require.NoError(t, json.Unmarshal(valid, &env))
		fn(&env)
		out, err := json.Marshal(env)
		require.NoError(t, err)
		return out
	}

	tests := []struct {
		name     string
		data     []byte
		password string
		want     error
	}{
		{name: "wrong password", data: valid, password: "nope", want: ErrWrongPassword},
		{name: "flipped ciphertext", data: mutate(func(e *envelope) { e.Cipher[0] ^= 0xff }), password: "pw", want: ErrWrongPassword},
		{name: "altered salt", data: mutate(func(e *envelope) { e.Salt[0] ^= 0xff }), password: "pw", want: ErrWrongPassword},
		{name: "future version", data: mutate(func(e *envelope) { e.V = 2 }), password: "pw", want: ErrUnsupported},
		{name: "other type", data: mutate(func(e *envelope) { e.Type = TypeChaCha }), password: "pw", want: ErrUnsupported},
		{name: "other kdf", data: mutate(func(e *envelope) { e.KDF.Name = "pbkdf2" }), password: "pw", want: ErrUnsupported},
		{name: "huge cost", data: mutate(func(e *envelope) { e.KDF.N = 1 << 30 }), password: "pw", want: ErrCorrupt},
		{name: "short salt", data: mutate(func(e *envelope) { e.Salt = e.Salt[:4] }), password: "pw", want: ErrCorrupt},
		{name: "short nonce", data: mutate(func(e *envelope) { e.Nonce = e.Nonce[:4] }), password: "pw", want: ErrCorrupt},
		{name: "not json", data: []byte("garbage"), password: "pw", want: ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.data, []byte(tt.password))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewCodecUnknownType(t *testing.T) {
	_, err := NewCodec("pkcs12", testKDF)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = NewCodec(TypeGCM, KDFParams{N: 3, R: 8, P: 1})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRegistry(t *testing.T) {
	r := testRegistry()

	c, err := r.Codec("", TypeChaCha)
	require.NoError(t, err)
	assert.Equal(t, TypeChaCha, c.Type())

	c, err = r.Codec(DefaultProvider, TypeGCM)
	require.NoError(t, err)
	assert.Equal(t, TypeGCM, c.Type())

	_, err = r.Codec("vendor", TypeGCM)
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = r.Codec("", "JKS")
	assert.ErrorIs(t, err, ErrUnsupported)

	assert.Equal(t, []string{DefaultProvider}, r.Providers())
	assert.Equal(t, []string{TypeChaCha, TypeGCM}, r.Types(DefaultProvider))
	assert.Empty(t, r.Types("vendor"))
}

func TestStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	reg := paths.NewRegistry()
	reg.Define("data", dir)

	opts := keystore.Options{Type: TypeGCM, Password: []byte("pw"), Path: "vault.ks", RelativeTo: "data"}
	deps := keystore.Deps{Codecs: testRegistry(), Backend: backend.New(reg)}

	s, err := keystore.Open(opts, deps)
	require.NoError(t, err)
	require.NoError(t, s.Put(keystore.Entry{Alias: "db", Password: []byte("hunter2")}))
	require.NoError(t, s.Save())

	raw, err := os.ReadFile(filepath.Join(dir, "vault.ks"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")

	reopened, err := keystore.Open(opts, deps)
	require.NoError(t, err)
	e, err := reopened.Get("db")
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), e.Password)

	t.Run("wrong password fails to open", func(t *testing.T) {
		bad := opts
		bad.Password = []byte("nope")
		_, err := keystore.Open(bad, deps)
		assert.ErrorIs(t, err, keystore.ErrInitialization)
		assert.ErrorIs(t, err, ErrWrongPassword)
	})

	t.Run("type mismatch fails to open", func(t *testing.T) {
		other := opts
		other.Type = TypeChaCha
		_, err := keystore.Open(other, deps)
		assert.ErrorIs(t, err, ErrUnsupported)
	})

	t.Run("reload after tamper keeps committed store", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "vault.ks"), []byte("{}"), 0o600))
		before := reopened.Snapshot()
		err := reopened.Reload()
		assert.ErrorIs(t, err, keystore.ErrPersistence)
		assert.Same(t, before, reopened.Snapshot())
	})
}
