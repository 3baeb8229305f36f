package keystore

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmy-space/kstore/internal/certinfo"
)

func fixtureCert(t *testing.T, name string) certinfo.Encoded {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "certinfo", "testdata", name))
	require.NoError(t, err)
	encs, err := certinfo.Decode(data)
	require.NoError(t, err)
	require.Len(t, encs, 1)
	return encs[0]
}

func TestClassifyPriority(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  Kind
	}{
		{name: "private and secret key", entry: Entry{PrivateKey: []byte{1}, SecretKey: []byte{2}}, want: PrivateKey},
		{name: "private key with chain", entry: Entry{PrivateKey: []byte{1}, Certificates: []certinfo.Encoded{{Type: "X.509"}}}, want: PrivateKey},
		{name: "secret key and password", entry: Entry{SecretKey: []byte{2}, Password: []byte("x")}, want: SecretKey},
		{name: "certificate only", entry: Entry{Certificates: []certinfo.Encoded{{Type: "X.509"}}}, want: TrustedCertificate},
		{name: "enabling password", entry: Entry{Password: []byte("x"), Enabling: true}, want: EnablingPassword},
		{name: "plain password", entry: Entry{Password: []byte("x")}, want: Password},
		{name: "empty password is still a password", entry: Entry{Password: []byte{}}, want: Password},
		{name: "enabling flag without password", entry: Entry{Enabling: true}, want: Other},
		{name: "opaque", entry: Entry{Opaque: []byte{1}}, want: Other},
		{name: "nothing", entry: Entry{}, want: Other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t, newMemBackend(), testOptions())
			tt.entry.Alias = "x"
			require.NoError(t, s.Put(tt.entry))
			assert.Equal(t, tt.want, s.Classify("x"))
		})
	}
}

func TestClassifyMissingAlias(t *testing.T) {
	s := openTestStore(t, newMemBackend(), testOptions())
	assert.Equal(t, Other, s.Classify("missing"))
}

func TestKindStrings(t *testing.T) {
	for _, k := range []Kind{Other, PrivateKey, SecretKey, TrustedCertificate, EnablingPassword, Password} {
		parsed, ok := ParseKind(k.String())
		assert.True(t, ok)
		assert.Equal(t, k, parsed)
	}
	assert.Equal(t, "PrivateKeyEntry", PrivateKey.String())
	_, ok := ParseKind("Bogus")
	assert.False(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	s := openTestStore(t, newMemBackend(), testOptions())
	require.NoError(t, s.Put(Entry{Alias: "a", SecretKey: []byte{1, 2, 3}}))

	e, err := s.Get("a")
	require.NoError(t, err)
	e.SecretKey[0] = 9

	again, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, again.SecretKey)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutRejectsEmptyAlias(t *testing.T) {
	s := openTestStore(t, newMemBackend(), testOptions())
	assert.ErrorIs(t, s.Put(Entry{SecretKey: []byte{1}}), ErrKeyStoreOperation)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t, newMemBackend(), testOptions())
	require.NoError(t, s.Put(Entry{Alias: "a", SecretKey: []byte{1}}))
	require.NoError(t, s.Put(Entry{Alias: "b", SecretKey: []byte{1}}))
	before := s.Snapshot()

	require.NoError(t, s.Delete("a"))
	assert.Equal(t, []string{"b"}, s.Aliases())
	assert.Equal(t, []string{"a", "b"}, before.Aliases(), "earlier snapshots are unchanged")

	err := s.Delete("a")
	assert.ErrorIs(t, err, ErrKeyStoreOperation)
}

func TestCreationDate(t *testing.T) {
	created := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)
	s := openTestStore(t, newMemBackend(), testOptions())
	require.NoError(t, s.Put(Entry{Alias: "a", SecretKey: []byte{1}, Created: created}))

	assert.Equal(t, "2023-05-06T07:08:09.000+0000", s.CreationDate("a"))
	assert.Equal(t, "", s.CreationDate("missing"))
}

func TestPutStampsCreationTime(t *testing.T) {
	now := time.Date(2022, 2, 2, 2, 2, 2, 0, time.UTC)
	s, err := Open(testOptions(), Deps{Codecs: codecs{}, Backend: newMemBackend(), Now: func() time.Time { return now }})
	require.NoError(t, err)

	require.NoError(t, s.Put(Entry{Alias: "a", SecretKey: []byte{1}}))
	e, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, now, e.Created)
}

func TestCertificateAndChain(t *testing.T) {
	leaf := fixtureCert(t, "leaf.pem")
	ca := fixtureCert(t, "ca.pem")

	s := openTestStore(t, newMemBackend(), testOptions())
	require.NoError(t, s.Put(Entry{Alias: "trusted", Certificates: []certinfo.Encoded{ca}}))
	require.NoError(t, s.Put(Entry{Alias: "key", PrivateKey: []byte{1}, Certificates: []certinfo.Encoded{leaf, ca}}))

	t.Run("trusted certificate has no chain", func(t *testing.T) {
		rec, err := s.Certificate("trusted")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "v3", rec.Version)

		chain, err := s.CertificateChain("trusted")
		require.NoError(t, err)
		assert.Nil(t, chain)
	})

	t.Run("private key reports chain only", func(t *testing.T) {
		rec, err := s.Certificate("key")
		require.NoError(t, err)
		assert.Nil(t, rec)

		chain, err := s.CertificateChain("key")
		require.NoError(t, err)
		require.Len(t, chain, 2)
		assert.Equal(t, "0a:bc", chain[0].SerialNumber)
		assert.Equal(t, "10:00", chain[1].SerialNumber)
	})

	t.Run("missing alias", func(t *testing.T) {
		_, err := s.Certificate("missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAttributesSoftFail(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := Open(testOptions(), Deps{Codecs: codecs{}, Backend: newMemBackend(), Logger: logger})
	require.NoError(t, err)
	require.NoError(t, s.Put(Entry{
		Alias:        "broken",
		Created:      created,
		Certificates: []certinfo.Encoded{{Type: certinfo.TypeX509, Data: []byte("not der")}},
	}))

	attrs, err := s.Attributes("broken")
	require.NoError(t, err)
	assert.Equal(t, "2023-01-01T00:00:00.000+0000", attrs.CreationDate)
	assert.Equal(t, "TrustedCertificateEntry", attrs.EntryType)
	assert.Nil(t, attrs.Certificate)
	assert.Contains(t, logs.String(), "attribute=certificate")

	_, err = s.Attributes("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttributesPopulated(t *testing.T) {
	s := openTestStore(t, newMemBackend(), testOptions())
	require.NoError(t, s.Put(Entry{Alias: "trusted", Certificates: []certinfo.Encoded{fixtureCert(t, "user-cert.pub")}}))

	attrs, err := s.Attributes("trusted")
	require.NoError(t, err)
	require.NotNil(t, attrs.Certificate)
	assert.Equal(t, certinfo.TypeOpenSSH, attrs.Certificate.Type)
	assert.Empty(t, attrs.CertificateChain)
	assert.NotEmpty(t, attrs.CreationDate)
}

func TestEntryCloneAndEqual(t *testing.T) {
	e := Entry{
		Alias:        "a",
		PrivateKey:   []byte{1},
		Certificates: []certinfo.Encoded{{Type: "X.509", Data: []byte{2}}},
		Password:     []byte{},
	}
	c := e.Clone()
	assert.True(t, e.Equal(c))

	c.Certificates[0].Data[0] = 7
	assert.False(t, e.Equal(c))
	assert.Equal(t, byte(2), e.Certificates[0].Data[0])

	noPw := e.Clone()
	noPw.Password = nil
	assert.False(t, e.Equal(noPw), "nil and empty passwords differ")
}
