package keystore

import (
	"bytes"
	"time"

	"github.com/semmy-space/kstore/internal/certinfo"
)

// Kind classifies an entry.
type Kind int

const (
	Other Kind = iota
	PrivateKey
	SecretKey
	TrustedCertificate
	EnablingPassword
	Password
)

func (k Kind) String() string {
	switch k {
	case PrivateKey:
		return "PrivateKeyEntry"
	case SecretKey:
		return "SecretKeyEntry"
	case TrustedCertificate:
		return "TrustedCertificateEntry"
	case EnablingPassword:
		return "EnablingPasswordEntry"
	case Password:
		return "PasswordEntry"
	default:
		return "Other"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for _, k := range []Kind{Other, PrivateKey, SecretKey, TrustedCertificate, EnablingPassword, Password} {
		if k.String() == s {
			return k, true
		}
	}
	return Other, false
}

// Entry is a single named item in a store. An entry may carry more than
// one kind of material; Classify picks one kind deterministically.
type Entry struct {
	Alias   string
	Created time.Time

	// PrivateKey is PKCS#8 DER. Certificates holds its chain, leaf first,
	// or the trusted certificate when there is no private key.
	PrivateKey   []byte
	Certificates []certinfo.Encoded

	SecretKey []byte
	Password  []byte
	// Enabling marks Password as an enabling password.
	Enabling bool

	Opaque []byte
}

// classifiers are tested in order; the first match wins.
var classifiers = []struct {
	kind  Kind
	match func(e *Entry) bool
}{
	{PrivateKey, func(e *Entry) bool { return len(e.PrivateKey) > 0 }},
	{SecretKey, func(e *Entry) bool { return len(e.SecretKey) > 0 }},
	{TrustedCertificate, func(e *Entry) bool { return len(e.Certificates) > 0 && len(e.PrivateKey) == 0 }},
	{EnablingPassword, func(e *Entry) bool { return e.Password != nil && e.Enabling }},
	{Password, func(e *Entry) bool { return e.Password != nil }},
}

// Kind returns the entry's classification.
func (e *Entry) Kind() Kind {
	for _, c := range classifiers {
		if c.match(e) {
			return c.kind
		}
	}
	return Other
}

// Chain returns the certificate chain of a private key entry, or nil.
func (e *Entry) Chain() []certinfo.Encoded {
	if len(e.PrivateKey) == 0 || len(e.Certificates) == 0 {
		return nil
	}
	return e.Certificates
}

// Clone returns a deep copy.
func (e Entry) Clone() Entry {
	out := e
	out.PrivateKey = cloneBytes(e.PrivateKey)
	out.SecretKey = cloneBytes(e.SecretKey)
	out.Password = cloneBytes(e.Password)
	out.Opaque = cloneBytes(e.Opaque)
	if e.Certificates != nil {
		out.Certificates = make([]certinfo.Encoded, len(e.Certificates))
		for i, c := range e.Certificates {
			out.Certificates[i] = certinfo.Encoded{Type: c.Type, Data: cloneBytes(c.Data)}
		}
	}
	return out
}

// Equal reports whether two entries hold the same material.
func (e Entry) Equal(o Entry) bool {
	if e.Alias != o.Alias || !e.Created.Equal(o.Created) || e.Enabling != o.Enabling {
		return false
	}
	if !bytes.Equal(e.PrivateKey, o.PrivateKey) || !bytes.Equal(e.SecretKey, o.SecretKey) ||
		!bytes.Equal(e.Opaque, o.Opaque) || !bytes.Equal(e.Password, o.Password) ||
		(e.Password == nil) != (o.Password == nil) {
		return false
	}
	if len(e.Certificates) != len(o.Certificates) {
		return false
	}
	for i := range e.Certificates {
		if e.Certificates[i].Type != o.Certificates[i].Type || !bytes.Equal(e.Certificates[i].Data, o.Certificates[i].Data) {
			return false
		}
	}
	return true
}

// cloneBytes keeps nil distinct from empty; an empty password is still a
// password.
func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
