package certinfo

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// Certificate encoding types.
const (
	TypeX509    = "X.509"
	TypeOpenSSH = "OpenSSH"
)

// ErrUnsupportedType is returned when an encoded certificate has a type
// this package cannot parse.
var ErrUnsupportedType = errors.New("unsupported certificate type")

// Encoded is a certificate in its stored form.
type Encoded struct {
	Type string `cbor:"1,keyasint" json:"type"`
	Data []byte `cbor:"2,keyasint" json:"data"`
}

// PublicKeyInfo describes the subject public key of a certificate.
type PublicKeyInfo struct {
	Algorithm string
	Format    string
	Encoded   []byte
}

// Certificate is the view of a certificate needed to describe it.
type Certificate interface {
	Type() string
	Encoded() ([]byte, error)
	PublicKey() PublicKeyInfo
}

// X509Certificate adapts an *x509.Certificate.
type X509Certificate struct {
	Cert *x509.Certificate
}

func (c *X509Certificate) Type() string { return TypeX509 }

func (c *X509Certificate) Encoded() ([]byte, error) {
	if c.Cert == nil || len(c.Cert.Raw) == 0 {
		return nil, errors.New("x509 certificate has no DER encoding")
	}
	return c.Cert.Raw, nil
}

func (c *X509Certificate) PublicKey() PublicKeyInfo {
	return PublicKeyInfo{
		Algorithm: c.Cert.PublicKeyAlgorithm.String(),
		Format:    "X.509",
		Encoded:   c.Cert.RawSubjectPublicKeyInfo,
	}
}

// SSHCertificate adapts an OpenSSH certificate.
type SSHCertificate struct {
	Cert *ssh.Certificate
}

func (c *SSHCertificate) Type() string { return TypeOpenSSH }

func (c *SSHCertificate) Encoded() ([]byte, error) {
	if c.Cert == nil || c.Cert.Key == nil {
		return nil, errors.New("ssh certificate has no key")
	}
	return c.Cert.Marshal(), nil
}

func (c *SSHCertificate) PublicKey() PublicKeyInfo {
	return PublicKeyInfo{
		Algorithm: c.Cert.Key.Type(),
		Format:    "SSH",
		Encoded:   c.Cert.Key.Marshal(),
	}
}

// Parse decodes a stored certificate.
func Parse(enc Encoded) (Certificate, error) {
	switch enc.Type {
	case TypeX509:
		cert, err := x509.ParseCertificate(enc.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse x509 certificate: %w", err)
		}
		return &X509Certificate{Cert: cert}, nil
	case TypeOpenSSH:
		key, err := ssh.ParsePublicKey(enc.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ssh certificate: %w", err)
		}
		cert, ok := key.(*ssh.Certificate)
		if !ok {
			return nil, fmt.Errorf("ssh key of type %s is not a certificate", key.Type())
		}
		return &SSHCertificate{Cert: cert}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, enc.Type)
	}
}

// ParseChain decodes every certificate of a stored chain, preserving order.
func ParseChain(chain []Encoded) ([]Certificate, error) {
	certs := make([]Certificate, 0, len(chain))
	for i, enc := range chain {
		cert, err := Parse(enc)
		if err != nil {
			return nil, fmt.Errorf("chain element %d: %w", i, err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// Decode reads certificates from file content: PEM CERTIFICATE blocks,
// a single DER certificate, or an OpenSSH certificate line.
func Decode(data []byte) ([]Encoded, error) {
	var out []Encoded
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			return nil, fmt.Errorf("failed to parse PEM certificate: %w", err)
		}
		out = append(out, Encoded{Type: TypeX509, Data: block.Bytes})
	}
	if len(out) > 0 {
		return out, nil
	}

	if cert, err := x509.ParseCertificate(data); err == nil {
		return []Encoded{{Type: TypeX509, Data: cert.Raw}}, nil
	}

	key, _, _, _, err := ssh.ParseAuthorizedKey(bytes.TrimSpace(data))
	if err != nil {
		return nil, errors.New("no certificate found in input")
	}
	cert, ok := key.(*ssh.Certificate)
	if !ok {
		return nil, fmt.Errorf("ssh key of type %s is not a certificate", key.Type())
	}
	return []Encoded{{Type: TypeOpenSSH, Data: cert.Marshal()}}, nil
}
