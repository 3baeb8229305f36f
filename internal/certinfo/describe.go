package certinfo

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"hash"
	"time"
)

// TimeLayout is the ISO-8601 layout used for every rendered timestamp.
const TimeLayout = "2006-01-02T15:04:05.000-0700"

// Fingerprint algorithms. The pair is fixed.
const (
	SHA1   = "SHA-1"
	SHA256 = "SHA-256"
)

// PublicKey is the rendered public key of a certificate.
type PublicKey struct {
	Algorithm string `json:"algorithm" yaml:"algorithm"`
	Format    string `json:"format" yaml:"format"`
	Encoded   string `json:"encoded" yaml:"encoded"`
}

// Fingerprint is one digest over a certificate's encoded form.
type Fingerprint struct {
	Algorithm string `json:"algorithm" yaml:"algorithm"`
	Value     string `json:"value" yaml:"value"`
}

// Record is the stable external description of a certificate. The X.509
// fields are empty for other certificate types.
type Record struct {
	Type         string        `json:"type" yaml:"type"`
	PublicKey    PublicKey     `json:"public-key" yaml:"public-key"`
	Fingerprints []Fingerprint `json:"fingerprints" yaml:"fingerprints"`
	Encoded      string        `json:"encoded" yaml:"encoded"`

	Subject            string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Issuer             string `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	NotBefore          string `json:"not-before,omitempty" yaml:"not-before,omitempty"`
	NotAfter           string `json:"not-after,omitempty" yaml:"not-after,omitempty"`
	SerialNumber       string `json:"serial-number,omitempty" yaml:"serial-number,omitempty"`
	SignatureAlgorithm string `json:"signature-algorithm,omitempty" yaml:"signature-algorithm,omitempty"`
	Signature          string `json:"signature,omitempty" yaml:"signature,omitempty"`
	Version            string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Describe renders cert as a Record. Encoding failures are returned, never
// swallowed, since a partial record would misrepresent the certificate.
func Describe(cert Certificate) (Record, error) {
	encoded, err := cert.Encoded()
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode %s certificate: %w", cert.Type(), err)
	}

	pk := cert.PublicKey()
	rec := Record{
		Type: cert.Type(),
		PublicKey: PublicKey{
			Algorithm: pk.Algorithm,
			Format:    pk.Format,
			Encoded:   HexString(pk.Encoded),
		},
		Fingerprints: Fingerprints(encoded),
		Encoded:      HexString(encoded),
	}

	if xc, ok := cert.(*X509Certificate); ok {
		c := xc.Cert
		rec.Subject = principal(c.RawSubject, c.Subject)
		rec.Issuer = principal(c.RawIssuer, c.Issuer)
		rec.NotBefore = FormatTime(c.NotBefore)
		rec.NotAfter = FormatTime(c.NotAfter)
		if c.SerialNumber != nil {
			rec.SerialNumber = Delimit(c.SerialNumber.Text(16))
		}
		rec.SignatureAlgorithm = c.SignatureAlgorithm.String()
		rec.Signature = HexString(c.Signature)
		rec.Version = fmt.Sprintf("v%d", c.Version)
	}

	return rec, nil
}

// principal renders a distinguished name in RFC 2253 form, following the
// RDN order of the encoded name rather than pkix.Name's fixed field order.
func principal(raw []byte, name pkix.Name) string {
	var seq pkix.RDNSequence
	if rest, err := asn1.Unmarshal(raw, &seq); err != nil || len(rest) > 0 {
		return name.String()
	}
	return seq.String()
}

// DescribeChain describes each certificate in order. The first failure
// aborts the whole chain.
func DescribeChain(chain []Certificate) ([]Record, error) {
	records := make([]Record, 0, len(chain))
	for i, cert := range chain {
		rec, err := Describe(cert)
		if err != nil {
			return nil, fmt.Errorf("chain element %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Fingerprints returns the SHA-1 and SHA-256 digests of encoded.
func Fingerprints(encoded []byte) []Fingerprint {
	return []Fingerprint{
		{Algorithm: SHA1, Value: HexString(digest(sha1.New(), encoded))},
		{Algorithm: SHA256, Value: HexString(digest(sha256.New(), encoded))},
	}
}

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func digest(h hash.Hash, data []byte) []byte {
	h.Write(data)
	return h.Sum(nil)
}
