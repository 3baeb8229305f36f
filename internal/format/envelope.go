package format

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"github.com/semmy-space/kstore/internal/keystore"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	keySize         = 32

	kdfScrypt = "scrypt"

	// Upper bounds accepted when reading, so a crafted header cannot make
	// key derivation arbitrarily expensive.
	maxScryptN = 1 << 20
	maxScryptR = 32
	maxScryptP = 16
)

// KDFParams are the scrypt cost parameters.
type KDFParams struct {
	N int `json:"n"`
	R int `json:"r"`
	P int `json:"p"`
}

// DefaultKDF is the cost used for newly written stores.
var DefaultKDF = KDFParams{N: 1 << 15, R: 8, P: 1}

func (p KDFParams) validate() error {
	if p.N < 2 || p.N&(p.N-1) != 0 || p.N > maxScryptN {
		return fmt.Errorf("scrypt N=%d out of range", p.N)
	}
	if p.R < 1 || p.R > maxScryptR || p.P < 1 || p.P > maxScryptP {
		return fmt.Errorf("scrypt r=%d p=%d out of range", p.R, p.P)
	}
	return nil
}

type kdfHeader struct {
	Name string `json:"name"`
	KDFParams
}

// envelope is the JSON document written to disk.
type envelope struct {
	V      int       `json:"v"`
	Type   string    `json:"type"`
	KDF    kdfHeader `json:"kdf"`
	Salt   []byte    `json:"salt"`
	Nonce  []byte    `json:"nonce"`
	Cipher []byte    `json:"cipher"`
}

// Codec seals entries with a password-derived key.
type Codec struct {
	typ     string
	kdf     KDFParams
	newAEAD func(key []byte) (cipher.AEAD, error)
}

var _ keystore.Codec = (*Codec)(nil)

// NewCodec returns the builtin codec for typ.
func NewCodec(typ string, kdf KDFParams) (*Codec, error) {
	if err := kdf.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	c := &Codec{typ: typ, kdf: kdf}
	switch typ {
	case TypeGCM:
		c.newAEAD = newGCM
	case TypeChaCha:
		c.newAEAD = chacha20poly1305.New
	default:
		return nil, fmt.Errorf("%w: type %q", ErrUnsupported, typ)
	}
	return c, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Type implements keystore.Codec.
func (c *Codec) Type() string { return c.typ }

// Encode implements keystore.Codec. Every call uses a fresh salt and nonce.
func (c *Codec) Encode(entries []keystore.Entry, password []byte) ([]byte, error) {
	plaintext, err := marshalEntries(entries)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	aead, err := c.derive(password, salt, c.kdf)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	env := envelope{
		V:     envelopeVersion,
		Type:  c.typ,
		KDF:   kdfHeader{Name: kdfScrypt, KDFParams: c.kdf},
		Salt:  salt,
		Nonce: nonce,
	}
	env.Cipher = aead.Seal(nil, nonce, plaintext, additionalData(env))
	return json.Marshal(env)
}

// Decode implements keystore.Codec.
func (c *Codec) Decode(data, password []byte) ([]keystore.Entry, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if env.V != envelopeVersion {
		return nil, fmt.Errorf("%w: envelope version %d", ErrUnsupported, env.V)
	}
	if env.Type != c.typ {
		return nil, fmt.Errorf("%w: file holds %q, expected %q", ErrUnsupported, env.Type, c.typ)
	}
	if env.KDF.Name != kdfScrypt {
		return nil, fmt.Errorf("%w: key derivation %q", ErrUnsupported, env.KDF.Name)
	}
	if err := env.KDF.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if len(env.Salt) != saltSize {
		return nil, fmt.Errorf("%w: salt length %d", ErrCorrupt, len(env.Salt))
	}

	aead, err := c.derive(password, env.Salt, env.KDF.KDFParams)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce length %d", ErrCorrupt, len(env.Nonce))
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Cipher, additionalData(env))
	if err != nil {
		return nil, ErrWrongPassword
	}
	return unmarshalEntries(plaintext)
}

func (c *Codec) derive(password, salt []byte, p KDFParams) (cipher.AEAD, error) {
	key, err := scrypt.Key(password, salt, p.N, p.R, p.P, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return c.newAEAD(key)
}

// additionalData binds the header fields to the ciphertext.
func additionalData(env envelope) []byte {
	ad := fmt.Appendf(nil, "kstore/v%d/%s/%s/%d/%d/%d/",
		env.V, env.Type, env.KDF.Name, env.KDF.N, env.KDF.R, env.KDF.P)
	return append(ad, env.Salt...)
}
