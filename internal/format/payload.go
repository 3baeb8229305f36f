package format

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/semmy-space/kstore/internal/certinfo"
	"github.com/semmy-space/kstore/internal/keystore"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}).DecMode(); err != nil {
		panic(err)
	}
}

type wireTime struct {
	Sec  int64 `cbor:"1,keyasint"`
	Nsec int64 `cbor:"2,keyasint"`
}

type wireEntry struct {
	Alias        string             `cbor:"1,keyasint"`
	Created      *wireTime          `cbor:"2,keyasint,omitempty"`
	PrivateKey   []byte             `cbor:"3,keyasint,omitempty"`
	Certificates []certinfo.Encoded `cbor:"4,keyasint,omitempty"`
	SecretKey    []byte             `cbor:"5,keyasint,omitempty"`
	HasPassword  bool               `cbor:"6,keyasint,omitempty"`
	Password     []byte             `cbor:"7,keyasint,omitempty"`
	Enabling     bool               `cbor:"8,keyasint,omitempty"`
	Opaque       []byte             `cbor:"9,keyasint,omitempty"`
}

type payload struct {
	Entries []wireEntry `cbor:"1,keyasint"`
}

func marshalEntries(entries []keystore.Entry) ([]byte, error) {
	p := payload{Entries: make([]wireEntry, 0, len(entries))}
	for _, e := range entries {
		w := wireEntry{
			Alias:        e.Alias,
			PrivateKey:   e.PrivateKey,
			Certificates: e.Certificates,
			SecretKey:    e.SecretKey,
			HasPassword:  e.Password != nil,
			Password:     e.Password,
			Enabling:     e.Enabling,
			Opaque:       e.Opaque,
		}
		if !e.Created.IsZero() {
			w.Created = &wireTime{Sec: e.Created.Unix(), Nsec: int64(e.Created.Nanosecond())}
		}
		p.Entries = append(p.Entries, w)
	}
	data, err := encMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entries: %w", err)
	}
	return data, nil
}

func unmarshalEntries(data []byte) ([]keystore.Entry, error) {
	var p payload
	if err := decMode.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	out := make([]keystore.Entry, 0, len(p.Entries))
	for i, w := range p.Entries {
		if w.Alias == "" {
			return nil, fmt.Errorf("%w: entry %d has no alias", ErrCorrupt, i)
		}
		e := keystore.Entry{
			Alias:        w.Alias,
			PrivateKey:   nonEmpty(w.PrivateKey),
			Certificates: w.Certificates,
			SecretKey:    nonEmpty(w.SecretKey),
			Enabling:     w.Enabling,
			Opaque:       nonEmpty(w.Opaque),
		}
		if w.HasPassword {
			e.Password = append([]byte{}, w.Password...)
		}
		if w.Created != nil {
			e.Created = time.Unix(w.Created.Sec, w.Created.Nsec).UTC()
		}
		out = append(out, e)
	}
	return out, nil
}

func nonEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
