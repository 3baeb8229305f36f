package keystore

import (
	"fmt"
	"log/slog"

	"github.com/semmy-space/kstore/internal/certinfo"
)

// Attribute names, as reported when population fails.
const (
	AttrCreationDate     = "creation-date"
	AttrEntryType        = "entry-type"
	AttrCertificate      = "certificate"
	AttrCertificateChain = "certificate-chain"
)

// AliasAttributes is the read-only view of one alias. Fields that could
// not be populated are left empty.
type AliasAttributes struct {
	Alias            string            `json:"alias" yaml:"alias"`
	CreationDate     string            `json:"creation-date,omitempty" yaml:"creation-date,omitempty"`
	EntryType        string            `json:"entry-type,omitempty" yaml:"entry-type,omitempty"`
	Certificate      *certinfo.Record  `json:"certificate,omitempty" yaml:"certificate,omitempty"`
	CertificateChain []certinfo.Record `json:"certificate-chain,omitempty" yaml:"certificate-chain,omitempty"`
}

// Aliases returns all aliases of the committed snapshot, sorted.
func (s *Store) Aliases() []string {
	return s.Snapshot().Aliases()
}

// Get returns a copy of the entry for alias.
func (s *Store) Get(alias string) (Entry, error) {
	return s.Snapshot().Get(alias)
}

// Classify returns the kind of alias.
func (s *Store) Classify(alias string) Kind {
	return s.Snapshot().Classify(alias)
}

// Put adds or replaces an entry. A zero creation time is set to now.
func (s *Store) Put(e Entry) error {
	if e.Alias == "" {
		return fmt.Errorf("%w: alias must not be empty", ErrKeyStoreOperation)
	}
	e = e.Clone()
	if e.Created.IsZero() {
		e.Created = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	next := make(map[string]Entry, len(cur.entries)+1)
	for alias, existing := range cur.entries {
		next[alias] = existing
	}
	next[e.Alias] = e
	s.publish(next, cur.synced)
	return nil
}

// Delete removes alias from the store.
func (s *Store) Delete(alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	if _, ok := cur.entries[alias]; !ok {
		return fmt.Errorf("%w: alias %q does not exist", ErrKeyStoreOperation, alias)
	}
	next := make(map[string]Entry, len(cur.entries))
	for a, e := range cur.entries {
		if a != alias {
			next[a] = e
		}
	}
	s.publish(next, cur.synced)
	return nil
}

// CreationDate returns the ISO-8601 creation time of alias, or an empty
// string when it is unknown. Failures are logged, not returned.
func (s *Store) CreationDate(alias string) string {
	var out string
	s.populate(AttrCreationDate, func() error {
		out = creationDate(s.Snapshot(), alias)
		return nil
	})
	return out
}

// Certificate describes the single certificate of alias. Entries with a
// certificate chain report nil here; use CertificateChain.
func (s *Store) Certificate(alias string) (*certinfo.Record, error) {
	return certificate(s.Snapshot(), alias)
}

// CertificateChain describes the certificate chain of a private key entry,
// leaf first. Other entries report nil.
func (s *Store) CertificateChain(alias string) ([]certinfo.Record, error) {
	return certificateChain(s.Snapshot(), alias)
}

// Attributes populates every attribute of alias from one snapshot. A
// failing attribute is logged and omitted so a single bad entry cannot
// fail a listing.
func (s *Store) Attributes(alias string) (AliasAttributes, error) {
	snap := s.Snapshot()
	if _, ok := snap.entries[alias]; !ok {
		return AliasAttributes{}, fmt.Errorf("%w: %s", ErrNotFound, alias)
	}

	attrs := AliasAttributes{Alias: alias}
	s.populate(AttrCreationDate, func() error {
		attrs.CreationDate = creationDate(snap, alias)
		return nil
	})
	s.populate(AttrEntryType, func() error {
		attrs.EntryType = snap.Classify(alias).String()
		return nil
	})
	s.populate(AttrCertificate, func() (err error) {
		attrs.Certificate, err = certificate(snap, alias)
		return err
	})
	s.populate(AttrCertificateChain, func() (err error) {
		attrs.CertificateChain, err = certificateChain(snap, alias)
		return err
	})
	return attrs, nil
}

// populate runs fn, turning errors and panics into a debug log entry.
func (s *Store) populate(attr string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Debug("unable to populate attribute", slog.String("attribute", attr), slog.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		s.log.Debug("unable to populate attribute", slog.String("attribute", attr), slog.Any("error", err))
	}
}

func creationDate(snap *Snapshot, alias string) string {
	e, ok := snap.entries[alias]
	if !ok || e.Created.IsZero() {
		return ""
	}
	return certinfo.FormatTime(e.Created)
}

func certificate(snap *Snapshot, alias string) (*certinfo.Record, error) {
	e, ok := snap.entries[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, alias)
	}
	// A chain already reports this certificate first.
	if e.Chain() != nil || len(e.Certificates) == 0 {
		return nil, nil
	}
	cert, err := certinfo.Parse(e.Certificates[0])
	if err != nil {
		return nil, err
	}
	rec, err := certinfo.Describe(cert)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func certificateChain(snap *Snapshot, alias string) ([]certinfo.Record, error) {
	e, ok := snap.entries[alias]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, alias)
	}
	chain := e.Chain()
	if chain == nil {
		return nil, nil
	}
	certs, err := certinfo.ParseChain(chain)
	if err != nil {
		return nil, err
	}
	return certinfo.DescribeChain(certs)
}
