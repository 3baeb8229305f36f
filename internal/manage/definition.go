// Package manage runs named key stores as services and dispatches the
// administrative operations on them.
package manage

import (
	"fmt"
	"strings"

	"github.com/semmy-space/kstore/internal/format"
	"github.com/semmy-space/kstore/internal/secrets"
)

// Definition is the configuration of one named store.
type Definition struct {
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Type     string `json:"type" yaml:"type"`
	// Password is a reference resolved by secrets.Resolver.
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	RelativeTo string `json:"relative_to,omitempty" yaml:"relative_to,omitempty"`
	Required   bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Watch      bool   `json:"watch,omitempty" yaml:"watch,omitempty"`
}

// Validate checks the combinations a store cannot be built from.
func (d Definition) Validate() error {
	if d.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidRequest)
	}
	if d.Path == "" && (d.RelativeTo != "" || d.Required) {
		return fmt.Errorf("%w: relative-to and required need a path", ErrInvalidRequest)
	}
	return nil
}

// WithDefaults fills in the default provider.
func (d Definition) WithDefaults() Definition {
	if d.Provider == "" {
		d.Provider = format.DefaultProvider
	}
	return d
}

// rebuildRequired reports whether moving from d to next needs a new store
// instance. Other attributes are applied to the running service.
func (d Definition) rebuildRequired(next Definition) bool {
	return d.Provider != next.Provider ||
		d.Type != next.Type ||
		d.Path != next.Path ||
		d.RelativeTo != next.RelativeTo ||
		d.Password != next.Password
}

// Redacted hides a password given in clear text. References are kept.
func (d Definition) Redacted() Definition {
	if d.Password == "" {
		return d
	}
	for _, scheme := range []string{secrets.SchemeKeyring, secrets.SchemeEnv, secrets.SchemeFile} {
		if strings.HasPrefix(d.Password, scheme+":") {
			return d
		}
	}
	d.Password = "******"
	return d
}
