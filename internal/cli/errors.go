package cli

import (
	"errors"

	"github.com/semmy-space/kstore/internal/format"
	"github.com/semmy-space/kstore/internal/keystore"
	"github.com/semmy-space/kstore/internal/manage"
	"github.com/semmy-space/kstore/internal/output"
	"github.com/semmy-space/kstore/internal/secrets"
)

// errorCodes is tested in order; the first sentinel err wraps decides the
// exit code. Specific causes come before the keystore taxonomy that
// wraps them.
var errorCodes = []struct {
	target error
	code   int
	hint   string
}{
	{format.ErrWrongPassword, output.ExitAuth, "Check the password reference in the store definition"},
	{secrets.ErrUnresolved, output.ExitAuth, "Store the password with: kstore password set NAME"},
	{format.ErrCorrupt, output.ExitDataError, ""},
	{format.ErrUnsupported, output.ExitDataError, ""},
	{manage.ErrUnknownStore, output.ExitNotFound, "List stores with: kstore store list"},
	{keystore.ErrNotFound, output.ExitNotFound, "List aliases with: kstore alias list"},
	{secrets.ErrNotFound, output.ExitNotFound, ""},
	{manage.ErrStoreExists, output.ExitConflict, ""},
	{manage.ErrNotStarted, output.ExitUnavailable, ""},
	{manage.ErrInvalidRequest, output.ExitUsage, ""},
	{keystore.ErrKeyStoreOperation, output.ExitUsage, ""},
	{keystore.ErrForeignLoadKey, output.ExitUsage, ""},
	{keystore.ErrNoBackingFile, output.ExitIOError, "Give the store a path to persist it"},
	{keystore.ErrPersistence, output.ExitIOError, ""},
	{keystore.ErrInitialization, output.ExitConfigError, ""},
}

// cliError gives err the exit code of the first sentinel it wraps.
func cliError(err error) error {
	if err == nil || isCLIError(err) {
		return err
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.target) {
			return output.Wrap(ec.code, err).WithHint(ec.hint)
		}
	}
	return output.Wrap(output.ExitGeneral, err)
}
