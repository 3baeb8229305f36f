package cli

import (
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/semmy-space/kstore/internal/certinfo"
	"github.com/semmy-space/kstore/internal/keystore"
	"github.com/semmy-space/kstore/internal/manage"
	"github.com/semmy-space/kstore/internal/output"
)

// AliasCmd holds alias subcommands
type AliasCmd struct {
	List        AliasListCmd        `cmd:"" help:"List aliases of a store"`
	Show        AliasShowCmd        `cmd:"" help:"Show the attributes of an alias"`
	Delete      AliasDeleteCmd      `cmd:"" help:"Delete an alias"`
	ImportCert  AliasImportCertCmd  `cmd:"import-cert" help:"Store a certificate chain, optionally with its private key"`
	SetPassword AliasSetPasswordCmd `cmd:"set-password" help:"Store a password read from stdin"`
	SetSecret   AliasSetSecretCmd   `cmd:"set-secret" help:"Store a secret key read from stdin or generated"`
}

// aliasRow is one line of alias list output
type aliasRow struct {
	Alias   string `json:"alias"`
	Type    string `json:"entry-type"`
	Created string `json:"creation-date"`
	Subject string `json:"subject,omitempty"`
}

var aliasColumns = []output.Column{
	{Name: "Alias", Key: "Alias"},
	{Name: "Type", Key: "Type"},
	{Name: "Created", Key: "Created"},
	{Name: "Subject", Key: "Subject", Width: 40},
}

// AliasListCmd implements alias list command
type AliasListCmd struct {
	StoreFlag
}

// Run executes the list command
func (cmd *AliasListCmd) Run(fp *FormatterProvider, app *App) error {
	name, err := app.StoreName(cmd.Store)
	if err != nil {
		return err
	}
	result, err := app.Execute(manage.Request{Op: manage.OpListAliases, Store: name})
	if err != nil {
		return err
	}

	aliases := result.([]string)
	rows := make([]aliasRow, 0, len(aliases))
	for _, alias := range aliases {
		attrs, err := app.Execute(manage.Request{Op: manage.OpReadAlias, Store: name, Alias: alias})
		if err != nil {
			return err
		}
		a := attrs.(keystore.AliasAttributes)
		row := aliasRow{Alias: alias, Type: a.EntryType, Created: a.CreationDate}
		switch {
		case a.Certificate != nil:
			row.Subject = a.Certificate.Subject
		case len(a.CertificateChain) > 0:
			row.Subject = a.CertificateChain[0].Subject
		}
		rows = append(rows, row)
	}

	return fp.Formatter.PrintList(rows, aliasColumns)
}

// AliasShowCmd implements alias show command
type AliasShowCmd struct {
	StoreFlag
	Alias string `arg:"" help:"Alias name"`
}

// Run executes the show command
func (cmd *AliasShowCmd) Run(fp *FormatterProvider, app *App) error {
	name, err := app.StoreName(cmd.Store)
	if err != nil {
		return err
	}
	result, err := app.Execute(manage.Request{Op: manage.OpReadAlias, Store: name, Alias: cmd.Alias})
	if err != nil {
		return err
	}
	return fp.Formatter.Print(result)
}

// AliasDeleteCmd implements alias delete command
type AliasDeleteCmd struct {
	StoreFlag
	Alias   string `arg:"" help:"Alias name"`
	Confirm bool   `help:"Confirm deletion"`
}

// Run executes the delete command
func (cmd *AliasDeleteCmd) Run(app *App) error {
	if err := app.requireConfirmation(cmd.Confirm, "Deletion"); err != nil {
		return err
	}
	name, err := app.StoreName(cmd.Store)
	if err != nil {
		return err
	}
	if app.globals.DryRun {
		app.Notef("[DRY RUN] Would delete alias %s from store %s", cmd.Alias, name)
		return nil
	}

	if _, err := app.Execute(manage.Request{Op: manage.OpDeleteAlias, Store: name, Alias: cmd.Alias, Persist: true}); err != nil {
		return err
	}
	app.Notef("Deleted alias %s from store %s", cmd.Alias, name)
	return nil
}

// AliasImportCertCmd implements alias import-cert command
type AliasImportCertCmd struct {
	StoreFlag
	Alias string `arg:"" help:"Alias name"`
	Cert  string `help:"Certificate file: PEM chain leaf first, DER, or OpenSSH certificate" type:"existingfile" required:""`
	Key   string `help:"PKCS#8 private key file, PEM or DER" type:"existingfile"`
}

// Run executes the import-cert command
func (cmd *AliasImportCertCmd) Run(fp *FormatterProvider, app *App) error {
	name, err := app.StoreName(cmd.Store)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(cmd.Cert)
	if err != nil {
		return output.Wrap(output.ExitIOError, err)
	}
	chain, err := certinfo.Decode(data)
	if err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to read certificate: %v", err),
			ExitCode: output.ExitDataError,
			Err:      err,
		}
	}

	entry := keystore.Entry{Alias: cmd.Alias, Certificates: chain}
	if cmd.Key != "" {
		if entry.PrivateKey, err = readPrivateKey(cmd.Key); err != nil {
			return err
		}
	}

	return putEntry(fp, app, name, entry)
}

// readPrivateKey returns the PKCS#8 DER form of the key in path.
func readPrivateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, output.Wrap(output.ExitIOError, err)
	}
	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	}
	if _, err := x509.ParsePKCS8PrivateKey(der); err != nil {
		return nil, &output.CLIError{
			Message:  fmt.Sprintf("Failed to read private key: %v", err),
			Hint:     "Convert the key with: openssl pkcs8 -topk8 -nocrypt",
			ExitCode: output.ExitDataError,
			Err:      err,
		}
	}
	return der, nil
}

// AliasSetPasswordCmd implements alias set-password command
type AliasSetPasswordCmd struct {
	StoreFlag
	Alias    string `arg:"" help:"Alias name"`
	Enabling bool   `help:"Store as an enabling password"`
}

// Run executes the set-password command
func (cmd *AliasSetPasswordCmd) Run(fp *FormatterProvider, app *App) error {
	name, err := app.StoreName(cmd.Store)
	if err != nil {
		return err
	}
	password, err := app.readSecret("Password")
	if err != nil {
		return err
	}
	return putEntry(fp, app, name, keystore.Entry{Alias: cmd.Alias, Password: password, Enabling: cmd.Enabling})
}

// AliasSetSecretCmd implements alias set-secret command
type AliasSetSecretCmd struct {
	StoreFlag
	Alias    string `arg:"" help:"Alias name"`
	Generate int    `help:"Generate a random key of this many bytes instead of reading one" placeholder:"BYTES"`
}

// Run executes the set-secret command
func (cmd *AliasSetSecretCmd) Run(fp *FormatterProvider, app *App) error {
	name, err := app.StoreName(cmd.Store)
	if err != nil {
		return err
	}

	var secret []byte
	switch {
	case cmd.Generate < 0:
		return &output.CLIError{Message: "--generate needs a positive size", ExitCode: output.ExitUsage}
	case cmd.Generate > 0:
		secret = make([]byte, cmd.Generate)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
	default:
		if secret, err = app.readSecret("Secret"); err != nil {
			return err
		}
	}
	return putEntry(fp, app, name, keystore.Entry{Alias: cmd.Alias, SecretKey: secret})
}

// putEntry stores entry and saves the store, then shows the new alias.
func putEntry(fp *FormatterProvider, app *App, store string, entry keystore.Entry) error {
	if app.globals.DryRun {
		app.Notef("[DRY RUN] Would store %s as alias %s in store %s", entry.Kind(), entry.Alias, store)
		return nil
	}
	if _, err := app.Execute(manage.Request{
		Op:      manage.OpPutAlias,
		Store:   store,
		Alias:   entry.Alias,
		Entry:   &entry,
		Persist: true,
	}); err != nil {
		return err
	}
	app.Notef("Stored alias %s in store %s", entry.Alias, store)

	result, err := app.Execute(manage.Request{Op: manage.OpReadAlias, Store: store, Alias: entry.Alias})
	if err != nil {
		return err
	}
	return fp.Formatter.Print(result)
}
