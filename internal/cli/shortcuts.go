package cli

// LsCmd provides desire-path shortcuts for listing resources
// These are aliases to full command paths for faster interactive use
type LsCmd struct {
	Stores  StoreListCmd `cmd:"" help:"List stores (shortcut for store list)"`
	Aliases AliasListCmd `cmd:"" help:"List aliases (shortcut for alias list)"`
	Paths   PathListCmd  `cmd:"" help:"List named directories (shortcut for path list)"`
}
