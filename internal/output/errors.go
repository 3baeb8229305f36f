package output

import (
	"errors"
	"fmt"
)

// Exit codes following sysexits.h convention
const (
	ExitOK          = 0  // Success
	ExitGeneral     = 1  // General error
	ExitUsage       = 2  // Invalid usage / bad arguments
	ExitAuth        = 3  // Wrong password or unresolvable password reference
	ExitNotFound    = 4  // Store or alias not found
	ExitConflict    = 5  // Conflict (store already exists)
	ExitUnavailable = 6  // Store not started or reload required
	ExitConfigError = 10 // Configuration error
	ExitDataError   = 65 // Corrupt or unsupported store file (EX_DATAERR)
	ExitIOError     = 74 // Store could not be read or written (EX_IOERR)
)

// CLIError represents a structured error with exit code and optional hint
type CLIError struct {
	ExitCode int
	Message  string
	Hint     string
	Err      error
}

// Error implements the error interface
func (e *CLIError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError
func NewCLIError(code int, msg string) *CLIError {
	return &CLIError{
		ExitCode: code,
		Message:  msg,
	}
}

// Wrap creates a CLIError carrying err's message.
func Wrap(code int, err error) *CLIError {
	return &CLIError{ExitCode: code, Message: err.Error(), Err: err}
}

// WithHint adds a user-facing hint to the error
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// ExitCode returns the exit code for err: the CLIError's code if err wraps
// one, ExitGeneral otherwise.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.ExitCode
	}
	return ExitGeneral
}

// PrintError prints err via the formatter, followed by its hint if any.
// The caller exits with ExitCode(err).
func PrintError(formatter Formatter, err error) {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		formatter.PrintError(cliErr)
		if cliErr.Hint != "" {
			formatter.PrintHint(cliErr.Hint)
		}
		return
	}

	formatter.PrintError(fmt.Errorf("unexpected: %w", err))
}
