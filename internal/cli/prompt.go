package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/semmy-space/kstore/internal/output"
)

// prompt prints a prompt and reads a line of input
func prompt(reader *bufio.Reader, w io.Writer, text string) string {
	fmt.Fprint(w, text)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// input returns the buffered reader over stdin shared by all prompts.
func (a *App) input() *bufio.Reader {
	if a.in == nil {
		a.in = bufio.NewReader(a.stdin)
	}
	return a.in
}

// readSecret reads a secret value. On a terminal the input is not echoed
// and has to be typed twice; otherwise one line is read from stdin.
func (a *App) readSecret(what string) ([]byte, error) {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if a.globals.NoInput {
			return nil, &output.CLIError{
				Message:  fmt.Sprintf("%s required but prompts are disabled (--no-input)", what),
				Hint:     "Pipe the value on stdin",
				ExitCode: output.ExitUsage,
			}
		}
		fmt.Fprintf(a.stderr, "%s: ", what)
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(a.stderr, "Repeat %s: ", strings.ToLower(what))
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)
		if err != nil {
			return nil, err
		}
		if string(first) != string(second) {
			return nil, &output.CLIError{Message: "Values do not match", ExitCode: output.ExitUsage}
		}
		return first, nil
	}

	line, err := a.input().ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, &output.CLIError{
			Message:  fmt.Sprintf("%s required on stdin", what),
			ExitCode: output.ExitUsage,
		}
	}
	return []byte(line), nil
}
