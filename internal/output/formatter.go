package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"
)

// Formatter is the interface for output formatting
type Formatter interface {
	Print(data any) error
	PrintList(items any, columns []Column) error
	PrintError(err error)
	PrintHint(msg string)
}

// Column defines a column for table/list output
type Column struct {
	Name  string // Display name
	Key   string // Struct field name or map key
	Width int    // Width for rich mode (0 = auto)
}

// Modes accepted by New.
var Modes = []string{"json", "plain", "rich", "yaml"}

// New creates a formatter for the specified mode writing to stdout and stderr
func New(mode string) Formatter {
	return NewWithWriters(mode, os.Stdout, os.Stderr)
}

// NewWithWriters creates a formatter for mode writing to out and errOut
func NewWithWriters(mode string, out, errOut io.Writer) Formatter {
	switch mode {
	case "json":
		return &jsonFormatter{out: out, errOut: errOut}
	case "yaml":
		return &yamlFormatter{out: out, errOut: errOut}
	case "rich":
		return &richFormatter{out: out, errOut: errOut, profile: termenv.NewOutput(out).ColorProfile()}
	default:
		return &plainFormatter{out: out, errOut: errOut}
	}
}

// NewJSON creates a JSON formatter with optional results-only mode
func NewJSON(out, errOut io.Writer, resultsOnly bool) Formatter {
	return &jsonFormatter{out: out, errOut: errOut, resultsOnly: resultsOnly}
}

// jsonFormatter outputs JSON
type jsonFormatter struct {
	out, errOut io.Writer
	resultsOnly bool
}

func (f *jsonFormatter) Print(data any) error {
	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *jsonFormatter) PrintList(items any, columns []Column) error {
	// If results-only mode, print raw array
	if f.resultsOnly {
		return f.Print(items)
	}

	envelope := map[string]any{
		"data":  items,
		"count": sliceLen(items),
	}
	return f.Print(envelope)
}

func (f *jsonFormatter) PrintError(err error) {
	enc := json.NewEncoder(f.errOut)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]string{"error": err.Error()})
}

func (f *jsonFormatter) PrintHint(msg string) {
	// Hints would corrupt machine-readable output
}

// yamlFormatter outputs YAML
type yamlFormatter struct {
	out, errOut io.Writer
}

func (f *yamlFormatter) Print(data any) error {
	enc := yaml.NewEncoder(f.out)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

func (f *yamlFormatter) PrintList(items any, columns []Column) error {
	return f.Print(items)
}

func (f *yamlFormatter) PrintError(err error) {
	_ = yaml.NewEncoder(f.errOut).Encode(map[string]string{"error": err.Error()})
}

func (f *yamlFormatter) PrintHint(msg string) {
	fmt.Fprintf(f.errOut, "# hint: %s\n", msg)
}

// plainFormatter outputs tab-separated values
type plainFormatter struct {
	out, errOut io.Writer
}

func (f *plainFormatter) Print(data any) error {
	return printFields(f.out, data, func(key string) string { return key }, func(value string) string { return value })
}

func (f *plainFormatter) PrintList(items any, columns []Column) error {
	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.Name
	}
	rows, err := listRows(items, columns)
	if err != nil {
		return err
	}

	fmt.Fprintln(f.out, strings.Join(headers, "\t"))
	for _, row := range rows {
		values := make([]string, len(columns))
		for i, col := range columns {
			values[i] = row[col.Key]
		}
		fmt.Fprintln(f.out, strings.Join(values, "\t"))
	}
	return nil
}

func (f *plainFormatter) PrintError(err error) {
	fmt.Fprintf(f.errOut, "error: %v\n", err)
}

func (f *plainFormatter) PrintHint(msg string) {
	fmt.Fprintf(f.errOut, "hint: %v\n", msg)
}

// richFormatter outputs styled content for terminal
type richFormatter struct {
	out, errOut io.Writer
	profile     termenv.Profile
}

func (f *richFormatter) render(style lipgloss.Style, s string) string {
	if f.profile == termenv.Ascii {
		return s
	}
	return style.Render(s)
}

func (f *richFormatter) Print(data any) error {
	keyStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	return printFields(f.out, data,
		func(key string) string { return f.render(keyStyle, key) },
		func(value string) string { return f.render(valueStyle, value) })
}

func (f *richFormatter) PrintList(items any, columns []Column) error {
	rows, err := listRows(items, columns)
	if err != nil {
		return err
	}
	RenderTable(f.out, columns, rows, f.profile != termenv.Ascii)
	return nil
}

func (f *richFormatter) PrintError(err error) {
	errorStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("9"))

	fmt.Fprintf(f.errOut, "%s\n", f.render(errorStyle, "error: "+err.Error()))
}

func (f *richFormatter) PrintHint(msg string) {
	hintStyle := lipgloss.NewStyle().
		Faint(true).
		Foreground(lipgloss.Color("8"))

	fmt.Fprintf(f.errOut, "%s\n", f.render(hintStyle, "hint: "+msg))
}

// printFields prints a struct as "key: value" lines named after its json
// tags. Nested values are rendered as an indented YAML block. Slices
// print one element per line, structs separated by a blank line.
func printFields(w io.Writer, data any, key, value func(string) string) error {
	v := indirect(reflect.ValueOf(data))
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			field := t.Field(i)
			name, omitEmpty, ok := jsonName(field)
			if !ok || (omitEmpty && v.Field(i).IsZero()) {
				continue
			}
			fv := indirect(v.Field(i))
			if !fv.IsValid() {
				fmt.Fprintf(w, "%s:\n", key(name))
				continue
			}
			if isScalar(fv) {
				fmt.Fprintf(w, "%s: %s\n", key(name), value(fmt.Sprintf("%v", fv.Interface())))
				continue
			}
			block, err := yaml.Marshal(fv.Interface())
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s:\n%s", key(name), indent(string(block), "  "))
		}
		return nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			item := indirect(v.Index(i))
			if !item.IsValid() {
				continue
			}
			if isScalar(item) {
				fmt.Fprintln(w, value(fmt.Sprintf("%v", item.Interface())))
				continue
			}
			if i > 0 {
				fmt.Fprintln(w)
			}
			if err := printFields(w, item.Interface(), key, value); err != nil {
				return err
			}
		}
		return nil
	case reflect.Invalid:
		return nil
	default:
		fmt.Fprintln(w, value(fmt.Sprintf("%v", v.Interface())))
		return nil
	}
}

// listRows extracts the column values of every item in a slice.
func listRows(items any, columns []Column) ([]map[string]string, error) {
	v := indirect(reflect.ValueOf(items))
	if v.Kind() != reflect.Slice {
		return nil, fmt.Errorf("PrintList requires a slice")
	}

	rows := make([]map[string]string, v.Len())
	for i := 0; i < v.Len(); i++ {
		item := indirect(v.Index(i))
		row := make(map[string]string, len(columns))
		for _, col := range columns {
			var field reflect.Value
			switch item.Kind() {
			case reflect.Map:
				field = item.MapIndex(reflect.ValueOf(col.Key))
			case reflect.Struct:
				field = item.FieldByName(col.Key)
			}
			if field = indirect(field); field.IsValid() {
				row[col.Key] = fmt.Sprintf("%v", field.Interface())
			}
		}
		rows[i] = row
	}
	return rows, nil
}

func jsonName(f reflect.StructField) (name string, omitEmpty, ok bool) {
	if !f.IsExported() {
		return "", false, false
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, false
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, strings.Contains(opts, "omitempty"), true
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isScalar(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		return false
	default:
		return true
	}
}

func sliceLen(items any) int {
	v := indirect(reflect.ValueOf(items))
	if v.Kind() == reflect.Slice {
		return v.Len()
	}
	return 0
}

func indent(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		b.WriteString(prefix)
		b.WriteString(line)
	}
	return b.String()
}
