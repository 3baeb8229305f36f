package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type nested struct {
	Algorithm string `json:"algorithm" yaml:"algorithm"`
	Value     string `json:"value" yaml:"value"`
}

type record struct {
	Alias   string   `json:"alias" yaml:"alias"`
	Kind    string   `json:"entry-type,omitempty" yaml:"entry-type,omitempty"`
	Skipped string   `json:"-" yaml:"-"`
	Prints  []nested `json:"fingerprints,omitempty" yaml:"fingerprints,omitempty"`
	Missing *nested  `json:"missing,omitempty" yaml:"missing,omitempty"`
}

func sampleRecord() record {
	return record{
		Alias:   "db",
		Kind:    "PasswordEntry",
		Skipped: "secret",
		Prints:  []nested{{Algorithm: "SHA-1", Value: "abcd"}},
	}
}

func TestPlainPrintStruct(t *testing.T) {
	var out bytes.Buffer
	f := NewWithWriters("plain", &out, &bytes.Buffer{})
	require.NoError(t, f.Print(sampleRecord()))

	want := "alias: db\n" +
		"entry-type: PasswordEntry\n" +
		"fingerprints:\n" +
		"  - algorithm: SHA-1\n" +
		"    value: abcd\n"
	assert.Equal(t, want, out.String())
}

func TestPlainPrintSlices(t *testing.T) {
	var out bytes.Buffer
	f := NewWithWriters("plain", &out, &bytes.Buffer{})
	require.NoError(t, f.Print([]string{"a", "b"}))
	assert.Equal(t, "a\nb\n", out.String())

	out.Reset()
	require.NoError(t, f.Print([]record{{Alias: "a"}, {Alias: "b"}}))
	assert.Equal(t, "alias: a\n\nalias: b\n", out.String())
}

func TestPlainPrintList(t *testing.T) {
	var out bytes.Buffer
	f := NewWithWriters("plain", &out, &bytes.Buffer{})
	columns := []Column{{Name: "ALIAS", Key: "Alias"}, {Name: "TYPE", Key: "Kind"}}
	require.NoError(t, f.PrintList([]record{{Alias: "a", Kind: "SecretKeyEntry"}}, columns))
	assert.Equal(t, "ALIAS\tTYPE\na\tSecretKeyEntry\n", out.String())

	assert.Error(t, f.PrintList("not a slice", columns))
}

func TestJSONPrintList(t *testing.T) {
	var out bytes.Buffer
	f := NewWithWriters("json", &out, &bytes.Buffer{})
	require.NoError(t, f.PrintList([]string{"a", "b"}, nil))

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, float64(2), got["count"])
	assert.Equal(t, []any{"a", "b"}, got["data"])
}

func TestYAMLPrint(t *testing.T) {
	var out, errOut bytes.Buffer
	f := NewWithWriters("yaml", &out, &errOut)
	require.NoError(t, f.Print(sampleRecord()))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "db", got["alias"])
	assert.NotContains(t, got, "Skipped")

	f.PrintHint("try again")
	assert.Equal(t, "# hint: try again\n", errOut.String())
}

func TestRichWithoutTerminalIsUnstyled(t *testing.T) {
	var out bytes.Buffer
	f := NewWithWriters("rich", &out, &bytes.Buffer{})
	require.NoError(t, f.Print(record{Alias: "db"}))
	assert.Equal(t, "alias: db\n", out.String())
}

func TestRenderTableTruncatesColumns(t *testing.T) {
	var out bytes.Buffer
	columns := []Column{{Name: "NAME", Key: "name"}, {Name: "NOTE", Key: "note", Width: 8}}
	RenderTable(&out, columns, []map[string]string{
		{"name": "main", "note": "a long note"},
		{"name": "x", "note": "short"},
	}, false)

	assert.Contains(t, out.String(), "NAME")
	assert.Contains(t, out.String(), "a lon...")
	assert.Contains(t, out.String(), "short")

	out.Reset()
	RenderTable(&out, columns, nil, false)
	assert.Empty(t, out.String())
}
