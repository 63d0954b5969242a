package output

import (
	"bytes"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"TEXT", ModeText},
		{"markdown", ModeMarkdown},
		{"md", ModeMarkdown},
		{" json ", ModeJSON},
		{"yaml", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  OutputMode
		isTTY bool
		want  OutputMode
	}{
		{"auto on tty", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeJSON},
		{"explicit text piped", ModeText, false, ModeText},
		{"explicit json on tty", ModeJSON, true, ModeJSON},
		{"markdown", ModeMarkdown, false, ModeMarkdown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, tt.isTTY, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestNewRendererBufferIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestTableText(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, false, ModeText)
	r.Table([]string{"alias", "table"}, [][]string{{"o", "sales.orders"}})

	s := out.String()
	assert.Contains(t, s, "ALIAS")
	assert.Contains(t, s, "sales.orders")
	assert.Contains(t, s, "┌")
	assert.False(t, ansi.MatchString(s))
}

func TestTableMarkdown(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, false, ModeMarkdown)
	r.Table([]string{"alias", "table"}, [][]string{{"o", "sales.orders"}})

	assert.Contains(t, out.String(), "| o | sales.orders |")
}

func TestJSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, false, ModeJSON)
	require.NoError(t, r.JSON(map[string]int{"scopes": 2}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 2, got["scopes"])
}

func TestMessagesGoToStderr(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRendererWithTTY(&out, &errOut, false, ModeText)
	r.Success("synced")
	r.Warning("stale")
	r.Error("failed")
	r.Muted("hint")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "✓ synced")
	assert.Contains(t, errOut.String(), "! stale")
	assert.Contains(t, errOut.String(), "✗ failed")
	assert.Contains(t, errOut.String(), "hint")
	assert.False(t, ansi.MatchString(errOut.String()))
}

func TestHeader(t *testing.T) {
	var out bytes.Buffer
	r := NewRendererWithTTY(&out, &bytes.Buffer{}, false, ModeMarkdown)
	r.Header(2, "Scopes")
	assert.Equal(t, "## Scopes\n\n", out.String())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "- **Scope:** 1", FormatKeyValue("Scope", "1"))
	assert.Equal(t, "```sql\nSELECT 1\n```", FormatCodeBlock("sql", "SELECT 1\n"))
}
