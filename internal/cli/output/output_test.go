package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTest(mode OutputMode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"TEXT", ModeText},
		{"md", ModeMarkdown},
		{"markdown", ModeMarkdown},
		{" json ", ModeJSON},
		{"xml", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}
}

func TestRenderer_EffectiveMode(t *testing.T) {
	r, _, _ := newTest(ModeAuto, true)
	assert.Equal(t, ModeText, r.EffectiveMode())

	r, _, _ = newTest(ModeAuto, false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())

	r, _, _ = newTest(ModeJSON, true)
	assert.Equal(t, ModeJSON, r.EffectiveMode())

	r, _, _ = newTest("", false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestRenderer_NotATerminal(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
}

func TestRenderer_HeaderMarkdown(t *testing.T) {
	r, out, _ := newTest(ModeMarkdown, false)
	r.Header(2, "Levels")
	assert.Equal(t, "## Levels\n\n", out.String())
}

func TestRenderer_MessagesGoToTheRightStream(t *testing.T) {
	r, out, errOut := newTest(ModeMarkdown, false)

	r.Success("done")
	r.Warning("careful")
	r.Error("broken")

	assert.Equal(t, "OK: done\n", out.String())
	assert.Contains(t, errOut.String(), "Warning: careful")
	assert.Contains(t, errOut.String(), "Error: broken")
	assert.NotContains(t, errOut.String(), "\x1b[")
}

func TestRenderer_Table(t *testing.T) {
	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTest(ModeMarkdown, false)
		r.Table([]string{"Metric", "Count"}, [][]string{{"Tables", "8"}})
		assert.Contains(t, out.String(), "| Metric | Count |")
		assert.Contains(t, out.String(), "| Tables | 8 |")
	})

	t.Run("text", func(t *testing.T) {
		r, out, _ := newTest(ModeText, false)
		r.Table([]string{"Metric", "Count"}, [][]string{{"Tables", "8"}})
		assert.Contains(t, out.String(), "Tables")
		assert.Contains(t, out.String(), "┌")
	})
}

func TestRenderer_JSON(t *testing.T) {
	r, out, _ := newTest(ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"n": 1}))
	assert.JSONEq(t, `{"n":1}`, out.String())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Sub", FormatHeader(3, "Sub"))
	assert.Equal(t, "- **Tables**: 8", FormatKeyValue("Tables", "8"))
	assert.Equal(t, "_none_", FormatList(nil))
	assert.Equal(t, "- a\n- b", FormatList([]string{"a", "b"}))
}
