package specsheet

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siqueira-campos/imoveis-jobs/internal/testutil"
)

func newTestRenderer(t *testing.T) (*Renderer, string) {
	t.Helper()
	dir := t.TempDir()
	renderer, err := NewRenderer(RendererOptions{
		OutputDir: dir,
		Now: func() time.Time {
			return time.Date(2025, 6, 1, 15, 4, 0, 0, time.UTC)
		},
	})
	require.NoError(t, err)
	return renderer, dir
}

func TestNewRenderer(t *testing.T) {
	_, err := NewRenderer(RendererOptions{})
	require.Error(t, err)

	_, err = NewRenderer(RendererOptions{OutputDir: "   "})
	require.Error(t, err)
}

func TestRenderer_RenderSpecSheet(t *testing.T) {
	t.Run("writes a pdf named after the property", func(t *testing.T) {
		renderer, dir := newTestRenderer(t)
		property := testutil.NewProperty().WithID("prop-7").Build()

		path, err := renderer.RenderSpecSheet(context.Background(), property)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "ficha_tecnica_prop-7.pdf"), path)

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(raw), "%PDF-1.4"))
		assert.True(t, strings.HasSuffix(strings.TrimSpace(string(raw)), "%%EOF"))

		// WinAnsi-encoded content; check bytes that survive the encoding.
		assert.Contains(t, string(raw), "Ficha T")
		assert.Contains(t, string(raw), "prop-7")
	})

	t.Run("rendering again overwrites the previous sheet", func(t *testing.T) {
		renderer, dir := newTestRenderer(t)
		property := testutil.NewProperty().WithID("prop-7").WithTitle("Título antigo").Build()

		_, err := renderer.RenderSpecSheet(context.Background(), property)
		require.NoError(t, err)

		property.Title = "Título novo"
		path, err := renderer.RenderSpecSheet(context.Background(), property)
		require.NoError(t, err)

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "tulo novo")
		assert.NotContains(t, string(raw), "tulo antigo")

		// No temp files left behind.
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})

	t.Run("creates the output directory when missing", func(t *testing.T) {
		base := t.TempDir()
		renderer, err := NewRenderer(RendererOptions{OutputDir: filepath.Join(base, "docs", "fichas")})
		require.NoError(t, err)

		_, err = renderer.RenderSpecSheet(context.Background(), testutil.NewProperty().Build())
		require.NoError(t, err)
	})

	t.Run("requires a property", func(t *testing.T) {
		renderer, _ := newTestRenderer(t)
		_, err := renderer.RenderSpecSheet(context.Background(), nil)
		require.Error(t, err)
	})

	t.Run("honours a cancelled context", func(t *testing.T) {
		renderer, _ := newTestRenderer(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := renderer.RenderSpecSheet(ctx, testutil.NewProperty().Build())
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestFormatBRL(t *testing.T) {
	cases := []struct {
		value float64
		want  string
	}{
		{650000, "R$ 650.000,00"},
		{1250000, "R$ 1.250.000,00"},
		{1234.56, "R$ 1.234,56"},
		{999, "R$ 999,00"},
		{0.5, "R$ 0,50"},
		{0, "R$ 0,00"},
		{-1500, "-R$ 1.500,00"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, formatBRL(tc.value), "value %v", tc.value)
	}
}

func TestWrapText(t *testing.T) {
	t.Run("keeps short text on one line", func(t *testing.T) {
		assert.Equal(t, []string{"casa ampla"}, wrapText("casa ampla", 20))
	})

	t.Run("breaks on spaces at the width", func(t *testing.T) {
		lines := wrapText("apartamento amplo com varanda gourmet e vista livre", 20)
		require.Greater(t, len(lines), 1)
		for _, line := range lines {
			assert.LessOrEqual(t, len(line), 20)
		}
		assert.Equal(t, "apartamento amplo com varanda gourmet e vista livre", strings.Join(lines, " "))
	})

	t.Run("empty input yields no lines", func(t *testing.T) {
		assert.Nil(t, wrapText("   ", 10))
	})
}

func TestEscapePDFText(t *testing.T) {
	assert.Equal(t, `\(casa\)`, escapePDFText("(casa)"))
	assert.Equal(t, `c:\\docs`, escapePDFText(`c:\docs`))
	assert.Equal(t, "linha um linha dois", escapePDFText("linha um\nlinha dois"))
	// Latin-1 passes through as single bytes; beyond it becomes '?'.
	assert.Equal(t, "\xe1rea", escapePDFText("área"))
	assert.Equal(t, "?", escapePDFText("€"))
}
