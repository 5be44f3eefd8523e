// Package specsheet renders property spec sheet PDFs (fichas técnicas).
//
// The writer emits a minimal single-page PDF 1.4 document by hand: one page,
// one Helvetica font, one content stream. Listings never need more than that,
// and the output opens in every viewer we care about.
package specsheet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

// RendererOptions configures the spec sheet renderer.
type RendererOptions struct {
	// OutputDir is where rendered PDFs are written. Created if missing.
	OutputDir string

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Renderer writes property spec sheets to the local filesystem.
type Renderer struct {
	outputDir string
	now       func() time.Time
}

// NewRenderer validates options and constructs a Renderer.
func NewRenderer(opts RendererOptions) (*Renderer, error) {
	dir := strings.TrimSpace(opts.OutputDir)
	if dir == "" {
		return nil, errors.New("output directory is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Renderer{outputDir: dir, now: now}, nil
}

// RenderSpecSheet renders the property into a PDF and returns the file path.
// Rendering the same property overwrites the previous sheet so the file on
// disk always matches the newest completed job.
func (r *Renderer) RenderSpecSheet(ctx context.Context, property *model.Property) (string, error) {
	if property == nil {
		return "", errors.New("property is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	doc := buildDocument(property, r.now())
	path := filepath.Join(r.outputDir, fmt.Sprintf("ficha_tecnica_%s.pdf", property.ID))

	// Write to a temp file and rename so readers never see a partial PDF.
	tmp, err := os.CreateTemp(r.outputDir, ".ficha_*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write spec sheet: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close spec sheet: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("publish spec sheet: %w", err)
	}

	return path, nil
}

func buildDocument(p *model.Property, generatedAt time.Time) []byte {
	lines := []textLine{
		{text: "Siqueira Campos Imóveis", size: 18, gap: 30},
		{text: "Ficha Técnica do Imóvel", size: 14, gap: 26},
		{text: p.Title, size: 12, gap: 22},
		{text: fmt.Sprintf("Código: %s", p.ID), size: 10, gap: 16},
		{text: fmt.Sprintf("Tipo: %s", p.Kind), size: 10, gap: 16},
		{text: fmt.Sprintf("Endereço: %s", p.Address), size: 10, gap: 16},
		{text: fmt.Sprintf("Bairro: %s - %s", p.District, p.City), size: 10, gap: 16},
		{text: fmt.Sprintf("CEP: %s", p.PostalCode), size: 10, gap: 16},
		{text: fmt.Sprintf("Quartos: %d (sendo %d suítes)", p.Bedrooms, p.Suites), size: 10, gap: 16},
		{text: fmt.Sprintf("Vagas de garagem: %d", p.ParkingSpots), size: 10, gap: 16},
		{text: fmt.Sprintf("Área: %.0f m²", p.AreaM2), size: 10, gap: 16},
		{text: fmt.Sprintf("Valor: %s", formatBRL(p.Price)), size: 12, gap: 22},
	}

	if desc := strings.TrimSpace(p.Description); desc != "" {
		lines = append(lines, textLine{text: "Descrição:", size: 10, gap: 16})
		for _, wrapped := range wrapText(desc, 90) {
			lines = append(lines, textLine{text: wrapped, size: 10, gap: 14})
		}
	}

	lines = append(lines, textLine{
		text: fmt.Sprintf("Gerado em %s", generatedAt.Format("02/01/2006 15:04")),
		size: 8,
		gap:  24,
	})

	return writePDF(lines)
}

type textLine struct {
	text string
	size int
	gap  int // vertical advance before this line, in points
}

// writePDF assembles a single-page A4 document with the given text lines.
func writePDF(lines []textLine) []byte {
	var content bytes.Buffer
	content.WriteString("BT\n")
	y := 800
	for _, line := range lines {
		y -= line.gap
		fmt.Fprintf(&content, "/F1 %d Tf\n1 0 0 1 50 %d Tm\n(%s) Tj\n", line.size, y, escapePDFText(line.text))
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)

	return buf.Bytes()
}

// escapePDFText converts a UTF-8 string to a WinAnsi PDF string literal.
// Characters outside Latin-1 are replaced with '?'.
func escapePDFText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n' || r == '\r':
			b.WriteByte(' ')
		case r < 0x20:
			// drop control characters
		case r <= 0xFF:
			b.WriteByte(byte(r))
		default:
			b.WriteByte('?')
		}
	}
	return b.String()
}

// formatBRL formats a price as Brazilian currency, e.g. "R$ 1.250.000,00".
func formatBRL(value float64) string {
	negative := value < 0
	if negative {
		value = -value
	}

	cents := int64(value*100 + 0.5)
	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	var grouped strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(d)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), frac)
}

// wrapText splits s into lines of at most width characters, breaking on spaces.
func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
			continue
		}
		current += " " + word
	}
	lines = append(lines, current)
	return lines
}
