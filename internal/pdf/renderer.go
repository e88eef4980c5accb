package pdf

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	titleFontSize = 16.0
	bodyFontSize  = 12.0
	lineHeight    = 10.0

	// chunkSize bounds how much text goes into a single MultiCell call so a
	// very long summary cannot blow up one layout pass.
	chunkSize = 2000
)

// Renderer produces the exported summary document for a lecture.
type Renderer struct{}

// NewRenderer creates a PDF renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render lays out the title and body text into a PDF and returns its bytes.
// Body text is written in bounded chunks.
func (r *Renderer) Render(title, body string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()

	doc.SetFont("Arial", "B", titleFontSize)
	doc.MultiCell(0, lineHeight, sanitize("Lecture: "+title), "", "L", false)
	doc.Ln(lineHeight / 2)

	doc.SetFont("Arial", "", bodyFontSize)
	doc.MultiCell(0, lineHeight, "Summary:", "", "L", false)

	for _, chunk := range chunks(sanitize(body), chunkSize) {
		doc.MultiCell(0, lineHeight, chunk, "", "L", false)
		if doc.Err() {
			break
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sanitize makes text safe for the cp1252 core fonts: decompose, strip
// combining marks, and replace anything still outside Latin-1 with '?'.
func sanitize(text string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(func(r rune) rune {
			if r > 0xFF && r != '\n' {
				return '?'
			}
			return r
		}),
		norm.NFC,
	)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// chunks splits text into pieces of at most size runes, cutting on line
// boundaries where possible.
func chunks(text string, size int) []string {
	if text == "" {
		return nil
	}

	var out []string
	for len(text) > size {
		cut := size
		if idx := strings.LastIndexByte(text[:size], '\n'); idx > 0 {
			cut = idx + 1
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	out = append(out, text)
	return out
}
