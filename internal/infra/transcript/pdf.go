// Package transcript renders meeting transcripts as PDF documents.
package transcript

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// Section is one titled block of the document
type Section struct {
	Heading string
	Body    string
}

// Renderer draws transcripts. Core fonts only cover Latin-1; set FontPath
// to a TrueType font to render other scripts.
type Renderer struct {
	FontPath string
	now      func() time.Time
}

// NewRenderer creates a renderer; fontPath may be empty
func NewRenderer(fontPath string) *Renderer {
	return &Renderer{FontPath: fontPath, now: time.Now}
}

// Render produces the PDF bytes
func (r *Renderer) Render(title string, sections []Section) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("meetbot", true)

	family := "Helvetica"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if r.FontPath != "" {
		family = "body"
		pdf.AddUTF8Font(family, "", r.FontPath)
		pdf.AddUTF8Font(family, "B", r.FontPath)
		tr = func(s string) string { return s }
	}

	pdf.AddPage()
	pdf.SetFont(family, "B", 18)
	pdf.MultiCell(0, 10, tr(title), "", "L", false)
	pdf.SetFont(family, "", 9)
	pdf.CellFormat(0, 6, r.now().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for _, s := range sections {
		pdf.SetFont(family, "B", 13)
		pdf.MultiCell(0, 8, tr(s.Heading), "", "L", false)
		pdf.SetFont(family, "", 11)
		pdf.MultiCell(0, 6, tr(s.Body), "", "L", false)
		pdf.Ln(4)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render transcript: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write transcript: %w", err)
	}
	return buf.Bytes(), nil
}
