package pdf

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"strings"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// Document abstracts one decoded PDF for page-level access. The extraction
// pipeline holds exactly one open Document per run.
type Document interface {
	NumPage() int
	// PageText returns the embedded text layer of page i (0-based), no OCR.
	PageText(i int) (string, error)
	// RenderPage rasterizes page i at the given scale factor and returns
	// JPEG bytes suitable for OCR input.
	RenderPage(i int, scale float64) ([]byte, error)
	Close() error
}

// Opener abstracts opening a PDF path into a Document.
type Opener interface {
	Open(path string) (Document, error)
}

// FitzOpener opens documents with go-fitz (MuPDF).
type FitzOpener struct {
	// JPEGQuality for rendered pages; 0 means the default of 85.
	JPEGQuality int
}

func NewFitzOpener() *FitzOpener { return &FitzOpener{} }

func (o *FitzOpener) Open(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	q := o.JPEGQuality
	if q <= 0 {
		q = 85
	}
	return &fitzDocument{doc: doc, quality: q}, nil
}

type fitzDocument struct {
	doc     *fitz.Document
	quality int
}

func (d *fitzDocument) NumPage() int { return d.doc.NumPage() }

func (d *fitzDocument) PageText(i int) (string, error) {
	if i < 0 || i >= d.doc.NumPage() {
		return "", fmt.Errorf("page %d out of range (document has %d pages)", i+1, d.doc.NumPage())
	}
	text, err := d.doc.Text(i)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page %d: %w", i+1, err)
	}
	return normalizeText(text), nil
}

func (d *fitzDocument) RenderPage(i int, scale float64) ([]byte, error) {
	if i < 0 || i >= d.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", i+1, d.doc.NumPage())
	}
	if scale <= 0 {
		scale = 2.0
	}
	// go-fitz renders by DPI; a scale factor is relative to 72 dpi.
	img, err := d.doc.ImageDPI(i, scale*72)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: d.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	log.Debug().
		Int("page", i+1).
		Int("width", img.Bounds().Dx()).
		Int("height", img.Bounds().Dy()).
		Int("jpeg_size", buf.Len()).
		Msg("rendered page for OCR")

	return buf.Bytes(), nil
}

func (d *fitzDocument) Close() error { return d.doc.Close() }

// normalizeText strips carriage returns and trailing spaces so page text
// concatenates cleanly.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
