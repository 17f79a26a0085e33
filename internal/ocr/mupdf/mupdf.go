// Package mupdf rasterizes PDF pages with MuPDF through go-fitz.
package mupdf

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// Rasterizer opens the document per call, so it holds no state and is safe
// for concurrent use.
type Rasterizer struct{}

// New returns a Rasterizer.
func New() *Rasterizer {
	return &Rasterizer{}
}

// PageCount returns the number of pages in the PDF at path.
func (r *Rasterizer) PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// RenderPage renders the 1-based page at dpi as PNG.
func (r *Rasterizer) RenderPage(path string, page, dpi int) ([]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer doc.Close()

	if page < 1 || page > doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (1-%d)", page, doc.NumPage())
	}
	img, err := doc.ImageDPI(page-1, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("rasterize page %d: %w", page, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", page, err)
	}
	return buf.Bytes(), nil
}
