package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/ocrpolish/internal/doctree"
	"github.com/dgallion1/ocrpolish/internal/ocr"
	"github.com/dgallion1/ocrpolish/internal/sections"
	pdflib "github.com/ledongthuc/pdf"
)

// DefaultMinTextChars is the text-layer size below which a page is treated
// as a scan.
const DefaultMinTextChars = 20

// PageOCR recognizes individual PDF pages. *ocr.Engine implements it.
type PageOCR interface {
	PageCount(path string) (int, error)
	RecognizePage(ctx context.Context, path string, page int) (string, error)
}

// PDFParser handles PDF files. Pages with a usable text layer become text
// blocks; pages without one are OCR'd and become ocr blocks.
type PDFParser struct {
	OCR               PageOCR
	MinTextChars      int
	FallbackPdftotext bool
	Log               *slog.Logger
}

func (p *PDFParser) Parse(ctx context.Context, r io.Reader, filename string) (*doctree.Document, error) {
	// ledongthuc/pdf and MuPDF both want a file path.
	tmpPath, _, err := spool(r, "ocrpolish-pdf-*.pdf")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpPath)

	return p.ParseFile(ctx, tmpPath, filename)
}

// ParseFile parses a PDF already on disk.
func (p *PDFParser) ParseFile(ctx context.Context, path, filename string) (*doctree.Document, error) {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("file", filename)

	minChars := p.MinTextChars
	if minChars <= 0 {
		minChars = DefaultMinTextChars
	}

	pages, err := extractPDFPages(path)
	if err != nil {
		pages, err = p.fallbackPages(path, err)
		if err != nil {
			return nil, fmt.Errorf("extract pdf text: %w", err)
		}
		log.Warn("pdf text layer unreadable, using fallback", "pages", len(pages))
	}

	doc := &doctree.Document{Title: titleFrom(filename), Pages: len(pages)}
	ocrPages := 0
	for i, text := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := i + 1
		text = ocr.Normalize(strings.TrimSpace(text))

		if utf8.RuneCountInString(text) >= minChars {
			doc.AddText(sections.TypeText, page, text)
			continue
		}
		if p.OCR == nil {
			if text == "" {
				log.Warn("page has no text layer and OCR is disabled, skipping", "page", page)
			}
			doc.AddText(sections.TypeText, page, text)
			continue
		}

		recognized, err := p.OCR.RecognizePage(ctx, path, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error("ocr failed, keeping text layer", "page", page, "error", err)
			doc.AddText(sections.TypeText, page, text)
			continue
		}
		ocrPages++
		doc.AddText(sections.TypeOCR, page, recognized)
	}

	log.Info("pdf extracted", "pages", len(pages), "ocr_pages", ocrPages, "blocks", len(doc.Blocks))
	return doc, nil
}

// fallbackPages is used when the text layer cannot be read at all. With OCR
// available every page comes back empty so each one is recognized; otherwise
// pdftotext is tried.
func (p *PDFParser) fallbackPages(path string, cause error) ([]string, error) {
	if p.OCR != nil {
		n, err := p.OCR.PageCount(path)
		if err != nil {
			return nil, fmt.Errorf("%w (ocr page count: %v)", cause, err)
		}
		return make([]string, n), nil
	}
	if p.FallbackPdftotext {
		text, err := extractPdftotext(path)
		if err != nil {
			return nil, fmt.Errorf("%w (%v)", cause, err)
		}
		return splitPages(text), nil
	}
	return nil, cause
}

// extractPDFPages returns the text layer of each page. Pages whose content
// cannot be decoded come back empty.
func extractPDFPages(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]string, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages[i-1] = text
	}
	return pages, nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

// splitPages splits pdftotext output on form feeds. The trailing form feed
// pdftotext emits after the last page does not start a new page.
func splitPages(text string) []string {
	return strings.Split(strings.TrimSuffix(text, "\f"), "\f")
}
