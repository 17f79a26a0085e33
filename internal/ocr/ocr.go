package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultDPI is the rasterization resolution used for recognition.
const DefaultDPI = 300

// Rasterizer renders PDF pages to PNG images.
type Rasterizer interface {
	PageCount(path string) (int, error)
	// RenderPage renders the 1-based page at dpi and returns PNG bytes.
	RenderPage(path string, page, dpi int) ([]byte, error)
}

// Recognizer extracts text from an image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Engine OCRs PDF pages by rasterizing then recognizing them.
type Engine struct {
	raster Rasterizer
	rec    Recognizer
	dpi    int
	log    *slog.Logger
}

// NewEngine combines a rasterizer and a recognizer. A non-positive dpi uses
// DefaultDPI.
func NewEngine(raster Rasterizer, rec Recognizer, dpi int, log *slog.Logger) *Engine {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{raster: raster, rec: rec, dpi: dpi, log: log}
}

// PageCount returns the number of pages in the PDF at path.
func (e *Engine) PageCount(path string) (int, error) {
	n, err := e.raster.PageCount(path)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}

// RecognizePage OCRs one 1-based page. The text is normalized and has
// artificial line breaks repaired.
func (e *Engine) RecognizePage(ctx context.Context, path string, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img, err := e.raster.RenderPage(path, page, e.dpi)
	if err != nil {
		return "", fmt.Errorf("render page %d: %w", page, err)
	}
	text, err := e.rec.Recognize(ctx, img)
	if err != nil {
		return "", fmt.Errorf("recognize page %d: %w", page, err)
	}
	text = FixLineBreaks(Normalize(text))
	e.log.Debug("ocr page", "page", page, "chars", utf8.RuneCountInString(text), "image_bytes", len(img))
	return text, nil
}

// Normalize applies NFKC so ligatures and full-width forms become plain text.
func Normalize(text string) string {
	return norm.NFKC.String(text)
}

// FixLineBreaks joins lines that were broken mid-sentence by the page layout:
// a line not ending in '.', '!' or '?' is merged with the following line when
// that line starts with a lowercase letter. Empty lines are dropped.
func FixLineBreaks(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))

	var cur string
	have := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			// A blank line ends the paragraph; nothing merges across it.
			if have {
				out = append(out, cur)
			}
			have = false
			continue
		}
		if have && continues(cur, line) {
			cur = strings.TrimRightFunc(cur, unicode.IsSpace) + " " + strings.TrimLeftFunc(line, unicode.IsSpace)
			continue
		}
		if have {
			out = append(out, cur)
		}
		cur, have = line, true
	}
	if have {
		out = append(out, cur)
	}
	return strings.Join(out, "\n")
}

func continues(prev, next string) bool {
	prev = strings.TrimRightFunc(prev, unicode.IsSpace)
	if strings.HasSuffix(prev, ".") || strings.HasSuffix(prev, "!") || strings.HasSuffix(prev, "?") {
		return false
	}
	r, _ := utf8.DecodeRuneInString(next)
	return unicode.IsLower(r)
}
