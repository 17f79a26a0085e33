package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/ocrpolish/internal/doctree"
)

// ErrUnsupportedFormat is returned by ForFile for unknown extensions.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, filename string) (*doctree.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// Options configure the parsers that need collaborators.
type Options struct {
	OCR          PageOCR // nil disables OCR of image-only PDF pages
	MinTextChars int
	Log          *slog.Logger
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{
			OCR:               opts.OCR,
			MinTextChars:      opts.MinTextChars,
			FallbackPdftotext: true,
			Log:               opts.Log,
		}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// titleFrom strips the extension from a file name.
func titleFrom(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// spool copies r into a temp file for libraries that need a path or a
// ReadSeeker with a known size. The caller removes the file.
func spool(r io.Reader, pattern string) (path string, size int64, err error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	path = tmp.Name()

	size, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("write temp file: %w", err)
	}
	return path, size, nil
}
