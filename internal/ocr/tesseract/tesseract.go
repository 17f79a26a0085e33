// Package tesseract recognizes text with the Tesseract engine. It needs cgo
// and the tesseract/leptonica libraries, so only the binaries import it.
package tesseract

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Recognizer wraps a single gosseract client. Calls are serialized because
// the underlying API handle is not safe for concurrent use.
type Recognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New creates a recognizer for the given languages, e.g. "eng".
func New(languages ...string) (*Recognizer, error) {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set language: %w", err)
	}
	return &Recognizer{client: client}, nil
}

// Recognize returns the text found in an encoded image.
func (r *Recognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("load image: %w", err)
	}
	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}

// Close releases the tesseract handle.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}
