package pipeline

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dgallion1/ocrpolish/internal/cleaner"
	"github.com/dgallion1/ocrpolish/internal/sections"
)

// Report describes the outputs of one processed document.
type Report struct {
	Input string `json:"input"`

	RawPath     string `json:"raw_path,omitempty"`
	CleanedPath string `json:"cleaned_path,omitempty"`
	PDFPath     string `json:"pdf_path,omitempty"`
	SummaryPath string `json:"summary_path,omitempty"`

	RawChars     int   `json:"raw_chars"`
	CleanedChars int   `json:"cleaned_chars"`
	RawBytes     int64 `json:"raw_bytes"`
	CleanedBytes int64 `json:"cleaned_bytes"`
	PDFBytes     int64 `json:"pdf_bytes"`

	FromCache   bool   `json:"from_cache"`
	Rendered    bool   `json:"rendered"`
	RenderError string `json:"render_error,omitempty"`

	Cleaning *cleaner.Result       `json:"cleaning,omitempty"`
	Sections map[sections.Type]int `json:"sections,omitempty"`

	// Err is set by ProcessDir for documents that failed.
	Err error `json:"-"`
}

// CharChange is the cleaned length minus the raw length.
func (r *Report) CharChange() int {
	return r.CleanedChars - r.RawChars
}

// Degraded reports whether any stage fell back: cleaning was skipped, a
// chunk kept its original text, or the PDF was not rendered.
func (r *Report) Degraded() bool {
	if !r.Rendered {
		return true
	}
	c := r.Cleaning
	return c != nil && (c.Skipped || c.Exhausted > 0)
}

// Files lists the outputs that were written, with a label for each.
func (r *Report) Files() [][2]string {
	var out [][2]string
	for _, f := range [][2]string{
		{"Raw OCR Text", r.RawPath},
		{"Cleaned Text", r.CleanedPath},
		{"Main PDF", r.PDFPath},
		{"Summary PDF", r.SummaryPath},
	} {
		if f[1] != "" {
			out = append(out, f)
		}
	}
	return out
}

// Print writes the final statistics for the document.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "\n%s\n", r.Input)
	if r.Err != nil {
		fmt.Fprintf(w, "  Failed: %v\n", r.Err)
		return
	}

	fmt.Fprintln(w, "Final Statistics")
	fmt.Fprintf(w, "  Raw OCR text:  %s chars (%s bytes)\n", Commas(int64(r.RawChars)), Commas(r.RawBytes))
	fmt.Fprintf(w, "  Cleaned text:  %s chars (%s bytes)\n", Commas(int64(r.CleanedChars)), Commas(r.CleanedBytes))
	fmt.Fprintf(w, "  Text change:   %s chars\n", signed(r.CharChange()))
	if r.FromCache {
		fmt.Fprintln(w, "  OCR results loaded from cache")
	}
	if c := r.Cleaning; c != nil {
		if c.Skipped {
			fmt.Fprintf(w, "  Cleaning skipped: %s\n", c.SkipReason)
		} else {
			fmt.Fprintf(w, "  Chunks: %d (accepted %d, too short %d, failed %d) model %s\n",
				c.Chunks, c.Accepted, c.RejectedShort, c.Exhausted, c.Model)
		}
	}
	if r.Rendered {
		fmt.Fprintf(w, "  Generated PDF: %s bytes (%.1f MB)\n", Commas(r.PDFBytes), float64(r.PDFBytes)/1024/1024)
	} else {
		fmt.Fprintf(w, "  PDF generation failed: %s\n", r.RenderError)
	}

	fmt.Fprintln(w, "Output Files Created:")
	for _, f := range r.Files() {
		size := int64(0)
		if info, err := os.Stat(f[1]); err == nil {
			size = info.Size()
		}
		fmt.Fprintf(w, "  - %s: %s (%s bytes)\n", f[0], f[1], Commas(size))
	}
}

// Commas formats n with thousands separators.
func Commas(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := s[0] == '-'
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}

func signed(n int) string {
	if n >= 0 {
		return "+" + Commas(int64(n))
	}
	return Commas(int64(n))
}
