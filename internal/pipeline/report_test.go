package pipeline

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/ocrpolish/internal/cleaner"
)

func TestCommas(t *testing.T) {
	tests := map[int64]string{0: "0", 12: "12", 1234: "1,234", -1234567: "-1,234,567"}
	for n, want := range tests {
		if got := Commas(n); got != want {
			t.Errorf("Commas(%d) = %q, want %q", n, got, want)
		}
	}
	if signed(42) != "+42" || signed(-1500) != "-1,500" {
		t.Errorf("signed() = %q, %q", signed(42), signed(-1500))
	}
}

func TestReport_Print(t *testing.T) {
	var buf bytes.Buffer
	rep := &Report{
		Input:        "scan.pdf",
		RawChars:     1200,
		CleanedChars: 1180,
		Rendered:     true,
		PDFBytes:     2048,
		Cleaning:     &cleaner.Result{Chunks: 3, Accepted: 2, Exhausted: 1, Model: "phi3:3.8b"},
	}
	rep.Print(&buf)

	out := buf.String()
	for _, want := range []string{
		"Raw OCR text:  1,200 chars",
		"Text change:   -20 chars",
		"accepted 2",
		"Generated PDF: 2,048 bytes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	(&Report{Input: "bad.pdf", Err: errors.New("broken xref")}).Print(&buf)
	if !strings.Contains(buf.String(), "Failed: broken xref") {
		t.Errorf("failed report = %q", buf.String())
	}
}
