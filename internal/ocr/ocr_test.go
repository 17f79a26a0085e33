package ocr

import (
	"context"
	"errors"
	"testing"
)

func TestFixLineBreaks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"merges lowercase continuation", "The report covers\nthe first quarter.", "The report covers the first quarter."},
		{"keeps sentence end", "First sentence.\nsecond starts lower", "First sentence.\nsecond starts lower"},
		{"keeps capitalized next line", "Heading\nBody text.", "Heading\nBody text."},
		{"chains merges", "one\ntwo\nthree.", "one two three."},
		{"drops empty lines", "A.\n\n\nB.", "A.\nB."},
		{"no merge across blank line", "dangling\n\nnext paragraph", "dangling\nnext paragraph"},
		{"trims merge seams", "end  \n  more", "end  \n  more"},
		{"trims merge seam on lowercase", "end  \nmore", "end more"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FixLineBreaks(tc.in); got != tc.want {
				t.Errorf("FixLineBreaks(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("ﬁnancial ｒｅｐｏｒｔ"); got != "financial report" {
		t.Errorf("Normalize() = %q", got)
	}
}

type fakeRaster struct {
	pages int
	err   error
	dpi   int
}

func (f *fakeRaster) PageCount(string) (int, error) { return f.pages, f.err }

func (f *fakeRaster) RenderPage(_ string, page, dpi int) ([]byte, error) {
	f.dpi = dpi
	if f.err != nil {
		return nil, f.err
	}
	return []byte{byte(page)}, nil
}

type fakeRecognizer struct {
	text map[byte]string
}

func (f *fakeRecognizer) Recognize(_ context.Context, img []byte) (string, error) {
	return f.text[img[0]], nil
}

func TestEngine_RecognizePage(t *testing.T) {
	raster := &fakeRaster{pages: 2}
	rec := &fakeRecognizer{text: map[byte]string{2: "Scanned line that\ncontinues here."}}
	e := NewEngine(raster, rec, 0, nil)

	got, err := e.RecognizePage(context.Background(), "doc.pdf", 2)
	if err != nil {
		t.Fatalf("RecognizePage: %v", err)
	}
	if got != "Scanned line that continues here." {
		t.Errorf("text = %q", got)
	}
	if raster.dpi != DefaultDPI {
		t.Errorf("dpi = %d, want %d", raster.dpi, DefaultDPI)
	}
	if n, _ := e.PageCount("doc.pdf"); n != 2 {
		t.Errorf("PageCount = %d", n)
	}
}

func TestEngine_RenderError(t *testing.T) {
	boom := errors.New("broken xref")
	e := NewEngine(&fakeRaster{err: boom}, &fakeRecognizer{}, 150, nil)
	if _, err := e.RecognizePage(context.Background(), "doc.pdf", 1); !errors.Is(err, boom) {
		t.Errorf("expected wrapped render error, got %v", err)
	}
	if _, err := e.PageCount("doc.pdf"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped count error, got %v", err)
	}
}

func TestEngine_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewEngine(&fakeRaster{pages: 1}, &fakeRecognizer{}, 0, nil)
	if _, err := e.RecognizePage(ctx, "doc.pdf", 1); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
