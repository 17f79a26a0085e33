package sections

import (
	"reflect"
	"testing"
)

func TestParse_RoundTripExample(t *testing.T) {
	got := Parse("<TEXT-OPEN page=1>\nHello world\n<TEXT-CLOSE>")
	want := []Section{{Type: TypeText, Page: "1", Content: "Hello world"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParse_MixedSections(t *testing.T) {
	in := `Preamble line
<TEXT-OPEN page=1>
First page text.
  Second line.
<TEXT-CLOSE>
<TABLE-OPEN n=1 page=2>
| a | b |
|---|---|
| 1 | 2 |
<TABLE-CLOSE>
<OCR-OPEN page=3>
Scanned words.
<OCR-CLOSE>`

	got := Parse(in)
	want := []Section{
		{Type: TypeText, Content: "Preamble line"},
		{Type: TypeText, Page: "1", Content: "First page text.\nSecond line."},
		{Type: TypeTable, Page: "2", TableNum: "1", Content: "| a | b |\n|---|---|\n| 1 | 2 |"},
		{Type: TypeOCR, Page: "3", Content: "Scanned words."},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestParse_MalformedNumbersBecomeUnknown(t *testing.T) {
	got := Parse("<TABLE-OPEN n=x7 page=??>\n| a |\n<TABLE-CLOSE>\n<OCR-OPEN page=two>\nword\n<OCR-CLOSE>")
	if len(got) != 2 {
		t.Fatalf("expected 2 sections, got %d: %+v", len(got), got)
	}
	if got[0].TableNum != Unknown || got[0].Page != Unknown {
		t.Errorf("table numbers = (%q, %q), want Unknown", got[0].TableNum, got[0].Page)
	}
	if got[1].Page != Unknown {
		t.Errorf("ocr page = %q, want Unknown", got[1].Page)
	}
}

func TestParse_TableWithoutNumber(t *testing.T) {
	got := Parse("<TABLE-OPEN page=3>\n| a |\n<TABLE-CLOSE>")
	if len(got) != 1 {
		t.Fatalf("expected 1 section, got %+v", got)
	}
	if got[0].TableNum != Unknown || got[0].Page != "3" {
		t.Errorf("table numbers = (%q, %q), want (Unknown, 3)", got[0].TableNum, got[0].Page)
	}
}

func TestParse_MissingPageAttribute(t *testing.T) {
	got := Parse("<TEXT-OPEN>\nbody\n<TEXT-CLOSE>")
	if len(got) != 1 || got[0].Page != "" {
		t.Errorf("Parse() = %+v, want one section with empty page", got)
	}
}

func TestParse_MissingCloseRunsIntoNextTag(t *testing.T) {
	got := Parse("<TEXT-OPEN page=1>\nunclosed\n<OCR-OPEN page=2>\nnext\n<OCR-CLOSE>")
	want := []Section{
		{Type: TypeText, Page: "1", Content: "unclosed"},
		{Type: TypeOCR, Page: "2", Content: "next"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParse_UnclosedAtEndIsFlushed(t *testing.T) {
	got := Parse("<TABLE-OPEN n=4 page=9>\n| x | y |")
	if len(got) != 1 || got[0].Type != TypeTable || got[0].Content != "| x | y |" {
		t.Errorf("Parse() = %+v", got)
	}
}

func TestParse_DropsEmptySections(t *testing.T) {
	got := Parse("<TEXT-OPEN page=1>\n   \n<TEXT-CLOSE>\n<TABLE-OPEN n=1 page=1>\n<TABLE-CLOSE>")
	if len(got) != 0 {
		t.Errorf("expected no sections, got %+v", got)
	}
}

func TestParse_TableCloseOutsideTableIgnored(t *testing.T) {
	got := Parse("<TEXT-OPEN page=1>\nalpha\n<TABLE-CLOSE>\nbeta\n<TEXT-CLOSE>")
	want := []Section{{Type: TypeText, Page: "1", Content: "alpha\nbeta"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestFormat_ParseRoundTrip(t *testing.T) {
	secs := []Section{
		{Type: TypeText, Page: "1", Content: "Hello world"},
		{Type: TypeTable, Page: "2", TableNum: "3", Content: "| a | b |\n| 1 | 2 |"},
		{Type: TypeOCR, Page: "4", Content: "scanned"},
		{Type: TypeText, Content: "no page"},
	}
	got := Parse(Format(secs))
	if !reflect.DeepEqual(got, secs) {
		t.Errorf("round trip =\n%+v\nwant\n%+v", got, secs)
	}
}

func TestOpenTag(t *testing.T) {
	tests := []struct {
		sec  Section
		want string
	}{
		{Section{Type: TypeText, Page: "1"}, "<TEXT-OPEN page=1>"},
		{Section{Type: TypeOCR, Page: "12"}, "<OCR-OPEN page=12>"},
		{Section{Type: TypeText}, "<TEXT-OPEN>"},
		{Section{Type: TypeTable, TableNum: "2", Page: "5"}, "<TABLE-OPEN n=2 page=5>"},
		{Section{Type: TypeTable}, "<TABLE-OPEN n=Unknown page=Unknown>"},
	}
	for _, tc := range tests {
		if got := OpenTag(tc.sec); got != tc.want {
			t.Errorf("OpenTag(%+v) = %q, want %q", tc.sec, got, tc.want)
		}
	}
}

func TestCounts(t *testing.T) {
	c := Counts([]Section{{Type: TypeText}, {Type: TypeTable}, {Type: TypeText}})
	if c[TypeText] != 2 || c[TypeTable] != 1 || c[TypeOCR] != 0 {
		t.Errorf("Counts() = %v", c)
	}
}
