package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/dgallion1/ocrpolish/internal/sections"
)

func TestMarkdownParser_HeadingsStartBlocks(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

- first item
- second item

## Section B

Section B content.
`
	p := &MarkdownParser{}
	doc, err := p.Parse(context.Background(), strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "doc" {
		t.Errorf("expected title %q, got %q", "doc", doc.Title)
	}

	want := []string{
		"Title\n\nIntro text.",
		"Section A\n\nSection A content.\n\nfirst item\nsecond item",
		"Section B\n\nSection B content.",
	}
	if len(doc.Blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d: %+v", len(want), len(doc.Blocks), doc.Blocks)
	}
	for i, w := range want {
		if doc.Blocks[i].Text != w {
			t.Errorf("block[%d]: expected %q, got %q", i, w, doc.Blocks[i].Text)
		}
	}
}

func TestMarkdownParser_Table(t *testing.T) {
	input := `Before the table.

| Part | Qty |
|------|-----|
| bolt | 4   |
| nut  | 12  |

After the table.
`
	p := &MarkdownParser{}
	doc, err := p.Parse(context.Background(), strings.NewReader(input), "parts.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(doc.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d: %+v", len(doc.Blocks), doc.Blocks)
	}
	tbl := doc.Blocks[1]
	if tbl.Kind != sections.TypeTable || tbl.Table != 1 {
		t.Fatalf("block[1] = %+v, want table 1", tbl)
	}

	got, ok := sections.Materialize(tbl.Text)
	if !ok {
		t.Fatalf("table body did not materialize: %q", tbl.Text)
	}
	want := [][]string{{"Part", "Qty"}, {"bolt", "4"}, {"nut", "12"}}
	if len(got.Rows) != len(want) {
		t.Fatalf("rows = %v, want %v", got.Rows, want)
	}
	for i := range want {
		if strings.Join(got.Rows[i], ",") != strings.Join(want[i], ",") {
			t.Errorf("row %d = %v, want %v", i, got.Rows[i], want[i])
		}
	}
	if doc.Blocks[2].Text != "After the table." {
		t.Errorf("block[2] = %q", doc.Blocks[2].Text)
	}
}

func TestMarkdownParser_CodeBlockKeepsLines(t *testing.T) {
	input := "Intro.\n\n```\nline one\nline two\n```\n"
	doc, err := (&MarkdownParser{}).Parse(context.Background(), strings.NewReader(input), "code.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Blocks) != 1 || doc.Blocks[0].Text != "Intro.\n\nline one\nline two" {
		t.Errorf("blocks = %+v", doc.Blocks)
	}
}
