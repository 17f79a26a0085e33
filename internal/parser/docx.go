package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/ocrpolish/internal/doctree"
	"github.com/dgallion1/ocrpolish/internal/sections"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Heading paragraphs start a new text block
// and tables become table blocks.
type DOCXParser struct{}

func (p *DOCXParser) Parse(ctx context.Context, r io.Reader, filename string) (*doctree.Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmpPath, size, err := spool(r, "ocrpolish-docx-*.docx")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpPath)

	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}
	defer f.Close()

	parsed, err := docx.Parse(f, size)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := &doctree.Document{Title: titleFrom(filename)}
	var current strings.Builder
	flush := func() {
		doc.AddText(sections.TypeText, 0, current.String())
		current.Reset()
	}

	for _, item := range parsed.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text := docxParagraphText(it)
			if text == "" {
				continue
			}
			if docxHeadingLevel(it) > 0 {
				flush()
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(text)
		case *docx.Table:
			flush()
			doc.AddTable(0, docxTableRows(it))
		}
	}
	flush()

	return doc, nil
}

func docxTableRows(tbl *docx.Table) [][]string {
	rows := make([][]string, 0, len(tbl.TableRows))
	for _, row := range tbl.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			var parts []string
			for _, para := range cell.Paragraphs {
				if t := docxParagraphText(para); t != "" {
					parts = append(parts, t)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		rows = append(rows, cells)
	}
	return rows
}

// docxHeadingLevel maps styles such as "Heading2" or "heading 2" to 2.
func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	rest, ok := strings.CutPrefix(style, "heading")
	if !ok || len(rest) != 1 || rest[0] < '1' || rest[0] > '6' {
		return 0
	}
	return int(rest[0] - '0')
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
