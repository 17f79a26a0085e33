package parser

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/dgallion1/ocrpolish/internal/doctree"
	"github.com/dgallion1/ocrpolish/internal/sections"
)

// TextParser handles plain text files.
type TextParser struct{}

// Parse splits the input on blank lines; each paragraph becomes a text block.
// Form feeds advance the page number.
func (p *TextParser) Parse(ctx context.Context, r io.Reader, filename string) (*doctree.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := &doctree.Document{Title: titleFrom(filename)}
	page := 0
	var current strings.Builder

	flush := func() {
		doc.AddText(sections.TypeText, page, current.String())
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "\f") {
			parts := strings.Split(line, "\f")
			for i, part := range parts {
				if i > 0 {
					flush()
					page = max(page, 1) + 1
				}
				if strings.TrimSpace(part) != "" {
					appendLine(&current, part)
				}
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		appendLine(&current, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if page > 0 {
		doc.Pages = page
		// Text before the first form feed belongs to page 1.
		for i := range doc.Blocks {
			if doc.Blocks[i].Page == 0 {
				doc.Blocks[i].Page = 1
			}
		}
	}
	return doc, nil
}

func appendLine(b *strings.Builder, line string) {
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(line)
}
