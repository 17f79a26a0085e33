package parser

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/dgallion1/ocrpolish/internal/doctree"
	"github.com/dgallion1/ocrpolish/internal/sections"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. GFM tables become
// table blocks; each heading starts a new text block.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(ctx context.Context, r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	root := md.Parser().Parse(text.NewReader(src))

	doc := &doctree.Document{Title: titleFrom(filename)}
	var current strings.Builder

	flush := func() {
		doc.AddText(sections.TypeText, 0, current.String())
		current.Reset()
	}
	appendPara := func(t string) {
		if t == "" {
			return
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(t)
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			flush()
			appendPara(inlineText(node, src))
		case *east.Table:
			flush()
			doc.AddTable(0, tableRows(node, src))
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			appendPara(strings.TrimSpace(linesText(node, src)))
		case *ast.List:
			var items []string
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				if t := inlineText(item, src); t != "" {
					items = append(items, t)
				}
			}
			appendPara(strings.Join(items, "\n"))
		case *ast.ThematicBreak:
		default:
			appendPara(inlineText(node, src))
		}
	}
	flush()

	return doc, nil
}

func tableRows(tbl *east.Table, src []byte) [][]string {
	var rows [][]string
	for row := tbl.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, inlineText(cell, src))
		}
		rows = append(rows, cells)
	}
	return rows
}

// inlineText collects the text of all inline descendants of n.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

// linesText returns the raw source lines of a leaf block such as a code block.
func linesText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return buf.String()
}
