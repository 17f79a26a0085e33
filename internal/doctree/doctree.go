package doctree

import (
	"strconv"
	"strings"

	"github.com/dgallion1/ocrpolish/internal/sections"
)

// Document is a parsed source document: an ordered list of page-aware blocks.
type Document struct {
	Title  string  // Document title (from metadata or filename)
	Pages  int     // Source page count, 0 for formats without pages
	Blocks []Block // Content in reading order

	tables int
}

// Block is one contiguous region of extracted content.
type Block struct {
	Kind  sections.Type // text, ocr or table
	Page  int           // 1-based source page, 0 if N/A
	Table int           // 1-based table number, tables only
	Text  string        // Body; pipe-delimited rows for tables
}

// AddText appends a text or ocr block. Blank text is ignored.
func (d *Document) AddText(kind sections.Type, page int, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	d.Blocks = append(d.Blocks, Block{Kind: kind, Page: page, Text: text})
}

// AddTable appends a table block numbered in document order. The first row
// is treated as the header. Tables without cells are ignored.
func (d *Document) AddTable(page int, rows [][]string) {
	body := PipeRows(rows)
	if body == "" {
		return
	}
	d.tables++
	d.Blocks = append(d.Blocks, Block{Kind: sections.TypeTable, Page: page, Table: d.tables, Text: body})
}

// Tables returns how many table blocks were added.
func (d *Document) Tables() int {
	return d.tables
}

// Sections converts the blocks into tagged sections.
func (d *Document) Sections() []sections.Section {
	out := make([]sections.Section, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		s := sections.Section{Type: b.Kind, Content: b.Text}
		if b.Page > 0 {
			s.Page = strconv.Itoa(b.Page)
		}
		if b.Kind == sections.TypeTable {
			s.TableNum = strconv.Itoa(b.Table)
		}
		out = append(out, s)
	}
	return out
}

// Tagged renders the document in the section tag format.
func (d *Document) Tagged() string {
	return sections.Format(d.Sections())
}

// PlainText joins block bodies with blank lines, without tags.
func (d *Document) PlainText() string {
	parts := make([]string, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n\n")
}

// PipeRows formats rows as a pipe table with a separator after the header.
// Pipes inside cells are replaced so they cannot split a cell, and empty
// rows are skipped.
func PipeRows(rows [][]string) string {
	var b strings.Builder
	header := true
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		nonEmpty := false
		for _, c := range row {
			c = strings.Join(strings.Fields(strings.ReplaceAll(c, "|", "/")), " ")
			if c != "" {
				nonEmpty = true
			}
			cells = append(cells, c)
		}
		if !nonEmpty {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |")
		if header {
			b.WriteString("\n|" + strings.Repeat("---|", len(cells)))
			header = false
		}
	}
	return b.String()
}
