// Package render lays out tagged sections as PDF documents.
package render

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/ocrpolish/internal/sections"
	"github.com/go-pdf/fpdf"
)

// Page geometry in points (Letter).
const (
	sideMargin   = 54 // 0.75in
	topMargin    = 72 // 1in
	bottomMargin = 72
	footerY      = 36 // 0.5in from the bottom edge
	cellPad      = 3
)

type rgb struct{ r, g, b int }

var (
	black      = rgb{0, 0, 0}
	darkBlue   = rgb{0, 0, 139}
	darkRed    = rgb{139, 0, 0}
	darkGreen  = rgb{0, 100, 0}
	grey       = rgb{128, 128, 128}
	lightGrey  = rgb{211, 211, 211}
	white      = rgb{255, 255, 255}
	whiteSmoke = rgb{245, 245, 245}
	captionFg  = rgb{90, 90, 90}
)

// Renderer writes the cleaned document and summary PDFs.
type Renderer struct {
	log *slog.Logger
	now func() time.Time
}

// New returns a renderer. A nil logger uses slog.Default.
func New(log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{log: log, now: time.Now}
}

// document wraps an fpdf document with the shared styling helpers.
type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (r *Renderer) newDocument(title string, footer bool) *document {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(sideMargin, topMargin, sideMargin)
	pdf.SetAutoPageBreak(true, bottomMargin)
	pdf.SetCreator("ocrpolish", true)
	pdf.SetTitle(title, true)
	pdf.AliasNbPages("")

	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	if footer {
		generated := r.now().Format("2006-01-02 15:04")
		pdf.SetFooterFunc(func() {
			w, h := pdf.GetPageSize()
			pdf.SetY(h - footerY - 9)
			pdf.SetFont("Helvetica", "", 9)
			d.color(black)
			if pdf.PageNo() == 1 {
				pdf.SetX(sideMargin)
				pdf.CellFormat(w/2, 9, "Generated: "+generated, "", 0, "L", false, 0, "")
			}
			pdf.SetX(w / 2)
			pdf.CellFormat(w/2-sideMargin, 9, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
		})
	}
	pdf.AddPage()
	return d
}

func (d *document) color(c rgb) { d.pdf.SetTextColor(c.r, c.g, c.b) }

func (d *document) width() float64 {
	w, _ := d.pdf.GetPageSize()
	left, _, right, _ := d.pdf.GetMargins()
	return w - left - right
}

func (d *document) title(text string, size float64) {
	d.pdf.SetFont("Helvetica", "B", size)
	d.color(darkBlue)
	d.pdf.MultiCell(0, size*1.25, d.tr(text), "", "C", false)
	d.pdf.Ln(20)
}

func (d *document) heading(text string) {
	d.pdf.Ln(8)
	d.pdf.SetFont("Helvetica", "B", 12)
	d.color(darkRed)
	d.pdf.CellFormat(0, 15, d.tr(text), "", 1, "L", false, 0, "")
	d.pdf.Ln(6)
}

func (d *document) caption(text string) {
	d.pdf.SetFont("Helvetica", "", 8)
	d.color(captionFg)
	d.pdf.CellFormat(0, 10, d.tr(text), "", 1, "L", false, 0, "")
}

func (d *document) paragraph(text string, size float64, style string, fg rgb, indent float64, align string) {
	left, _, _, _ := d.pdf.GetMargins()
	d.pdf.SetFont("Helvetica", style, size)
	d.color(fg)
	d.pdf.SetX(left + indent)
	d.pdf.MultiCell(d.width()-indent, size*1.2, d.tr(text), "", align, false)
	d.pdf.Ln(6)
}

func (d *document) code(line string) {
	d.pdf.SetFont("Courier", "", 8)
	d.color(black)
	d.pdf.MultiCell(0, 10, d.tr(line), "", "L", false)
}

// grid draws a table with a grey header row and alternating row fills.
// Row height grows with the tallest wrapped cell.
func (d *document) grid(t sections.Table) {
	cols := t.Columns()
	if cols == 0 {
		return
	}
	colW := d.width() / float64(cols)
	left, _, _, _ := d.pdf.GetMargins()
	_, pageH := d.pdf.GetPageSize()
	d.pdf.SetDrawColor(0, 0, 0)
	d.pdf.SetLineWidth(1)

	for i, row := range t.Rows {
		size, style := 9.0, ""
		fill, fg := white, black
		switch {
		case i == 0:
			size, style = 10, "B"
			fill, fg = grey, whiteSmoke
		case i%2 == 0:
			fill = lightGrey
		}
		d.pdf.SetFont("Helvetica", style, size)
		lineH := size * 1.2

		wrapped := make([][]string, cols)
		lines := 1
		for c := range cols {
			cell := ""
			if c < len(row) {
				cell = d.tr(row[c])
			}
			wrapped[c] = d.pdf.SplitText(cell, colW-2*cellPad)
			lines = max(lines, len(wrapped[c]))
		}
		rowH := float64(lines)*lineH + 2*cellPad

		y := d.pdf.GetY()
		if y+rowH > pageH-bottomMargin {
			d.pdf.AddPage()
			d.pdf.SetFont("Helvetica", style, size)
			y = d.pdf.GetY()
		}

		d.pdf.SetFillColor(fill.r, fill.g, fill.b)
		d.color(fg)
		for c := range cols {
			x := left + float64(c)*colW
			d.pdf.Rect(x, y, colW, rowH, "FD")
			for j, ln := range wrapped[c] {
				d.pdf.SetXY(x+cellPad, y+cellPad+float64(j)*lineH)
				d.pdf.CellFormat(colW-2*cellPad, lineH, ln, "", 0, "L", false, 0, "")
			}
		}
		d.pdf.SetXY(left, y+rowH)
	}
	d.pdf.Ln(20)
}

func (d *document) save(path string) error {
	if err := d.pdf.Error(); err != nil {
		return fmt.Errorf("layout pdf: %w", err)
	}
	if err := d.pdf.OutputFileAndClose(path); err != nil {
		os.Remove(path)
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// Render writes secs as a formatted PDF at path.
func (r *Renderer) Render(secs []sections.Section, path, title string) (err error) {
	defer recoverLayout(&err)

	d := r.newDocument(title, true)
	d.title(title, 16)

	counts := sections.Counts(secs)
	info := []string{fmt.Sprintf("Total sections: %d", len(secs))}
	for _, typ := range []sections.Type{sections.TypeText, sections.TypeTable, sections.TypeOCR} {
		if counts[typ] > 0 {
			info = append(info, fmt.Sprintf("%s: %d", typeLabel(typ), counts[typ]))
		}
	}
	d.paragraph("Document processed on "+r.now().Format("January 02, 2006 at 15:04"), 10, "", black, 0, "L")
	d.paragraph(strings.Join(info, " | "), 10, "", black, 0, "L")
	d.pdf.Ln(24)

	for _, s := range secs {
		content := strings.TrimSpace(s.Content)
		if content == "" {
			continue
		}
		if s.Page != "" {
			d.caption("[Original Page " + s.Page + "]")
		}

		switch s.Type {
		case sections.TypeTable:
			d.heading("Table " + orUnknown(s.TableNum))
			if t, ok := sections.Materialize(content); ok {
				d.grid(t)
				continue
			}
			r.log.Warn("table has no rows, rendering raw", "table", s.TableNum, "page", s.Page)
			d.pdf.SetFont("Helvetica", "B", 11)
			d.color(black)
			d.pdf.CellFormat(0, 14, "Table data (raw):", "", 1, "L", false, 0, "")
			for _, line := range sections.Lines(content) {
				d.code(line)
			}
			d.pdf.Ln(20)
		case sections.TypeOCR:
			d.heading("OCR Content")
			for _, para := range sections.Lines(content) {
				d.paragraph(para, 9, "I", darkGreen, 20, "L")
			}
			d.pdf.Ln(15)
		default:
			d.heading("Text Content")
			for _, para := range sections.Lines(content) {
				d.paragraph(para, 10, "", black, 0, "J")
			}
			d.pdf.Ln(15)
		}
	}

	if err := d.save(path); err != nil {
		return err
	}
	r.log.Info("pdf rendered", "path", path, "sections", len(secs), "pages", d.pdf.PageNo())
	return nil
}

// RenderSummary writes a statistics page with up to three sample tables.
func (r *Renderer) RenderSummary(secs []sections.Section, path, title string) (err error) {
	defer recoverLayout(&err)

	d := r.newDocument(title, false)
	d.title(title, 18)

	counts := sections.Counts(secs)
	chars := 0
	for _, s := range secs {
		chars += utf8.RuneCountInString(s.Content)
	}

	d.heading("Document Statistics")
	for _, stat := range []string{
		fmt.Sprintf("Total sections: %d", len(secs)),
		"Total characters: " + thousands(chars),
		fmt.Sprintf("Tables found: %d", counts[sections.TypeTable]),
		fmt.Sprintf("Text sections: %d", counts[sections.TypeText]),
		fmt.Sprintf("OCR sections: %d", counts[sections.TypeOCR]),
	} {
		d.paragraph(stat, 10, "", black, 0, "L")
	}
	d.pdf.Ln(24)

	if counts[sections.TypeTable] > 0 {
		d.heading("Sample Tables")
		shown := 0
		for _, s := range secs {
			if s.Type != sections.TypeTable {
				continue
			}
			d.pdf.SetFont("Helvetica", "B", 11)
			d.color(black)
			d.pdf.CellFormat(0, 14, d.tr(fmt.Sprintf("Table %s (Page %s)", orUnknown(s.TableNum), orUnknown(s.Page))), "", 1, "L", false, 0, "")
			lines := sections.Lines(s.Content)
			for _, line := range lines[:min(5, len(lines))] {
				d.code(line)
			}
			d.pdf.Ln(20)
			if shown++; shown == 3 {
				break
			}
		}
	}

	if err := d.save(path); err != nil {
		return err
	}
	r.log.Info("summary pdf rendered", "path", path)
	return nil
}

// recoverLayout turns a panic inside the layout library into an error.
func recoverLayout(err *error) {
	if p := recover(); p != nil {
		*err = errors.Join(*err, fmt.Errorf("render pdf: %v", p))
	}
}

func typeLabel(t sections.Type) string {
	switch t {
	case sections.TypeOCR:
		return "OCR"
	case sections.TypeTable:
		return "Table"
	default:
		return "Text"
	}
}

func orUnknown(s string) string {
	if s == "" {
		return sections.Unknown
	}
	return s
}

// thousands formats n with comma separators.
func thousands(n int) string {
	s := strconv.Itoa(n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}
