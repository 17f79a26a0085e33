package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/ocrpolish/internal/doctree"
)

// csvBatchRows caps the data rows per table so large files render as a
// series of tables that each repeat the header.
const csvBatchRows = 40

// CSVParser handles CSV files.
type CSVParser struct{}

func (p *CSVParser) Parse(ctx context.Context, r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := &doctree.Document{Title: titleFrom(filename)}
	if len(records) == 0 {
		return doc, nil
	}

	// First row is headers.
	headers := records[0]
	dataRows := records[1:]
	if len(dataRows) == 0 {
		doc.AddTable(0, [][]string{headers})
		return doc, nil
	}

	for i := 0; i < len(dataRows); i += csvBatchRows {
		end := min(i+csvBatchRows, len(dataRows))
		rows := make([][]string, 0, end-i+1)
		rows = append(rows, headers)
		rows = append(rows, dataRows[i:end]...)
		doc.AddTable(0, rows)
	}
	return doc, nil
}
