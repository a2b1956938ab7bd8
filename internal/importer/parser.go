package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"product-importer/internal/models"
)

// Required header columns for a product import file
var requiredColumns = []string{"sku", "name", "description"}

// RawRow is one data row as read from the file, before validation. Field
// values are trimmed; Line is the 1-based position in the file (header is
// line 1).
type RawRow struct {
	Line        int
	SKU         string
	Name        string
	Description string
	Active      string
}

// RowParser streams CSV rows one at a time. It never materializes the file:
// the underlying csv.Reader reuses its record buffer, so memory stays
// constant regardless of file size. The sequence is lazy, finite and
// non-restartable.
type RowParser struct {
	reader *csv.Reader
	cols   map[string]int
	line   int
}

// NewRowParser reads and validates the header row. It fails fast with a
// SchemaError if any required column is absent; the optional "active"
// column is accepted when present.
func NewRowParser(r io.Reader) (*RowParser, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	return &RowParser{reader: cr, cols: cols, line: 1}, nil
}

// Next yields the next data row, or a row-level error for malformed input.
// A malformed row never aborts the stream; callers count it and move on.
// Returns io.EOF when the file is exhausted.
func (p *RowParser) Next() (RawRow, *models.RowError, error) {
	record, err := p.reader.Read()
	if err == io.EOF {
		return RawRow{}, nil, io.EOF
	}
	p.line++
	if err != nil {
		return RawRow{}, &models.RowError{
			Line:    p.line,
			Code:    models.RowErrCodeMalformed,
			Message: err.Error(),
		}, nil
	}

	return RawRow{
		Line:        p.line,
		SKU:         p.field(record, "sku"),
		Name:        p.field(record, "name"),
		Description: p.field(record, "description"),
		Active:      p.field(record, "active"),
	}, nil, nil
}

// field returns the trimmed value for a named column, or "" when the row is
// ragged and the column index is out of range.
func (p *RowParser) field(record []string, name string) string {
	idx, ok := p.cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
