package importer

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"product-importer/internal/models"
)

func readAll(t *testing.T, p *RowParser) ([]RawRow, []models.RowError) {
	t.Helper()
	var rows []RawRow
	var rowErrs []models.RowError
	for {
		raw, rowErr, err := p.Next()
		if err == io.EOF {
			return rows, rowErrs
		}
		assert.NoError(t, err)
		if rowErr != nil {
			rowErrs = append(rowErrs, *rowErr)
			continue
		}
		rows = append(rows, raw)
	}
}

func TestNewRowParser_ValidHeader(t *testing.T) {
	input := "sku,name,description,active\n"
	parser, err := NewRowParser(strings.NewReader(input))

	assert.NoError(t, err)
	assert.NotNil(t, parser)
}

func TestNewRowParser_HeaderIsCaseInsensitive(t *testing.T) {
	input := "SKU, Name ,DESCRIPTION\nabc,Widget,Things\n"
	parser, err := NewRowParser(strings.NewReader(input))
	assert.NoError(t, err)

	rows, rowErrs := readAll(t, parser)
	assert.Empty(t, rowErrs)
	assert.Len(t, rows, 1)
	assert.Equal(t, "abc", rows[0].SKU)
	assert.Equal(t, "Widget", rows[0].Name)
}

func TestNewRowParser_MissingColumns(t *testing.T) {
	input := "sku,price\nabc,10\n"
	parser, err := NewRowParser(strings.NewReader(input))

	assert.Nil(t, parser)
	var schemaErr *SchemaError
	assert.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"name", "description"}, schemaErr.Missing)
}

func TestRowParser_EmptyFile(t *testing.T) {
	parser, err := NewRowParser(strings.NewReader(""))

	assert.Nil(t, parser)
	assert.Error(t, err)
}

func TestRowParser_StreamsRowsWithLineNumbers(t *testing.T) {
	input := strings.Join([]string{
		"sku,name,description,active",
		"TSH-1, Blue Tee ,Soft cotton,true",
		"TSH-2,Red Tee,Warm cotton,false",
	}, "\n") + "\n"

	parser, err := NewRowParser(strings.NewReader(input))
	assert.NoError(t, err)

	rows, rowErrs := readAll(t, parser)
	assert.Empty(t, rowErrs)
	assert.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "TSH-1", rows[0].SKU)
	assert.Equal(t, "Blue Tee", rows[0].Name)
	assert.Equal(t, "Soft cotton", rows[0].Description)
	assert.Equal(t, "true", rows[0].Active)

	assert.Equal(t, 3, rows[1].Line)
	assert.Equal(t, "false", rows[1].Active)
}

func TestRowParser_RaggedRowYieldsEmptyFields(t *testing.T) {
	input := "sku,name,description,active\nTSH-1,Blue Tee\n"
	parser, err := NewRowParser(strings.NewReader(input))
	assert.NoError(t, err)

	rows, rowErrs := readAll(t, parser)
	assert.Empty(t, rowErrs)
	assert.Len(t, rows, 1)
	assert.Equal(t, "TSH-1", rows[0].SKU)
	assert.Equal(t, "", rows[0].Description)
	assert.Equal(t, "", rows[0].Active)
}

func TestRowParser_MalformedRowDoesNotAbortStream(t *testing.T) {
	input := strings.Join([]string{
		"sku,name,description",
		`TSH-1,bad"quote,oops`,
		"TSH-2,Red Tee,Fine",
	}, "\n") + "\n"

	parser, err := NewRowParser(strings.NewReader(input))
	assert.NoError(t, err)

	rows, rowErrs := readAll(t, parser)
	assert.Len(t, rowErrs, 1)
	assert.Equal(t, models.RowErrCodeMalformed, rowErrs[0].Code)

	assert.Len(t, rows, 1)
	assert.Equal(t, "TSH-2", rows[0].SKU)
}
