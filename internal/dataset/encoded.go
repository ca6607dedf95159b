package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// EncodedTable is a corpus that was one-hot encoded elsewhere: a header of
// encoded column names with the raw label last, and numeric rows.
type EncodedTable struct {
	Columns []string
	Rows    [][]float64
	Labels  []string
}

// ReadEncodedFile opens path and reads an encoded table from it.
func ReadEncodedFile(path string) (*EncodedTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	table, err := ReadEncoded(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.Info().
		Str("file", path).
		Int("rows", len(table.Rows)).
		Int("columns", len(table.Columns)).
		Msg("encoded CSV loaded successfully")
	return table, nil
}

// ReadEncoded parses an encoded table. The header is mandatory and its last
// column must be "label". Every other cell must parse as a number.
func ReadEncoded(in io.Reader) (*EncodedTable, error) {
	reader := csv.NewReader(in)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{Line: 1, Err: errors.New("empty file")}
	}
	if err != nil {
		return nil, &SchemaError{Line: 1, Err: err}
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[len(header)-1]), "label") {
		return nil, &SchemaError{Line: 1, Err: errors.New("header must name the encoded columns followed by label")}
	}

	table := &EncodedTable{Columns: make([]string, len(header)-1)}
	for i := range table.Columns {
		table.Columns[i] = strings.TrimSpace(header[i])
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			return nil, &SchemaError{Line: line, Err: err}
		}
		line, _ := reader.FieldPos(0)

		values := make([]float64, len(table.Columns))
		for i := range values {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
			if err != nil {
				return nil, &SchemaError{Line: line, Err: fmt.Errorf("column %s: %w", table.Columns[i], err)}
			}
			values[i] = v
		}
		table.Rows = append(table.Rows, values)
		table.Labels = append(table.Labels, strings.TrimSpace(row[len(row)-1]))
	}

	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("encoded table has no rows")
	}
	return table, nil
}
