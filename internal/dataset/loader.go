// Package dataset reads KDD-style connection records from CSV, collapses
// the attack taxonomy into a binary label and splits corpora for training.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"kdd-ids/internal/common"

	"github.com/rs/zerolog/log"
)

// RawRecord is one CSV row: the 41 feature cells in common.KDDColumns order
// and the raw attack-type label.
type RawRecord struct {
	Fields []string
	Label  string
}

// Field returns the cell for the named feature column.
func (r RawRecord) Field(name string) (string, bool) {
	idx, ok := featureIndex[name]
	if !ok || idx >= len(r.Fields) {
		return "", false
	}
	return r.Fields[idx], true
}

var featureIndex = func() map[string]int {
	m := make(map[string]int, len(common.KDDColumns)-1)
	for i, name := range FeatureColumns() {
		m[name] = i
	}
	return m
}()

// FeatureColumns returns the feature column names (every column but the label).
func FeatureColumns() []string {
	return common.KDDColumns[:len(common.KDDColumns)-1]
}

// SchemaError reports a row that does not fit the fixed column layout.
type SchemaError struct {
	Line     int
	Fields   int
	Expected int
	Err      error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema error at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("schema error at line %d: got %d columns, expected %d", e.Line, e.Fields, e.Expected)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Reader parses KDD CSV files. NSL-KDD distributions append a difficulty
// level after the label; set DifficultyColumn to accept and drop it.
type Reader struct {
	DifficultyColumn bool
}

// ReadFile opens path and reads every record from it.
func (r Reader) ReadFile(path string) ([]RawRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	records, err := r.Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.Info().
		Str("file", path).
		Int("records", len(records)).
		Msg("CSV data loaded successfully")

	return records, nil
}

// Read parses all rows from in. A header row matching the column names is
// skipped; any other row with the wrong column count fails with a SchemaError.
func (r Reader) Read(in io.Reader) ([]RawRecord, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	expected := len(common.KDDColumns)
	records := make([]RawRecord, 0, 1024)

	for first := true; ; first = false {
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

		// physical line of the row start; quoted fields may span lines
		line, _ := reader.FieldPos(0)
		if first && isHeader(row) {
			continue
		}

		n := len(row)
		if r.DifficultyColumn && n == expected+1 {
			n = expected
		}
		if n != expected {
			return nil, &SchemaError{Line: line, Fields: len(row), Expected: expected}
		}

		fields := make([]string, expected-1)
		for i := range fields {
			fields[i] = strings.TrimSpace(row[i])
		}
		records = append(records, RawRecord{
			Fields: fields,
			Label:  strings.TrimSpace(row[expected-1]),
		})
	}

	return records, nil
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), common.KDDColumns[0])
}
