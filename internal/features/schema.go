// Package features encodes raw connection records into fixed-width numeric
// vectors. The column layout is captured once from the training corpus in a
// versioned Schema that is persisted with the scaler, so every later
// encoding (evaluation, serving) reproduces the exact training width.
package features

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"kdd-ids/internal/dataset"
)

// SchemaVersion is bumped whenever the encoding rules change.
const SchemaVersion = 1

// CategoricalColumn lists the categories of one one-hot expanded column in
// first-seen order.
type CategoricalColumn struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// Schema is the ordered set of encoded columns: numeric columns as-is
// followed by the one-hot columns of each categorical field.
// A Schema is immutable once built and safe for concurrent use.
type Schema struct {
	Version     int                 `json:"version"`
	Numeric     []string            `json:"numeric"`
	Categorical []CategoricalColumn `json:"categorical"`

	columns  []string
	index    map[string]int
	srcIndex map[string]int
	catIndex []map[string]int
}

// NewSchema builds a schema from its parts and precomputes lookup tables.
func NewSchema(numeric []string, categorical []CategoricalColumn) (*Schema, error) {
	s := &Schema{
		Version:     SchemaVersion,
		Numeric:     numeric,
		Categorical: categorical,
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

// Fit derives the schema from a training corpus. Every feature column not
// named in categorical is numeric.
func Fit(records []dataset.RawRecord, categorical []string) (*Schema, error) {
	isCategorical := make(map[string]bool, len(categorical))
	for _, name := range categorical {
		isCategorical[name] = true
	}

	var numeric []string
	for _, name := range dataset.FeatureColumns() {
		if !isCategorical[name] {
			numeric = append(numeric, name)
		}
	}

	return FitColumns(records, numeric, categorical)
}

// FitColumns derives the schema from a training corpus using only the
// listed numeric and categorical columns; other fields are ignored.
func FitColumns(records []dataset.RawRecord, numeric, categorical []string) (*Schema, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("cannot fit schema on an empty corpus")
	}

	cats := make([]CategoricalColumn, 0, len(categorical))
	for _, name := range categorical {
		seen := make(map[string]bool)
		col := CategoricalColumn{Name: name}
		for _, r := range records {
			v, ok := r.Field(name)
			if !ok {
				return nil, fmt.Errorf("unknown categorical column %q", name)
			}
			if !seen[v] {
				seen[v] = true
				col.Categories = append(col.Categories, v)
			}
		}
		cats = append(cats, col)
	}

	return NewSchema(numeric, cats)
}

func (s *Schema) init() error {
	if s.Version != SchemaVersion {
		return fmt.Errorf("unsupported schema version %d (want %d)", s.Version, SchemaVersion)
	}

	s.columns = make([]string, 0, len(s.Numeric))
	s.columns = append(s.columns, s.Numeric...)
	s.catIndex = make([]map[string]int, len(s.Categorical))
	for i, col := range s.Categorical {
		s.catIndex[i] = make(map[string]int, len(col.Categories))
		for _, c := range col.Categories {
			if _, dup := s.catIndex[i][c]; dup {
				return fmt.Errorf("duplicate category %q in column %q", c, col.Name)
			}
			s.catIndex[i][c] = len(s.columns)
			s.columns = append(s.columns, OneHotName(col.Name, c))
		}
	}

	s.index = make(map[string]int, len(s.columns))
	for i, name := range s.columns {
		if _, dup := s.index[name]; dup {
			return fmt.Errorf("duplicate encoded column %q", name)
		}
		s.index[name] = i
	}

	s.srcIndex = make(map[string]int)
	for i, name := range dataset.FeatureColumns() {
		s.srcIndex[name] = i
	}
	for _, name := range s.Numeric {
		if _, ok := s.srcIndex[name]; !ok {
			return fmt.Errorf("unknown numeric column %q", name)
		}
	}
	for _, col := range s.Categorical {
		if _, ok := s.srcIndex[col.Name]; !ok {
			return fmt.Errorf("unknown categorical column %q", col.Name)
		}
	}
	return nil
}

// OneHotName is the encoded column name for one category.
func OneHotName(column, category string) string {
	return column + "_" + category
}

// Width is the EncodedVector length.
func (s *Schema) Width() int { return len(s.columns) }

// Columns returns a copy of the ordered encoded column names.
func (s *Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Fingerprint identifies the schema by version and column order.
func (s *Schema) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "v%d\n", s.Version)
	h.Write([]byte(strings.Join(s.columns, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

// Diff returns a description of the first difference between two schemas,
// or "" when they encode identically.
func (s *Schema) Diff(other *Schema) string {
	if s.Version != other.Version {
		return fmt.Sprintf("version %d != %d", s.Version, other.Version)
	}
	if len(s.columns) != len(other.columns) {
		return fmt.Sprintf("width %d != %d", len(s.columns), len(other.columns))
	}
	for i := range s.columns {
		if s.columns[i] != other.columns[i] {
			return fmt.Sprintf("column %d is %q, expected %q", i, other.columns[i], s.columns[i])
		}
	}
	return ""
}

// Reindex realigns a row encoded against columns to this schema: columns
// the schema does not know are dropped and schema columns missing from the
// row are filled with zero.
func (s *Schema) Reindex(columns []string, row []float64) ([]float64, error) {
	if len(columns) != len(row) {
		return nil, fmt.Errorf("reindex: %d column names for %d values", len(columns), len(row))
	}
	out := make([]float64, len(s.columns))
	for i, name := range columns {
		if j, ok := s.index[name]; ok {
			out[j] = row[i]
		}
	}
	return out, nil
}

func (s *Schema) MarshalJSON() ([]byte, error) {
	type wire Schema
	return json.Marshal((*wire)(s))
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	type wire Schema
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = Schema(w)
	return s.init()
}
