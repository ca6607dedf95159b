package ml

import (
	"fmt"
	"math"
	"time"

	"kdd-ids/internal/features"

	"gonum.org/v1/gonum/floats"
)

// ScalerArtifact is a fitted min-max scaler. It records the schema it was
// fitted against so that a scaler can never be paired with a model or
// encoder of a different column layout.
type ScalerArtifact struct {
	Min                  []float64 `json:"min"`
	Max                  []float64 `json:"max"`
	ExpectedFeatureCount int       `json:"expected_feature_count"`
	SchemaFingerprint    string    `json:"schema_fingerprint"`
	Rows                 int       `json:"rows"`
	FittedAt             time.Time `json:"fitted_at"`
}

// FitScaler computes per-column minimum and maximum over X. Every row must
// have exactly schema.Width() columns.
func FitScaler(X [][]float64, schema *features.Schema) (*ScalerArtifact, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on an empty matrix")
	}
	width := schema.Width()

	col := make([]float64, len(X))
	s := &ScalerArtifact{
		Min:                  make([]float64, width),
		Max:                  make([]float64, width),
		ExpectedFeatureCount: width,
		SchemaFingerprint:    schema.Fingerprint(),
		Rows:                 len(X),
		FittedAt:             time.Now().UTC(),
	}

	for _, row := range X {
		if len(row) != width {
			return nil, &DimensionMismatch{Got: len(row), Expected: width}
		}
	}
	for j := 0; j < width; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		s.Min[j] = floats.Min(col)
		s.Max[j] = floats.Max(col)
	}

	return s, nil
}

// Validate checks the internal consistency of a scaler, typically after it
// was decoded from storage.
func (s *ScalerArtifact) Validate() error {
	if s.ExpectedFeatureCount <= 0 {
		return fmt.Errorf("scaler has no features")
	}
	if len(s.Min) != s.ExpectedFeatureCount || len(s.Max) != s.ExpectedFeatureCount {
		return fmt.Errorf("scaler bounds have %d/%d entries, expected %d",
			len(s.Min), len(s.Max), s.ExpectedFeatureCount)
	}
	for j := range s.Min {
		if math.IsNaN(s.Min[j]) || math.IsNaN(s.Max[j]) || s.Min[j] > s.Max[j] {
			return fmt.Errorf("scaler column %d has invalid bounds [%v, %v]", j, s.Min[j], s.Max[j])
		}
	}
	return nil
}

// TransformRow maps x onto [0,1] using the fitted bounds. Columns whose
// training minimum equals their maximum yield x-min. Values outside the
// training range are not clipped.
func (s *ScalerArtifact) TransformRow(x []float64) ([]float64, error) {
	if len(x) != s.ExpectedFeatureCount {
		return nil, &DimensionMismatch{Got: len(x), Expected: s.ExpectedFeatureCount}
	}
	out := make([]float64, len(x))
	for j, v := range x {
		span := s.Max[j] - s.Min[j]
		if span == 0 {
			out[j] = v - s.Min[j]
			continue
		}
		out[j] = (v - s.Min[j]) / span
	}
	return out, nil
}

// Transform scales every row of X.
func (s *ScalerArtifact) Transform(X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

// OutOfRange counts scaled values that fall outside [0,1].
func OutOfRange(scaled []float64) int {
	n := 0
	for _, v := range scaled {
		if v < 0 || v > 1 {
			n++
		}
	}
	return n
}
