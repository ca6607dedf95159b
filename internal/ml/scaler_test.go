package ml

import (
	"errors"
	"testing"

	"kdd-ids/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeColumnSchema(t *testing.T) *features.Schema {
	t.Helper()
	s, err := features.NewSchema([]string{"duration", "src_bytes", "dst_bytes"}, nil)
	require.NoError(t, err)
	return s
}

func TestFitScaler(t *testing.T) {
	schema := threeColumnSchema(t)
	X := [][]float64{{0, 5, 1}, {10, 5, 3}, {5, 5, 2}}

	s, err := FitScaler(X, schema)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 5, 1}, s.Min)
	assert.Equal(t, []float64{10, 5, 3}, s.Max)
	assert.Equal(t, 3, s.ExpectedFeatureCount)
	assert.Equal(t, schema.Fingerprint(), s.SchemaFingerprint)
	assert.Equal(t, 3, s.Rows)
	require.NoError(t, s.Validate())

	scaled, err := s.Transform(X)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 0, 0}, {1, 0, 1}, {0.5, 0, 0.5}}, scaled)
}

func TestScaler_ConstantColumnHasNoNaN(t *testing.T) {
	s, err := FitScaler([][]float64{{0, 5, 1}, {1, 5, 2}}, threeColumnSchema(t))
	require.NoError(t, err)

	row, err := s.TransformRow([]float64{0.5, 7, 1.5})
	require.NoError(t, err)
	assert.Equal(t, 2.0, row[1], "constant columns shift by the minimum")
}

func TestScaler_NoClipping(t *testing.T) {
	s, err := FitScaler([][]float64{{0, 0, 0}, {10, 10, 10}}, threeColumnSchema(t))
	require.NoError(t, err)

	row, err := s.TransformRow([]float64{20, -10, 5})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, -1, 0.5}, row)
	assert.Equal(t, 2, OutOfRange(row))
}

func TestScaler_DimensionMismatch(t *testing.T) {
	schema := threeColumnSchema(t)

	_, err := FitScaler([][]float64{{1, 2}}, schema)
	var dm *DimensionMismatch
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 2, dm.Got)
	assert.Equal(t, 3, dm.Expected)

	s, err := FitScaler([][]float64{{1, 2, 3}}, schema)
	require.NoError(t, err)

	_, err = s.TransformRow([]float64{1, 2, 3, 4})
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 4, dm.Got)

	_, err = s.Transform([][]float64{{1, 2, 3}, {1}})
	assert.True(t, errors.As(err, &dm))
}

func TestScaler_Empty(t *testing.T) {
	_, err := FitScaler(nil, threeColumnSchema(t))
	assert.Error(t, err)
}

func TestScaler_Validate(t *testing.T) {
	s := &ScalerArtifact{Min: []float64{0, 2}, Max: []float64{1, 1}, ExpectedFeatureCount: 2}
	assert.Error(t, s.Validate())

	s = &ScalerArtifact{Min: []float64{0}, Max: []float64{1}, ExpectedFeatureCount: 2}
	assert.Error(t, s.Validate())
}
