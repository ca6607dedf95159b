package ml

import (
	"bytes"
	"errors"
	"testing"

	"kdd-ids/internal/common"
	"kdd-ids/internal/dataset"
	"kdd-ids/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReport(t *testing.T) {
	yTrue := []int{0, 0, 0, 0, 1, 1, 1, 1, 1, 1}
	yPred := []int{0, 0, 0, 1, 1, 1, 1, 1, 0, 0}

	r := NewReport(yTrue, yPred, 0.3)

	assert.Equal(t, [2][2]int{{3, 1}, {2, 4}}, r.Confusion)
	assert.Equal(t, 10, r.Total)
	assert.InDelta(t, 0.7, r.Accuracy, 1e-12)

	assert.InDelta(t, 3.0/5.0, r.Classes[0].Precision, 1e-12)
	assert.InDelta(t, 3.0/4.0, r.Classes[0].Recall, 1e-12)
	assert.Equal(t, 4, r.Classes[0].Support)
	assert.InDelta(t, 4.0/5.0, r.Classes[1].Precision, 1e-12)
	assert.InDelta(t, 4.0/6.0, r.Classes[1].Recall, 1e-12)
	assert.Equal(t, 6, r.Classes[1].Support)

	f0 := 2 * 0.6 * 0.75 / (0.6 + 0.75)
	f1 := 2 * 0.8 * (4.0 / 6.0) / (0.8 + 4.0/6.0)
	assert.InDelta(t, f0, r.Classes[0].F1, 1e-12)
	assert.InDelta(t, (f0+f1)/2, r.MacroAvg.F1, 1e-12)
	assert.InDelta(t, 0.4*f0+0.6*f1, r.WeightedAvg.F1, 1e-12)
}

func TestNewReport_ZeroDivision(t *testing.T) {
	r := NewReport([]int{0, 0}, []int{0, 0}, 0.5)
	assert.Equal(t, 0.0, r.Classes[1].Precision)
	assert.Equal(t, 0.0, r.Classes[1].F1)
	assert.Equal(t, 1.0, r.Accuracy)

	empty := NewReport(nil, nil, 0.5)
	assert.Equal(t, 0, empty.Total)
	assert.Equal(t, 0.0, empty.Accuracy)
}

func TestReport_Format(t *testing.T) {
	r := NewReport([]int{0, 1, 1}, []int{0, 1, 0}, 0.3)
	r.TopFeatures = []FeatureScore{{Name: "src_bytes", Score: 0.7}}

	var buf bytes.Buffer
	require.NoError(t, r.Format(&buf))
	out := buf.String()

	assert.Contains(t, out, "precision")
	assert.Contains(t, out, "macro avg")
	assert.Contains(t, out, "weighted avg")
	assert.Contains(t, out, "confusion matrix")
	assert.Contains(t, out, "src_bytes")
	assert.Contains(t, out, "threshold: 0.30")
}

func TestNewEvaluator_ThresholdRange(t *testing.T) {
	for _, th := range []float64{0, 1, -0.1, 1.5} {
		_, err := NewEvaluator(th, "normal", 10)
		assert.Error(t, err, "threshold %v", th)
	}
	e, err := NewEvaluator(0.3, "normal", 10)
	require.NoError(t, err)
	assert.Equal(t, 0.3, e.Threshold)
}

// constantPair serves a tree-less model whose probability is exactly 0.5.
func constantPair(t *testing.T) *ArtifactPair {
	t.Helper()
	records := compactRecords(10)
	schema, err := features.FitColumns(records, compactNumeric(), common.CategoricalColumns)
	require.NoError(t, err)
	scaler, err := FitScaler(features.NewEncoder(schema, nil).EncodeAll(records), schema)
	require.NoError(t, err)

	pair, err := NewArtifactPair(schema, scaler, &Ensemble{BaseScore: 0.5, Features: schema.Width()}, Manifest{})
	require.NoError(t, err)
	return pair
}

func TestEvaluate_ThresholdIsStrict(t *testing.T) {
	pair := constantPair(t)
	records := compactRecords(10)

	at, err := NewEvaluator(0.5, "normal", 0)
	require.NoError(t, err)
	r, err := at.Evaluate(pair, records)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Confusion[0][1]+r.Confusion[1][1], "p == threshold is Normal")

	below, err := NewEvaluator(0.49, "normal", 0)
	require.NoError(t, err)
	r, err = below.Evaluate(pair, records)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Confusion[0][1]+r.Confusion[1][1])
}

func TestEvaluate_ConfusionSumsToRows(t *testing.T) {
	pair := compactPair(t)
	records := compactRecords(60)
	truth := dataset.ClassCounts(dataset.Labels(records, "normal"))
	require.Positive(t, truth[0])
	require.Positive(t, truth[1])

	for _, threshold := range []float64{0.01, 0.1, 0.3, 0.5, 0.7, 0.9, 0.99} {
		e, err := NewEvaluator(threshold, "normal", 5)
		require.NoError(t, err)
		r, err := e.Evaluate(pair, records)
		require.NoError(t, err)

		for c := 0; c < 2; c++ {
			assert.Equal(t, truth[c], r.Confusion[c][0]+r.Confusion[c][1], "threshold %v class %d", threshold, c)
			assert.Equal(t, truth[c], r.Classes[c].Support, "threshold %v class %d", threshold, c)
		}
		assert.Equal(t, 60, r.Total)
		assert.Equal(t, "test", r.ModelVersion)
		assert.Len(t, r.TopFeatures, 5)
	}
}

func TestEvaluate_AccuracyAtDefaultThreshold(t *testing.T) {
	pair := compactPair(t)
	e, err := NewEvaluator(common.DefaultEvalThreshold, "normal", 0)
	require.NoError(t, err)
	r, err := e.Evaluate(pair, compactRecords(60))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, r.Accuracy, 0.9)
}

func TestEvaluate_UnseenCategoriesKeepWidth(t *testing.T) {
	pair := compactPair(t)
	records := compactRecords(4)
	records[0].Fields[2] = "telnet"
	records[1].Fields[1] = "icmp"

	e, err := NewEvaluator(0.3, "normal", 0)
	require.NoError(t, err)
	r, err := e.Evaluate(pair, records)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Total)
}

func TestEvaluateWithReference(t *testing.T) {
	pair := compactPair(t)
	e, err := NewEvaluator(0.3, "normal", 0)
	require.NoError(t, err)

	_, err = e.EvaluateWithReference(pair, compactRecords(100), compactRecords(20))
	require.NoError(t, err)

	drifted := compactRecords(100)
	drifted = append(drifted, dataset.RawRecord{Fields: append([]string(nil), drifted[0].Fields...), Label: "normal"})
	drifted[len(drifted)-1].Fields[2] = "telnet"

	_, err = e.EvaluateWithReference(pair, drifted, compactRecords(20))
	assert.True(t, errors.Is(err, ErrSchemaDrift))
}

func TestEvaluate_Empty(t *testing.T) {
	e, err := NewEvaluator(0.3, "normal", 0)
	require.NoError(t, err)
	_, err = e.Evaluate(constantPair(t), nil)
	assert.Error(t, err)
}

func TestEvaluateReindexed_MatchesSchemaEncoding(t *testing.T) {
	pair := compactPair(t)
	records := compactRecords(60)

	e, err := NewEvaluator(0.3, "normal", 0)
	require.NoError(t, err)
	want, err := e.Evaluate(pair, records)
	require.NoError(t, err)

	// reversed order, an extra column and a dropped all-zero column
	schemaCols := pair.Schema.Columns()
	encoded := pair.Encoder(nil).EncodeAll(records)
	var columns []string
	var source []int
	for j := len(schemaCols) - 1; j >= 0; j-- {
		if schemaCols[j] == "dst_bytes" {
			continue
		}
		columns = append(columns, schemaCols[j])
		source = append(source, j)
	}
	columns = append(columns, "service_telnet")

	table := &dataset.EncodedTable{Columns: columns}
	for i, row := range encoded {
		out := make([]float64, len(columns))
		for k, j := range source {
			out[k] = row[j]
		}
		out[len(out)-1] = 1
		table.Rows = append(table.Rows, out)
		table.Labels = append(table.Labels, records[i].Label)
	}

	got, err := e.EvaluateReindexed(pair, table)
	require.NoError(t, err)
	assert.Equal(t, want.Confusion, got.Confusion)
	assert.Equal(t, want.Accuracy, got.Accuracy)
}

func TestEvaluateReindexed_Errors(t *testing.T) {
	pair := compactPair(t)
	e, err := NewEvaluator(0.3, "normal", 0)
	require.NoError(t, err)

	_, err = e.EvaluateReindexed(pair, &dataset.EncodedTable{})
	assert.Error(t, err)

	_, err = e.EvaluateReindexed(pair, &dataset.EncodedTable{
		Columns: []string{"src_bytes"},
		Rows:    [][]float64{{1}},
		Labels:  []string{"normal", "neptune"},
	})
	assert.Error(t, err)

	_, err = e.EvaluateReindexed(pair, &dataset.EncodedTable{
		Columns: []string{"src_bytes", "logged_in"},
		Rows:    [][]float64{{1}},
		Labels:  []string{"normal"},
	})
	assert.Error(t, err, "row width must match the column list")
}
