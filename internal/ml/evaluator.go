package ml

import (
	"fmt"
	"io"
	"strings"

	"kdd-ids/internal/dataset"
	"kdd-ids/internal/features"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// ClassMetrics are the per-class (or averaged) scores of a report.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is the outcome of evaluating a pair on a labelled corpus.
// Confusion rows are the true class, columns the predicted class.
type Report struct {
	ModelVersion string          `json:"model_version,omitempty"`
	Threshold    float64         `json:"threshold"`
	Total        int             `json:"total"`
	Confusion    [2][2]int       `json:"confusion"`
	Classes      [2]ClassMetrics `json:"classes"`
	Accuracy     float64         `json:"accuracy"`
	MacroAvg     ClassMetrics    `json:"macro_avg"`
	WeightedAvg  ClassMetrics    `json:"weighted_avg"`
	TopFeatures  []FeatureScore  `json:"top_features,omitempty"`
}

// NewReport tallies predictions against ground truth. Scores with a zero
// denominator are reported as 0.
func NewReport(yTrue, yPred []int, threshold float64) *Report {
	r := &Report{Threshold: threshold, Total: len(yTrue)}
	for i, t := range yTrue {
		r.Confusion[t][yPred[i]]++
	}

	correct := r.Confusion[0][0] + r.Confusion[1][1]
	r.Accuracy = ratio(correct, r.Total)

	for c := 0; c < 2; c++ {
		tp := r.Confusion[c][c]
		predicted := r.Confusion[0][c] + r.Confusion[1][c]
		actual := r.Confusion[c][0] + r.Confusion[c][1]

		m := ClassMetrics{
			Precision: ratio(tp, predicted),
			Recall:    ratio(tp, actual),
			Support:   actual,
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes[c] = m
	}

	precision := []float64{r.Classes[0].Precision, r.Classes[1].Precision}
	recall := []float64{r.Classes[0].Recall, r.Classes[1].Recall}
	f1 := []float64{r.Classes[0].F1, r.Classes[1].F1}

	r.MacroAvg = ClassMetrics{
		Precision: floats.Sum(precision) / 2,
		Recall:    floats.Sum(recall) / 2,
		F1:        floats.Sum(f1) / 2,
		Support:   r.Total,
	}
	if r.Total > 0 {
		weights := []float64{
			float64(r.Classes[0].Support) / float64(r.Total),
			float64(r.Classes[1].Support) / float64(r.Total),
		}
		r.WeightedAvg = ClassMetrics{
			Precision: floats.Dot(weights, precision),
			Recall:    floats.Dot(weights, recall),
			F1:        floats.Dot(weights, f1),
			Support:   r.Total,
		}
	}
	return r
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// Format writes the report as a classification-report table followed by the
// confusion matrix and, when present, the feature ranking.
func (r *Report) Format(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "threshold: %.2f\n\n", r.Threshold)
	fmt.Fprintf(&b, "%12s %10s %10s %10s %10s\n\n", "", "precision", "recall", "f1-score", "support")
	for c, m := range r.Classes {
		fmt.Fprintf(&b, "%12d %10.2f %10.2f %10.2f %10d\n", c, m.Precision, m.Recall, m.F1, m.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%12s %10s %10s %10.2f %10d\n", "accuracy", "", "", r.Accuracy, r.Total)
	fmt.Fprintf(&b, "%12s %10.2f %10.2f %10.2f %10d\n", "macro avg", r.MacroAvg.Precision, r.MacroAvg.Recall, r.MacroAvg.F1, r.MacroAvg.Support)
	fmt.Fprintf(&b, "%12s %10.2f %10.2f %10.2f %10d\n", "weighted avg", r.WeightedAvg.Precision, r.WeightedAvg.Recall, r.WeightedAvg.F1, r.WeightedAvg.Support)

	b.WriteString("\nconfusion matrix (rows = true, cols = predicted):\n")
	fmt.Fprintf(&b, "%12s %10d %10d\n", "", 0, 1)
	for c := 0; c < 2; c++ {
		fmt.Fprintf(&b, "%12d %10d %10d\n", c, r.Confusion[c][0], r.Confusion[c][1])
	}

	if len(r.TopFeatures) > 0 {
		fmt.Fprintf(&b, "\ntop %d features:\n", len(r.TopFeatures))
		for i, f := range r.TopFeatures {
			fmt.Fprintf(&b, "%3d. %-40s %.6f\n", i+1, f.Name, f.Score)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Evaluator scores a labelled corpus with a configurable decision threshold:
// a row is classified as Intrusion when its probability is strictly greater
// than Threshold. This is deliberately independent of the 0.5 boundary the
// inference service uses.
type Evaluator struct {
	Threshold   float64
	NormalLabel string
	TopN        int
	Observer    features.QualityObserver
}

// NewEvaluator returns an evaluator; threshold must lie in (0,1).
func NewEvaluator(threshold float64, normalLabel string, topN int) (*Evaluator, error) {
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("threshold must be in (0,1), got %v", threshold)
	}
	return &Evaluator{Threshold: threshold, NormalLabel: normalLabel, TopN: topN}, nil
}

// Evaluate encodes records with the pair's persisted schema (unknown
// categories dropped, missing ones zero), scales them with the pair's scaler
// and scores them.
func (e *Evaluator) Evaluate(pair *ArtifactPair, records []dataset.RawRecord) (*Report, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("evaluate: no records")
	}
	y := dataset.Labels(records, e.NormalLabel)
	X := pair.Encoder(e.Observer).EncodeAll(records)
	return e.EvaluateEncoded(pair, X, y)
}

// EvaluateWithReference first re-derives the schema from a reference
// training corpus and fails with ErrSchemaDrift if it does not match the
// schema persisted with the pair.
func (e *Evaluator) EvaluateWithReference(pair *ArtifactPair, reference, records []dataset.RawRecord) (*Report, error) {
	categorical := make([]string, len(pair.Schema.Categorical))
	for i, c := range pair.Schema.Categorical {
		categorical[i] = c.Name
	}
	ref, err := features.FitColumns(reference, pair.Schema.Numeric, categorical)
	if err != nil {
		return nil, fmt.Errorf("reference schema: %w", err)
	}
	if diff := pair.Schema.Diff(ref); diff != "" {
		return nil, fmt.Errorf("%w: %s", ErrSchemaDrift, diff)
	}
	return e.Evaluate(pair, records)
}

// EvaluateReindexed scores a table encoded independently of the pair: each
// row is realigned to the persisted schema by column name, with unknown
// columns dropped and missing ones set to zero.
func (e *Evaluator) EvaluateReindexed(pair *ArtifactPair, table *dataset.EncodedTable) (*Report, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, fmt.Errorf("evaluate: no rows")
	}
	if len(table.Labels) != len(table.Rows) {
		return nil, fmt.Errorf("evaluate: %d rows but %d labels", len(table.Rows), len(table.Labels))
	}

	given := make(map[string]bool, len(table.Columns))
	for _, name := range table.Columns {
		given[name] = true
	}
	expected := make(map[string]bool, pair.Schema.Width())
	missing := 0
	for _, name := range pair.Schema.Columns() {
		expected[name] = true
		if !given[name] {
			missing++
		}
	}
	extra := 0
	for name := range given {
		if !expected[name] {
			extra++
		}
	}
	if extra > 0 || missing > 0 {
		log.Warn().
			Int("dropped_columns", extra).
			Int("zero_filled_columns", missing).
			Msg("encoded table realigned to the persisted schema")
	}

	X := make([][]float64, len(table.Rows))
	for i, row := range table.Rows {
		aligned, err := pair.Schema.Reindex(table.Columns, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		X[i] = aligned
	}
	y := make([]int, len(table.Labels))
	for i, raw := range table.Labels {
		y[i] = dataset.CollapseLabel(raw, e.NormalLabel)
	}
	return e.EvaluateEncoded(pair, X, y)
}

// EvaluateEncoded scores rows already encoded with the pair's schema.
func (e *Evaluator) EvaluateEncoded(pair *ArtifactPair, X [][]float64, y []int) (*Report, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("evaluate: %d rows but %d labels", len(X), len(y))
	}

	yPred := make([]int, len(X))
	outOfRange := 0
	for i, x := range X {
		p, n, err := pair.Score(x)
		if err != nil {
			return nil, fmt.Errorf("evaluate row %d: %w", i, err)
		}
		outOfRange += n
		if p > e.Threshold {
			yPred[i] = dataset.Intrusion
		}
	}
	if outOfRange > 0 {
		log.Warn().Int("values", outOfRange).Msg("scaled values outside the training range")
	}

	report := NewReport(y, yPred, e.Threshold)
	report.ModelVersion = pair.Manifest.Version
	if e.TopN > 0 {
		top, err := PairImportance(pair, e.TopN)
		if err != nil {
			return nil, err
		}
		report.TopFeatures = top
	}

	log.Info().
		Int("rows", report.Total).
		Float64("threshold", e.Threshold).
		Float64("accuracy", report.Accuracy).
		Float64("macro_f1", report.MacroAvg.F1).
		Msg("evaluation complete")
	return report, nil
}
