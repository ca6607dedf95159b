package ml

import (
	"fmt"
	"math"
	"time"

	"kdd-ids/internal/cfg"
)

// BatchRecord describes one incremental fit that contributed trees to an
// ensemble, in training order.
type BatchRecord struct {
	Index     int       `json:"index"`
	Rows      int       `json:"rows"`
	Positives int       `json:"positives"`
	Trees     int       `json:"trees"`
	LogLoss   float64   `json:"log_loss"`
	TrainedAt time.Time `json:"trained_at"`
}

// Ensemble is the gradient-boosted model artifact: a base margin plus the
// sum of every tree's leaf value, squashed through the logistic function.
type Ensemble struct {
	BaseScore float64             `json:"base_score"`
	Features  int                 `json:"num_features"`
	Params    cfg.BoosterSettings `json:"params"`
	Trees     []Tree              `json:"trees"`
	Batches   []BatchRecord       `json:"batches"`
}

// NumFeatures implements Classifier.
func (e *Ensemble) NumFeatures() int { return e.Features }

// Margin is the raw log-odds score of x.
func (e *Ensemble) Margin(x []float64) float64 {
	m := logit(e.BaseScore)
	for i := range e.Trees {
		m += e.Trees[i].margin(x)
	}
	return m
}

// PredictProba implements Classifier.
func (e *Ensemble) PredictProba(x []float64) float64 {
	return sigmoid(e.Margin(x))
}

// Predict implements Classifier.
func (e *Ensemble) Predict(x []float64) int {
	if e.PredictProba(x) > 0.5 {
		return 1
	}
	return 0
}

// Validate checks structural integrity after decoding.
func (e *Ensemble) Validate() error {
	if e.Features <= 0 {
		return fmt.Errorf("model has no features")
	}
	if e.BaseScore <= 0 || e.BaseScore >= 1 {
		return fmt.Errorf("model base score %v outside (0,1)", e.BaseScore)
	}
	for i := range e.Trees {
		if err := e.Trees[i].validate(e.Features); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// FeatureImportance returns the average split gain of every feature,
// normalised to sum to 1. Features never used in a split score 0.
func (e *Ensemble) FeatureImportance() []float64 {
	total := make([]float64, e.Features)
	count := make([]int, e.Features)
	for i := range e.Trees {
		for _, n := range e.Trees[i].Nodes {
			if n.Leaf {
				continue
			}
			total[n.Feature] += n.Gain
			count[n.Feature]++
		}
	}

	var sum float64
	for f := range total {
		if count[f] > 0 {
			total[f] /= float64(count[f])
			sum += total[f]
		}
	}
	if sum > 0 {
		for f := range total {
			total[f] /= sum
		}
	}
	return total
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
