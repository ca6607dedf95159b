package ml

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"kdd-ids/internal/cfg"
	"kdd-ids/internal/dataset"

	"github.com/rs/zerolog/log"
)

// defaultBaseScore is the initial class-1 probability before any tree.
const defaultBaseScore = 0.5

// Trainer fits a gradient-boosted ensemble incrementally. The first FitBatch
// cold-starts; every later call continues from the current ensemble, keeping
// its trees and appending Params.NEstimators new ones. The final model
// therefore depends on batch order.
type Trainer struct {
	params    cfg.BoosterSettings
	batchSize int
	metrics   MetricsInterface

	mu    sync.Mutex
	model *Ensemble
}

// NewTrainer validates params and returns a cold trainer.
func NewTrainer(params cfg.BoosterSettings, batchSize int, metrics MetricsInterface) (*Trainer, error) {
	if err := cfg.ValidateBooster(params); err != nil {
		return nil, err
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	return &Trainer{params: params, batchSize: batchSize, metrics: metrics}, nil
}

// Model returns the most recently fitted ensemble, or nil before the first batch.
func (t *Trainer) Model() *Ensemble {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.model
}

// FitBatch fits one batch. It fails with ErrConcurrentFit if another fit is
// running, and leaves the current model untouched on any error, including
// cancellation of ctx.
func (t *Trainer) FitBatch(ctx context.Context, X [][]float64, y []int) (*Ensemble, error) {
	if !t.mu.TryLock() {
		return nil, ErrConcurrentFit
	}
	defer t.mu.Unlock()

	next, err := t.fit(ctx, X, y)
	if err != nil {
		return nil, err
	}
	t.model = next
	return next, nil
}

// Train splits X into sequential batches of the configured size and fits
// them in order.
func (t *Trainer) Train(ctx context.Context, X [][]float64, y []int) (*Ensemble, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("train: %d rows but %d labels", len(X), len(y))
	}
	if len(X) == 0 {
		return nil, fmt.Errorf("train: no rows")
	}

	var model *Ensemble
	for start := 0; start < len(X); start += t.batchSize {
		end := min(start+t.batchSize, len(X))
		m, err := t.FitBatch(ctx, X[start:end], y[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch starting at row %d: %w", start, err)
		}
		model = m
	}
	return model, nil
}

func (t *Trainer) fit(ctx context.Context, X [][]float64, y []int) (*Ensemble, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("fit: empty batch")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("fit: %d rows but %d labels", len(X), len(y))
	}
	width := len(X[0])
	if t.model != nil {
		width = t.model.Features
	}
	positives := 0
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("fit: row %d: %w", i, &DimensionMismatch{Got: len(row), Expected: width})
		}
		switch y[i] {
		case dataset.Intrusion:
			positives++
		case dataset.Normal:
		default:
			return nil, fmt.Errorf("fit: label %d at row %d is not binary", y[i], i)
		}
	}

	start := time.Now()
	next := &Ensemble{BaseScore: defaultBaseScore, Features: width, Params: t.params}
	if t.model != nil {
		next.BaseScore = t.model.BaseScore
		next.Trees = append(make([]Tree, 0, len(t.model.Trees)+t.params.NEstimators), t.model.Trees...)
		next.Batches = append([]BatchRecord(nil), t.model.Batches...)
	}

	margin := make([]float64, len(X))
	for i, row := range X {
		margin[i] = next.Margin(row)
	}

	data := newBinnedMatrix(X, t.params.MaxBin, t.params.Workers)
	grad := make([]float64, len(X))
	hess := make([]float64, len(X))

	for round := 0; round < t.params.NEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fit cancelled after %d trees: %w", round, err)
		}
		for i := range X {
			p := sigmoid(margin[i])
			grad[i] = p - float64(y[i])
			hess[i] = math.Max(p*(1-p), 1e-16)
		}

		tree := buildTree(t.params, data, grad, hess)
		for i, row := range X {
			margin[i] += tree.margin(row)
		}
		next.Trees = append(next.Trees, tree)
	}

	record := BatchRecord{
		Index:     len(next.Batches),
		Rows:      len(X),
		Positives: positives,
		Trees:     t.params.NEstimators,
		LogLoss:   logLoss(margin, y),
		TrainedAt: time.Now().UTC(),
	}
	next.Batches = append(next.Batches, record)

	elapsed := time.Since(start)
	if t.metrics != nil {
		t.metrics.BatchTrained(t.params.NEstimators, elapsed.Seconds())
	}
	log.Info().
		Int("batch", record.Index).
		Int("rows", record.Rows).
		Int("positives", record.Positives).
		Int("total_trees", len(next.Trees)).
		Float64("log_loss", record.LogLoss).
		Dur("elapsed", elapsed).
		Msg("batch trained")

	return next, nil
}

func logLoss(margin []float64, y []int) float64 {
	const eps = 1e-15
	var sum float64
	for i, m := range margin {
		p := math.Min(math.Max(sigmoid(m), eps), 1-eps)
		if y[i] == dataset.Intrusion {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(len(margin))
}
