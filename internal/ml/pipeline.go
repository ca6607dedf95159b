package ml

import (
	"context"
	"fmt"
	"time"

	"kdd-ids/internal/cfg"
	"kdd-ids/internal/common"
	"kdd-ids/internal/dataset"
	"kdd-ids/internal/features"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TrainPipeline runs the full training flow on a raw corpus: label
// collapse, schema fit, encoding, stratified split, scaler fit on the
// training split, SMOTE on the training split only, batched boosting and a
// holdout evaluation at the native 0.5 boundary.
type TrainPipeline struct {
	Settings cfg.Settings
	Metrics  MetricsInterface
	Observer features.QualityObserver
}

// Run trains a new artifact pair. The returned report describes the
// holdout split.
func (p *TrainPipeline) Run(ctx context.Context, records []dataset.RawRecord) (*ArtifactPair, *Report, error) {
	s := p.Settings
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("training corpus is empty")
	}

	log.Info().Interface("raw_labels", dataset.RawLabelCounts(records)).Msg("label distribution before collapse")
	y := dataset.Labels(records, s.NormalLabel)
	counts := dataset.ClassCounts(y)
	log.Info().Int("normal", counts[0]).Int("intrusion", counts[1]).Msg("label distribution after collapse")

	schema, err := features.Fit(records, common.CategoricalColumns)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fit schema: %w", err)
	}
	X := features.NewEncoder(schema, p.Observer).EncodeAll(records)
	log.Info().Int("rows", len(X)).Int("columns", schema.Width()).Msg("corpus encoded")

	trainIdx, testIdx := dataset.StratifiedSplit(y, s.TestSize, s.Seed)
	Xtrain, ytrain := subset(X, y, trainIdx)
	Xtest, ytest := subset(X, y, testIdx)

	scaler, err := FitScaler(Xtrain, schema)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fit scaler: %w", err)
	}
	if Xtrain, err = scaler.Transform(Xtrain); err != nil {
		return nil, nil, err
	}
	if Xtest, err = scaler.Transform(Xtest); err != nil {
		return nil, nil, err
	}

	balancer := NewBalancer(s.SMOTENeighbors, s.Seed, s.Booster.Workers)
	Xbal, ybal, err := balancer.Balance(Xtrain, ytrain)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to balance training split: %w", err)
	}
	synthetic := len(Xbal) - len(Xtrain)
	if p.Metrics != nil {
		p.Metrics.SyntheticSamplesAdd(synthetic)
	}

	trainer, err := NewTrainer(s.Booster, s.BatchSize, p.Metrics)
	if err != nil {
		return nil, nil, err
	}
	model, err := trainer.Train(ctx, Xbal, ybal)
	if err != nil {
		return nil, nil, fmt.Errorf("training failed: %w", err)
	}

	yPred := make([]int, len(Xtest))
	for i, x := range Xtest {
		yPred[i] = model.Predict(x)
	}
	holdout := NewReport(ytest, yPred, 0.5)

	top, err := TopFeatures(schema.Columns(), model.FeatureImportance(), common.DefaultTopFeatures)
	if err != nil {
		return nil, nil, err
	}
	holdout.TopFeatures = top

	manifest := Manifest{
		RunID:           uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		NormalLabel:     s.NormalLabel,
		TrainingRows:    len(Xbal),
		SyntheticRows:   synthetic,
		HoldoutRows:     len(Xtest),
		HoldoutAccuracy: holdout.Accuracy,
		HoldoutMacroF1:  holdout.MacroAvg.F1,
		TopFeatures:     top,
	}
	pair, err := NewArtifactPair(schema, scaler, model, manifest)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("run_id", manifest.RunID).
		Int("features", pair.ExpectedFeatures()).
		Int("trees", len(model.Trees)).
		Int("batches", len(model.Batches)).
		Float64("holdout_accuracy", holdout.Accuracy).
		Msg("training pipeline complete")

	return pair, holdout, nil
}

func subset(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
