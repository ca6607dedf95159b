package ml

import (
	"fmt"
	"time"

	"kdd-ids/internal/features"
)

// Manifest describes how an artifact pair was produced.
type Manifest struct {
	Version          string         `json:"version"`
	RunID            string         `json:"run_id"`
	CreatedAt        time.Time      `json:"created_at"`
	NormalLabel      string         `json:"normal_label"`
	SchemaVersion    int            `json:"schema_version"`
	ExpectedFeatures int            `json:"expected_features"`
	Trees            int            `json:"trees"`
	TrainingRows     int            `json:"training_rows"`
	SyntheticRows    int            `json:"synthetic_rows"`
	HoldoutRows      int            `json:"holdout_rows"`
	HoldoutAccuracy  float64        `json:"holdout_accuracy"`
	HoldoutMacroF1   float64        `json:"holdout_macro_f1"`
	TopFeatures      []FeatureScore `json:"top_features,omitempty"`
}

// ArtifactPair is the unit that is persisted, loaded and served: the schema
// the encoder was fitted with, the scaler fitted on that schema and the
// model trained on the scaler's output. It is immutable once built.
type ArtifactPair struct {
	Schema   *features.Schema
	Scaler   *ScalerArtifact
	Model    *Ensemble
	Manifest Manifest
}

// NewArtifactPair is the only way to obtain a pair. It rejects scalers and
// models whose widths disagree with each other or with the schema, and
// scalers fitted on a different schema, with ErrPairMismatch.
func NewArtifactPair(schema *features.Schema, scaler *ScalerArtifact, model *Ensemble, manifest Manifest) (*ArtifactPair, error) {
	if schema == nil || scaler == nil || model == nil {
		return nil, fmt.Errorf("%w: schema, scaler and model are all required", ErrPairMismatch)
	}
	if err := scaler.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPairMismatch, err)
	}
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPairMismatch, err)
	}
	if scaler.ExpectedFeatureCount != model.Features {
		return nil, fmt.Errorf("%w: scaler expects %d features, model %d",
			ErrPairMismatch, scaler.ExpectedFeatureCount, model.Features)
	}
	if scaler.ExpectedFeatureCount != schema.Width() {
		return nil, fmt.Errorf("%w: scaler expects %d features, schema encodes %d",
			ErrPairMismatch, scaler.ExpectedFeatureCount, schema.Width())
	}
	if scaler.SchemaFingerprint != schema.Fingerprint() {
		return nil, fmt.Errorf("%w: scaler was fitted on a different schema", ErrPairMismatch)
	}

	manifest.SchemaVersion = schema.Version
	manifest.ExpectedFeatures = schema.Width()
	manifest.Trees = len(model.Trees)

	return &ArtifactPair{Schema: schema, Scaler: scaler, Model: model, Manifest: manifest}, nil
}

// ExpectedFeatures is the width every inference request must have.
func (p *ArtifactPair) ExpectedFeatures() int {
	return p.Scaler.ExpectedFeatureCount
}

// Encoder returns an encoder bound to the pair's persisted schema.
func (p *ArtifactPair) Encoder(observer features.QualityObserver) *features.Encoder {
	return features.NewEncoder(p.Schema, observer)
}

// Score scales an encoded row and returns the class-1 probability together
// with the number of scaled values outside [0,1].
func (p *ArtifactPair) Score(encoded []float64) (float64, int, error) {
	scaled, err := p.Scaler.TransformRow(encoded)
	if err != nil {
		return 0, 0, err
	}
	return p.Model.PredictProba(scaled), OutOfRange(scaled), nil
}
