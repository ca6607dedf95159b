package ml

import (
	"context"
	"fmt"
	"time"

	"kdd-ids/internal/common"
	"kdd-ids/internal/dataset"

	"github.com/rs/zerolog/log"
)

// Prediction is the outcome of scoring one encoded vector.
type Prediction struct {
	Label       string  `json:"prediction"`
	Class       int     `json:"class"`
	Probability float64 `json:"probability"`
}

// ModelInfo summarises the pair a Service is serving.
type ModelInfo struct {
	Version          string    `json:"version"`
	RunID            string    `json:"run_id"`
	ExpectedFeatures int       `json:"expected_features"`
	Trees            int       `json:"trees"`
	SchemaVersion    int       `json:"schema_version"`
	CreatedAt        time.Time `json:"created_at"`
}

// Service scores pre-encoded feature vectors against an immutable artifact
// pair. It holds no mutable state and is safe for concurrent use.
type Service struct {
	pair       *ArtifactPair
	classifier Classifier
	metrics    MetricsInterface
}

// NewService returns a service bound to pair. metrics may be nil.
func NewService(pair *ArtifactPair, metrics MetricsInterface) (*Service, error) {
	if pair == nil {
		return nil, fmt.Errorf("service requires an artifact pair")
	}
	if metrics != nil {
		metrics.ExpectedFeaturesSet(pair.ExpectedFeatures())
	}
	return &Service{pair: pair, classifier: pair.Model, metrics: metrics}, nil
}

// Pair returns the artifact pair being served.
func (s *Service) Pair() *ArtifactPair { return s.pair }

// Info describes the served pair.
func (s *Service) Info() ModelInfo {
	m := s.pair.Manifest
	return ModelInfo{
		Version:          m.Version,
		RunID:            m.RunID,
		ExpectedFeatures: s.pair.ExpectedFeatures(),
		Trees:            len(s.pair.Model.Trees),
		SchemaVersion:    s.pair.Schema.Version,
		CreatedAt:        m.CreatedAt,
	}
}

// ReportModelAge publishes the age of the served pair.
func (s *Service) ReportModelAge() {
	if s.metrics != nil && !s.pair.Manifest.CreatedAt.IsZero() {
		s.metrics.ModelAgeSet(time.Since(s.pair.Manifest.CreatedAt).Seconds())
	}
}

// Predict classifies one encoded vector at the model's native boundary.
// A nil vector is ErrMissingFeatures; any other length than the expected
// width, including zero, is a FeatureCountMismatch. Both are checked before
// the scaler or model is touched.
func (s *Service) Predict(ctx context.Context, features []float64) (pred Prediction, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &InternalComputeError{Err: fmt.Errorf("panic: %v", r)}
		}
		if s.metrics == nil {
			return
		}
		s.metrics.LatencyObserve(time.Since(start).Seconds())
		if err != nil {
			s.metrics.PredictionFailuresInc()
		} else {
			s.metrics.PredictionsInc(pred.Label)
		}
	}()

	if features == nil {
		return Prediction{}, ErrMissingFeatures
	}
	if expected := s.pair.ExpectedFeatures(); len(features) != expected {
		if s.metrics != nil {
			s.metrics.FeatureCountMismatchInc()
		}
		return Prediction{}, &FeatureCountMismatch{Got: len(features), Expected: expected}
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	scaled, err := s.pair.Scaler.TransformRow(features)
	if err != nil {
		return Prediction{}, &InternalComputeError{Err: err}
	}
	if n := OutOfRange(scaled); n > 0 && s.metrics != nil {
		s.metrics.ScaledOutOfRangeAdd(n)
	}

	class := s.classifier.Predict(scaled)
	switch class {
	case dataset.Normal:
		pred.Label = common.LabelNormal
	case dataset.Intrusion:
		pred.Label = common.LabelIntrusion
	default:
		log.Error().Int("class", class).Msg("model produced a class outside {0,1}")
		return Prediction{}, &InternalComputeError{Err: fmt.Errorf("%w: %d", ErrInvalidPrediction, class)}
	}
	pred.Class = class
	pred.Probability = s.classifier.PredictProba(scaled)
	return pred, nil
}
