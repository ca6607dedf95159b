// Package metrics provides Prometheus metrics for the intrusion classifier.
// It covers the inference path (predictions, validation failures, latency),
// data-quality signals raised by the feature encoder, and training progress.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics exported by the classifier.
type Metrics struct {
	// Inference metrics
	Predictions            *prometheus.CounterVec // Predictions served, by label
	PredictionFailures     prometheus.Counter     // Internal scaling/prediction failures
	FeatureCountMismatches prometheus.Counter     // Requests rejected for a wrong vector width
	PredictionLatency      prometheus.Histogram   // End-to-end service latency in seconds
	ScaledOutOfRange       prometheus.Counter     // Scaled values that fell outside [0,1]
	ModelAge               prometheus.Gauge       // Age of the loaded artifact pair in seconds
	ExpectedFeatures       prometheus.Gauge       // Width the loaded scaler expects

	// Data-quality metrics
	CoercionFallbacks *prometheus.CounterVec // Non-numeric cells replaced by 0.0, by column
	UnseenCategories  *prometheus.CounterVec // Categories dropped during encoding, by column

	// Training metrics
	BatchesTrained   prometheus.Counter   // Incremental batches fitted
	TreesBuilt       prometheus.Counter   // Trees appended to the ensemble
	BatchDuration    prometheus.Histogram // Duration of a single batch fit in seconds
	SyntheticSamples prometheus.Counter   // Rows generated by the balancer
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kddids_predictions_total",
			Help: "Total number of predictions served, by label",
		}, []string{"label"}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "kddids_prediction_failures_total",
			Help: "Total number of internal failures during scaling or prediction",
		}),
		FeatureCountMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "kddids_feature_count_mismatches_total",
			Help: "Total number of requests rejected for a wrong feature count",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kddids_prediction_latency_seconds",
			Help:    "Inference latency in seconds (validation, scaling and tree traversal)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		ScaledOutOfRange: factory.NewCounter(prometheus.CounterOpts{
			Name: "kddids_scaled_out_of_range_total",
			Help: "Total number of scaled feature values outside the fitted [0,1] range",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kddids_model_age_seconds",
			Help: "Age of the loaded artifact pair in seconds",
		}),
		ExpectedFeatures: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kddids_expected_features",
			Help: "Feature count expected by the loaded scaler",
		}),
		CoercionFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kddids_coercion_fallbacks_total",
			Help: "Total number of non-numeric cells replaced by 0.0 during encoding",
		}, []string{"column"}),
		UnseenCategories: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kddids_unseen_categories_total",
			Help: "Total number of categorical values dropped because the schema does not know them",
		}, []string{"column"}),
		BatchesTrained: factory.NewCounter(prometheus.CounterOpts{
			Name: "kddids_batches_trained_total",
			Help: "Total number of incremental training batches fitted",
		}),
		TreesBuilt: factory.NewCounter(prometheus.CounterOpts{
			Name: "kddids_trees_built_total",
			Help: "Total number of trees appended to the ensemble",
		}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kddids_batch_duration_seconds",
			Help:    "Duration of a single incremental batch fit in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
		}),
		SyntheticSamples: factory.NewCounter(prometheus.CounterOpts{
			Name: "kddids_synthetic_samples_total",
			Help: "Total number of synthetic minority rows generated by the balancer",
		}),
	}
}
