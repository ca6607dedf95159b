// Package ml holds the learning side of the intrusion classifier: min-max
// scaling, SMOTE balancing, an incremental gradient-boosted tree trainer,
// threshold evaluation and the stateless inference service.
//
// Every fitted artifact (schema, scaler, ensemble) is immutable once built
// and safe for concurrent readers.
package ml

// MetricsInterface defines metrics methods needed by the trainer and the
// inference service. A nil MetricsInterface disables reporting.
type MetricsInterface interface {
	PredictionsInc(label string)
	PredictionFailuresInc()
	FeatureCountMismatchInc()
	LatencyObserve(float64)
	ScaledOutOfRangeAdd(int)
	ModelAgeSet(float64)
	ExpectedFeaturesSet(int)
	BatchTrained(trees int, seconds float64)
	SyntheticSamplesAdd(int)
}

// Classifier is a fitted binary model over encoded, scaled vectors.
type Classifier interface {
	// PredictProba returns the probability of the Intrusion class.
	PredictProba(x []float64) float64

	// Predict returns 0 or 1 at the model's native 0.5 boundary.
	Predict(x []float64) int

	// NumFeatures is the vector width the model was trained on.
	NumFeatures() int
}
