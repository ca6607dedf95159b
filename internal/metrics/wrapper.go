package metrics

// MetricsWrapper adapts Metrics to the narrow interfaces consumed by the
// ml and features packages, which cannot import prometheus types directly.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) PredictionsInc(label string) {
	w.m.Predictions.WithLabelValues(label).Inc()
}

func (w *MetricsWrapper) PredictionFailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *MetricsWrapper) FeatureCountMismatchInc() {
	w.m.FeatureCountMismatches.Inc()
}

func (w *MetricsWrapper) LatencyObserve(v float64) {
	w.m.PredictionLatency.Observe(v)
}

func (w *MetricsWrapper) ScaledOutOfRangeAdd(n int) {
	if n > 0 {
		w.m.ScaledOutOfRange.Add(float64(n))
	}
}

func (w *MetricsWrapper) ModelAgeSet(v float64) {
	w.m.ModelAge.Set(v)
}

func (w *MetricsWrapper) ExpectedFeaturesSet(n int) {
	w.m.ExpectedFeatures.Set(float64(n))
}

func (w *MetricsWrapper) CoercionFallbackInc(column string) {
	w.m.CoercionFallbacks.WithLabelValues(column).Inc()
}

func (w *MetricsWrapper) UnseenCategoryInc(column string) {
	w.m.UnseenCategories.WithLabelValues(column).Inc()
}

func (w *MetricsWrapper) BatchTrained(trees int, seconds float64) {
	w.m.BatchesTrained.Inc()
	w.m.TreesBuilt.Add(float64(trees))
	w.m.BatchDuration.Observe(seconds)
}

func (w *MetricsWrapper) SyntheticSamplesAdd(n int) {
	if n > 0 {
		w.m.SyntheticSamples.Add(float64(n))
	}
}
