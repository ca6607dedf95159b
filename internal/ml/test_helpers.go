package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      map[string]int
	failures         int
	mismatches       int
	latencySum       float64
	outOfRange       int
	modelAge         float64
	expectedFeatures int
	batches          int
	trees            int
	synthetic        int
}

func (m *MockMetrics) PredictionsInc(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.predictions == nil {
		m.predictions = make(map[string]int)
	}
	m.predictions[label]++
}

func (m *MockMetrics) PredictionFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) FeatureCountMismatchInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mismatches++
}

func (m *MockMetrics) LatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) ScaledOutOfRangeAdd(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outOfRange += n
}

func (m *MockMetrics) ModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) ExpectedFeaturesSet(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expectedFeatures = n
}

func (m *MockMetrics) BatchTrained(trees int, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	m.trees += trees
}

func (m *MockMetrics) SyntheticSamplesAdd(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synthetic += n
}
