package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kdd-ids/internal/cfg"
	"kdd-ids/internal/common"
	"kdd-ids/internal/dataset"
	"kdd-ids/internal/metrics"
	"kdd-ids/internal/ml"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server  *ModelServer
	pair    *ml.ArtifactPair
	records []dataset.RawRecord
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	records := dataset.Generate(dataset.GeneratorConfig{Rows: 200, IntrusionRate: 0.4, NormalLabel: "normal", Seed: 1})
	settings := cfg.Settings{
		NormalLabel:    "normal",
		TestSize:       0.3,
		Seed:           42,
		BatchSize:      100,
		SMOTENeighbors: 5,
		Booster: cfg.BoosterSettings{
			NEstimators: 5, MaxDepth: 3, LearningRate: 0.3, Lambda: 1,
			MinChildWeight: 1, MaxBin: 16, Workers: 1,
		},
	}
	pair, _, err := (&ml.TrainPipeline{Settings: settings}).Run(context.Background(), records)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	wrapper := metrics.NewWrapper(metrics.NewWithRegistry(registry))
	svc, err := ml.NewService(pair, wrapper)
	require.NoError(t, err)

	return &fixture{
		server:  NewModelServer(svc, 0, time.Second, registry),
		pair:    pair,
		records: records,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) encoded(i int) []float64 {
	return f.pair.Encoder(nil).Encode(f.records[i])
}

func featuresBody(t *testing.T, features []float64) string {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{"features": features})
	require.NoError(t, err)
	return string(data)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func TestPredict_OK(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 20; i++ {
		rec := f.do(t, http.MethodPost, "/predict", featuresBody(t, f.encoded(i)))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

		var resp PredictionResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

		want := common.LabelNormal
		if dataset.CollapseLabel(f.records[i].Label, "normal") == dataset.Intrusion {
			want = common.LabelIntrusion
		}
		assert.Equal(t, want, resp.Prediction, "record %d", i)
	}
}

func TestPredict_MissingFeatures(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/predict", `{"values": [1, 2]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing 'features' in request body", decodeError(t, rec))

	rec = f.do(t, http.MethodPost, "/predict", `{"features": null}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing 'features' in request body", decodeError(t, rec))
}

func TestPredict_EmptyFeaturesIsCountMismatch(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/predict", `{"features": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, fmt.Sprintf("incorrect number of features: 0, expected %d", f.pair.ExpectedFeatures()), decodeError(t, rec))
}

func TestPredict_BodyTooLarge(t *testing.T) {
	f := newFixture(t)

	huge := make([]float64, 100*f.pair.ExpectedFeatures()+1000)
	for i := range huge {
		huge[i] = 123456.789
	}
	rec := f.do(t, http.MethodPost, "/predict", featuresBody(t, huge))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, decodeError(t, rec), "exceeds")
}

func TestPredict_FeatureCountMismatch(t *testing.T) {
	f := newFixture(t)
	expected := f.pair.ExpectedFeatures()

	rec := f.do(t, http.MethodPost, "/predict", featuresBody(t, []float64{1, 2, 3}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	msg := decodeError(t, rec)
	assert.Contains(t, msg, "3")
	assert.Contains(t, msg, fmt.Sprint(expected))
}

func TestPredict_BadRequests(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/predict", `{"features": [1, 2`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/predict", `{"features": ["a", "b"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/model/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var info ml.ModelInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	assert.Equal(t, f.pair.ExpectedFeatures(), info.ExpectedFeatures)
	assert.Equal(t, len(f.pair.Model.Trees), info.Trees)
	assert.Equal(t, f.pair.Manifest.RunID, info.RunID)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/predict", featuresBody(t, f.encoded(0)))
	f.do(t, http.MethodPost, "/predict", featuresBody(t, []float64{1}))

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "kddids_predictions_total")
	assert.Contains(t, body, "kddids_feature_count_mismatches_total 1")
	assert.Contains(t, body, fmt.Sprintf("kddids_expected_features %d", f.pair.ExpectedFeatures()))
}

func TestStream(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(PredictionRequest{Features: f.encoded(0), RequestID: "req-1"}))
	var resp StreamResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Contains(t, []string{common.LabelNormal, common.LabelIntrusion}, resp.Prediction)
	assert.Empty(t, resp.Error)

	require.NoError(t, conn.WriteJSON(PredictionRequest{Features: []float64{1, 2}}))
	resp = StreamResponse{}
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Empty(t, resp.Prediction)
	assert.Contains(t, resp.Error, "incorrect number of features")
	assert.NotEmpty(t, resp.RequestID, "a request id is assigned when absent")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"features": [], "request_id": "req-empty"}`)))
	resp = StreamResponse{}
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "req-empty", resp.RequestID)
	assert.Contains(t, resp.Error, "incorrect number of features: 0")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"request_id": "req-none"}`)))
	resp = StreamResponse{}
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "missing 'features' in request body", resp.Error)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	resp = StreamResponse{}
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Contains(t, resp.Error, "invalid request")
}

func TestStream_FrameTooLarge(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	huge := make([]float64, 100*f.pair.ExpectedFeatures()+1000)
	require.NoError(t, conn.WriteJSON(PredictionRequest{Features: huge}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp StreamResponse
	assert.Error(t, conn.ReadJSON(&resp), "the server closes the connection on an oversized frame")
}

func TestStartShutdown(t *testing.T) {
	f := newFixture(t)
	done := make(chan error, 1)
	go func() { done <- f.server.Start() }()

	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.server.Shutdown(ctx))
	assert.NoError(t, <-done)
}
