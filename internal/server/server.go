// Package server exposes the inference service over HTTP: a JSON predict
// endpoint, a websocket scoring stream, health and model info, and the
// Prometheus scrape endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"kdd-ids/internal/ml"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	msgMissingFeatures = "missing 'features' in request body"
	msgInternal        = "internal error"

	bytesPerFeature      = 32
	requestOverheadBytes = 4096
)

// PredictionRequest is the body of POST /predict and of each stream frame.
type PredictionRequest struct {
	Features  []float64 `json:"features"`
	RequestID string    `json:"request_id,omitempty"`
}

// PredictionResponse is returned by POST /predict.
type PredictionResponse struct {
	Prediction string `json:"prediction"`
}

// StreamResponse answers one websocket frame.
type StreamResponse struct {
	Prediction string `json:"prediction,omitempty"`
	Error      string `json:"error,omitempty"`
	RequestID  string `json:"request_id"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ModelServer provides HTTP API for model predictions
type ModelServer struct {
	svc      *ml.Service
	timeout  time.Duration
	upgrader websocket.Upgrader
	server   *http.Server
}

// NewModelServer wires the routes. gatherer backs /metrics; nil uses the
// default Prometheus registry.
func NewModelServer(svc *ml.Service, port int, timeout time.Duration, gatherer prometheus.Gatherer) *ModelServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	ms := &ModelServer{
		svc:      svc,
		timeout:  timeout,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}

	r := mux.NewRouter()
	r.Use(requestLogger)
	r.HandleFunc("/predict", ms.handlePredict)
	r.HandleFunc("/health", ms.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/model/info", ms.handleModelInfo).Methods(http.MethodGet)
	r.HandleFunc("/stream", ms.handleStream)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return ms
}

// Handler returns the routed handler, for embedding and tests.
func (ms *ModelServer) Handler() http.Handler {
	return ms.server.Handler
}

// Start begins serving HTTP requests. It returns nil after Shutdown.
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("starting model server")
	if err := ms.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, ms.maxRequestBytes())
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	raw, ok := body["features"]
	if !ok {
		writeError(w, http.StatusBadRequest, msgMissingFeatures)
		return
	}
	var features []float64
	if err := json.Unmarshal(raw, &features); err != nil {
		writeError(w, http.StatusBadRequest, "'features' must be an array of numbers")
		return
	}

	label, status, msg := ms.predict(r.Context(), features)
	if status != http.StatusOK {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, PredictionResponse{Prediction: label})
}

// predict runs the service and maps its errors onto HTTP statuses and
// client-safe messages.
func (ms *ModelServer) predict(ctx context.Context, features []float64) (string, int, string) {
	if ms.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ms.timeout)
		defer cancel()
	}

	pred, err := ms.svc.Predict(ctx, features)
	var mismatch *ml.FeatureCountMismatch
	switch {
	case err == nil:
		return pred.Label, http.StatusOK, ""
	case errors.Is(err, ml.ErrMissingFeatures):
		return "", http.StatusBadRequest, msgMissingFeatures
	case errors.As(err, &mismatch):
		return "", http.StatusBadRequest, mismatch.Error()
	default:
		log.Error().Err(err).Msg("prediction failed")
		return "", http.StatusInternalServerError, msgInternal
	}
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": ms.svc.Info().Version,
	})
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	ms.svc.ReportModelAge()
	writeJSON(w, http.StatusOK, ms.svc.Info())
}

// handleStream scores one request per text frame until the client closes.
func (ms *ModelServer) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := ms.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(ms.maxRequestBytes())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("stream closed unexpectedly")
			}
			return
		}

		var req PredictionRequest
		resp := StreamResponse{}
		if err := json.Unmarshal(data, &req); err != nil {
			resp.Error = fmt.Sprintf("invalid request: %v", err)
		} else {
			label, status, msg := ms.predict(r.Context(), req.Features)
			if status == http.StatusOK {
				resp.Prediction = label
			} else {
				resp.Error = msg
			}
		}
		resp.RequestID = req.RequestID
		if resp.RequestID == "" {
			resp.RequestID = uuid.NewString()
		}

		if err := conn.WriteJSON(resp); err != nil {
			log.Warn().Err(err).Msg("failed to write stream response")
			return
		}
	}
}

// maxRequestBytes bounds a predict body or stream frame: room for every
// expected feature as a long JSON number plus a request id.
func (ms *ModelServer) maxRequestBytes() int64 {
	return int64(ms.svc.Pair().ExpectedFeatures())*bytesPerFeature + requestOverheadBytes
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
