package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// StreamResult is one answer from the /stream endpoint.
type StreamResult struct {
	Prediction string `json:"prediction,omitempty"`
	Error      string `json:"error,omitempty"`
	RequestID  string `json:"request_id"`
}

type streamReq struct {
	Features  []float64 `json:"features"`
	RequestID string    `json:"request_id"`
}

// Stream is a websocket session against /stream. Requests are answered in
// order, so Predict is a write followed by a read. Not safe for concurrent use.
type Stream struct {
	conn    *websocket.Conn
	timeout time.Duration
}

// DialStream opens a websocket session on the server at base.
func (c *Client) DialStream(ctx context.Context) (*Stream, error) {
	url := streamURL(c.base)
	log.Debug().Str("url", url).Msg("opening prediction stream")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	conn.SetReadLimit(64 * 1024)
	return &Stream{conn: conn, timeout: c.rest.GetClient().Timeout}, nil
}

func streamURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/stream"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/stream"
	default:
		return base + "/stream"
	}
}

// Predict sends one feature vector and waits for its answer. An empty
// requestID is replaced with a fresh uuid. A server-side rejection is
// returned in StreamResult.Error, not as an error.
func (s *Stream) Predict(features []float64, requestID string) (StreamResult, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if s.timeout > 0 {
		deadline := time.Now().Add(s.timeout)
		s.conn.SetWriteDeadline(deadline)
		s.conn.SetReadDeadline(deadline)
	}

	if err := s.conn.WriteJSON(streamReq{Features: features, RequestID: requestID}); err != nil {
		return StreamResult{}, fmt.Errorf("stream write failed: %w", err)
	}
	var res StreamResult
	if err := s.conn.ReadJSON(&res); err != nil {
		return StreamResult{}, fmt.Errorf("stream read failed: %w", err)
	}
	return res, nil
}

// Close sends a normal closure frame and closes the connection.
func (s *Stream) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		log.Debug().Err(err).Msg("close frame not sent")
	}
	return s.conn.Close()
}
