package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamURL(t *testing.T) {
	assert.Equal(t, "ws://127.0.0.1:8000/stream", streamURL("http://127.0.0.1:8000"))
	assert.Equal(t, "wss://ids.example/stream", streamURL("https://ids.example"))
	assert.Equal(t, "ws://host/stream", streamURL("ws://host"))
}

func TestStream_Predict(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stream", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			var req streamReq
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			res := StreamResult{RequestID: req.RequestID}
			if len(req.Features) == 2 {
				res.Prediction = "Normal"
			} else {
				res.Error = "incorrect number of features: 1, expected 2"
			}
			if err := conn.WriteJSON(res); err != nil {
				return
			}
		}
	}))
	defer ts.Close()

	c := New(ts.URL, time.Second)
	stream, err := c.DialStream(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	res, err := stream.Predict([]float64{0.1, 0.2}, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "Normal", res.Prediction)
	assert.Equal(t, "req-1", res.RequestID)

	res, err = stream.Predict([]float64{0.1}, "")
	require.NoError(t, err)
	assert.Empty(t, res.Prediction)
	assert.Contains(t, res.Error, "expected 2")
	assert.NotEmpty(t, res.RequestID)
}

func TestDialStream_Unreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second)
	_, err := c.DialStream(context.Background())
	assert.Error(t, err)
}
