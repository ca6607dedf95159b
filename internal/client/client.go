// Package client calls a running kddids prediction server.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kddids: %d %s", e.Status, e.Message)
}

// Client posts feature vectors to the /predict endpoint.
type Client struct {
	base string
	rest *resty.Client
}

type predictReq struct {
	Features []float64 `json:"features"`
}

type predictResp struct {
	Prediction string `json:"prediction"`
}

type errorResp struct {
	Error string `json:"error"`
}

// New returns a client for the server at base, e.g. http://127.0.0.1:8000.
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// Predict returns the predicted label ("Normal" or "Intrusão").
func (c *Client) Predict(ctx context.Context, features []float64) (string, error) {
	result := &predictResp{}
	failure := &errorResp{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(predictReq{Features: features}).
		SetResult(result).
		SetError(failure).
		Post(c.base + "/predict")
	if err != nil {
		return "", fmt.Errorf("predict request failed: %w", err)
	}
	if resp.IsError() {
		msg := failure.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return "", &APIError{Status: resp.StatusCode(), Message: msg}
	}
	return result.Prediction, nil
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.rest.R().SetContext(ctx).Get(c.base + "/health")
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	if resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	}
	return nil
}
