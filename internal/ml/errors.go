package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingFeatures is returned for a nil feature vector (the request
	// carried no features at all). An empty vector is a FeatureCountMismatch.
	ErrMissingFeatures = errors.New("missing features")

	// ErrPairMismatch means a scaler and model cannot be served together.
	ErrPairMismatch = errors.New("scaler and model do not form a valid pair")

	// ErrSchemaDrift means a reference corpus encodes to a different column
	// layout than the persisted schema.
	ErrSchemaDrift = errors.New("reference corpus schema differs from persisted schema")

	// ErrConcurrentFit is returned when a fit is already in progress.
	ErrConcurrentFit = errors.New("another fit is in progress")

	// ErrInvalidPrediction is returned when the model yields a class other than 0 or 1.
	ErrInvalidPrediction = errors.New("model produced an invalid class")
)

// DimensionMismatch reports a matrix or vector whose column count differs
// from what a fitted artifact expects.
type DimensionMismatch struct {
	Got      int
	Expected int
}

func (e *DimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: got %d columns, expected %d", e.Got, e.Expected)
}

// FeatureCountMismatch is the request-level form of DimensionMismatch raised
// by the inference service before any scaling happens.
type FeatureCountMismatch struct {
	Got      int
	Expected int
}

func (e *FeatureCountMismatch) Error() string {
	return fmt.Sprintf("incorrect number of features: %d, expected %d", e.Got, e.Expected)
}

// InternalComputeError wraps any failure inside scaling or prediction.
type InternalComputeError struct {
	Err error
}

func (e *InternalComputeError) Error() string {
	return fmt.Sprintf("internal compute error: %v", e.Err)
}

func (e *InternalComputeError) Unwrap() error { return e.Err }
