package features

import (
	"math"
	"strconv"
	"time"

	"kdd-ids/internal/dataset"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// QualityObserver receives data-quality signals raised while encoding.
type QualityObserver interface {
	CoercionFallbackInc(column string)
	UnseenCategoryInc(column string)
}

// coercionSampler keeps a dirty corpus from flooding the log.
var coercionSampler = &zerolog.BurstSampler{Burst: 20, Period: time.Second}

// Encoder maps raw records onto a fixed Schema.
type Encoder struct {
	schema   *Schema
	observer QualityObserver
}

// NewEncoder returns an encoder for schema. observer may be nil.
func NewEncoder(schema *Schema, observer QualityObserver) *Encoder {
	return &Encoder{schema: schema, observer: observer}
}

// Schema returns the schema the encoder targets.
func (e *Encoder) Schema() *Schema { return e.schema }

// Encode produces a vector of exactly Schema.Width() values. Numeric cells
// that do not parse (or parse to NaN/Inf) become 0.0. Categories unknown to
// the schema contribute no column; known categories absent from the record
// stay 0.
func (e *Encoder) Encode(r dataset.RawRecord) []float64 {
	s := e.schema
	out := make([]float64, s.Width())

	for i, name := range s.Numeric {
		out[i] = e.coerce(name, r.Fields[s.srcIndex[name]])
	}

	for i, col := range s.Categorical {
		v := r.Fields[s.srcIndex[col.Name]]
		if j, ok := s.catIndex[i][v]; ok {
			out[j] = 1
			continue
		}
		log.Debug().Str("column", col.Name).Str("value", v).Msg("dropping category unseen at training time")
		if e.observer != nil {
			e.observer.UnseenCategoryInc(col.Name)
		}
	}

	return out
}

// EncodeAll encodes every record into a row-major matrix.
func (e *Encoder) EncodeAll(records []dataset.RawRecord) [][]float64 {
	X := make([][]float64, len(records))
	for i, r := range records {
		X[i] = e.Encode(r)
	}
	return X
}

func (e *Encoder) coerce(column, cell string) float64 {
	v, err := strconv.ParseFloat(cell, 64)
	if err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v
	}

	sampled := log.Logger.Sample(coercionSampler)
	sampled.Warn().
		Str("column", column).
		Str("value", cell).
		Msg("non-numeric cell coerced to 0.0")
	if e.observer != nil {
		e.observer.CoercionFallbackInc(column)
	}
	return 0
}
