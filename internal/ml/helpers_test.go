package ml

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"kdd-ids/internal/cfg"
	"kdd-ids/internal/common"
	"kdd-ids/internal/dataset"
	"kdd-ids/internal/features"

	"github.com/stretchr/testify/require"
)

func smallParams() cfg.BoosterSettings {
	return cfg.BoosterSettings{
		NEstimators:    10,
		MaxDepth:       3,
		LearningRate:   0.3,
		Lambda:         1,
		MinChildWeight: 1,
		MaxBin:         32,
		Workers:        1,
	}
}

// separable returns n rows of two uniform features labelled by x0 > 0.5.
func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		X[i] = []float64{rng.Float64(), rng.Float64()}
		if X[i][0] > 0.5 {
			y[i] = 1
		}
	}
	return X, y
}

// compactRecords builds n records that encode to 10 numeric columns plus
// protocol_type(2), service(3) and flag(2): 17 columns in total.
func compactRecords(n int) []dataset.RawRecord {
	protos := []string{"tcp", "udp"}
	services := []string{"http", "smtp", "ftp"}
	flags := []string{"SF", "S0"}

	width := len(dataset.FeatureColumns())
	records := make([]dataset.RawRecord, n)
	for i := range records {
		fields := make([]string, width)
		for j := range fields {
			fields[j] = "0"
		}
		fields[1] = protos[i%2]
		fields[2] = services[i%3]
		fields[3] = flags[(i/2)%2]
		label := "normal"
		if i%2 == 1 {
			label = "neptune"
			fields[4] = fmt.Sprint(1000 + i)
		} else {
			fields[4] = fmt.Sprint(i)
		}
		fields[11] = fmt.Sprint(i % 2)
		records[i] = dataset.RawRecord{Fields: fields, Label: label}
	}
	return records
}

func compactNumeric() []string {
	return dataset.FeatureColumns()[4:14]
}

// compactPair trains a small pair on compactRecords(100).
func compactPair(t *testing.T) *ArtifactPair {
	t.Helper()

	records := compactRecords(100)
	schema, err := features.FitColumns(records, compactNumeric(), common.CategoricalColumns)
	require.NoError(t, err)
	require.Equal(t, 17, schema.Width())

	X := features.NewEncoder(schema, nil).EncodeAll(records)
	y := dataset.Labels(records, "normal")

	scaler, err := FitScaler(X, schema)
	require.NoError(t, err)
	Xs, err := scaler.Transform(X)
	require.NoError(t, err)

	Xb, yb, err := NewBalancer(5, 42, 1).Balance(Xs, y)
	require.NoError(t, err)

	trainer, err := NewTrainer(smallParams(), 40, nil)
	require.NoError(t, err)
	model, err := trainer.Train(context.Background(), Xb, yb)
	require.NoError(t, err)

	pair, err := NewArtifactPair(schema, scaler, model, Manifest{Version: "test"})
	require.NoError(t, err)
	return pair
}
