package ml

import (
	"fmt"
	"sort"
)

// FeatureScore is one entry of a feature importance ranking.
type FeatureScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// TopFeatures returns the n highest-scoring features in descending order.
// Equal scores keep column order.
func TopFeatures(names []string, scores []float64, n int) ([]FeatureScore, error) {
	if len(names) != len(scores) {
		return nil, fmt.Errorf("feature importance: %d names for %d scores", len(names), len(scores))
	}

	features := make([]FeatureScore, len(names))
	for i, name := range names {
		features[i] = FeatureScore{Name: name, Score: scores[i]}
	}
	sort.SliceStable(features, func(i, j int) bool {
		return features[i].Score > features[j].Score
	})

	if n > len(features) {
		n = len(features)
	}
	return features[:n], nil
}

// PairImportance ranks the encoded columns of a pair by model gain.
func PairImportance(pair *ArtifactPair, n int) ([]FeatureScore, error) {
	return TopFeatures(pair.Schema.Columns(), pair.Model.FeatureImportance(), n)
}
