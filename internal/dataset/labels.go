package dataset

import (
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// Binary class values.
const (
	Normal    = 0
	Intrusion = 1
)

// CollapseLabel maps a raw attack-type code to Normal when it equals the
// designated normal code and to Intrusion otherwise. Codes compare as
// numbers when both sides parse as numbers, so "21" and "21.0" are equal.
func CollapseLabel(raw, normal string) int {
	raw = strings.TrimSpace(raw)
	normal = strings.TrimSpace(normal)
	if raw == normal {
		return Normal
	}
	a, errA := strconv.ParseFloat(raw, 64)
	b, errB := strconv.ParseFloat(normal, 64)
	if errA == nil && errB == nil && a == b {
		return Normal
	}
	return Intrusion
}

// Labels collapses every record's label.
func Labels(records []RawRecord, normal string) []int {
	y := make([]int, len(records))
	for i, r := range records {
		y[i] = CollapseLabel(r.Label, normal)
	}
	return y
}

// RawLabelCounts counts the raw codes in records, for the pre-collapse log line.
func RawLabelCounts(records []RawRecord) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Label]++
	}
	return counts
}

// ClassCounts returns the number of Normal and Intrusion labels.
func ClassCounts(y []int) [2]int {
	var counts [2]int
	for _, v := range y {
		if v == Normal || v == Intrusion {
			counts[v]++
		}
	}
	return counts
}

// StratifiedSplit returns shuffled train and test row indices such that each
// class contributes round(testSize*count) rows to the test split. A class
// with at least two rows always keeps one row on each side.
func StratifiedSplit(y []int, testSize float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))

	byClass := make(map[int][]int)
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}

	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(math.Round(testSize * float64(len(idx))))
		if len(idx) >= 2 {
			nTest = max(1, min(nTest, len(idx)-1))
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}

	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test
}
