package ml

import (
	"fmt"
	"math/rand"
	"sort"

	"kdd-ids/internal/dataset"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// Balancer oversamples the minority class with SMOTE: each synthetic row is
// interpolated between a minority row and one of its K nearest minority
// neighbours. Output is deterministic for a given Seed regardless of Workers.
type Balancer struct {
	K       int
	Seed    int64
	Workers int
}

// NewBalancer returns a Balancer with the given neighbour count and seed.
func NewBalancer(k int, seed int64, workers int) *Balancer {
	return &Balancer{K: k, Seed: seed, Workers: workers}
}

type smoteDraw struct {
	base     int
	neighbor int
	gap      float64
}

// Balance returns X and y with synthetic minority rows appended after the
// originals so that both classes have the same count. Inputs are not
// modified. It fails on single-class input and on a minority class of
// fewer than two rows.
func (b *Balancer) Balance(X [][]float64, y []int) ([][]float64, []int, error) {
	if len(X) != len(y) {
		return nil, nil, fmt.Errorf("balance: %d rows but %d labels", len(X), len(y))
	}
	if b.K < 1 {
		return nil, nil, fmt.Errorf("balance: neighbour count must be positive, got %d", b.K)
	}

	for i, v := range y {
		if v != dataset.Normal && v != dataset.Intrusion {
			return nil, nil, fmt.Errorf("balance: label %d at row %d is not binary", v, i)
		}
	}
	counts := dataset.ClassCounts(y)
	if counts[0] == 0 || counts[1] == 0 {
		return nil, nil, fmt.Errorf("balance: training data contains a single class (normal=%d intrusion=%d)", counts[0], counts[1])
	}

	outX := make([][]float64, len(X), 2*max(counts[0], counts[1]))
	copy(outX, X)
	outY := make([]int, len(y), cap(outX))
	copy(outY, y)

	minorityClass := dataset.Normal
	if counts[dataset.Intrusion] < counts[dataset.Normal] {
		minorityClass = dataset.Intrusion
	}
	need := counts[1-minorityClass] - counts[minorityClass]
	if need == 0 {
		return outX, outY, nil
	}

	var minority []int
	for i, v := range y {
		if v == minorityClass {
			minority = append(minority, i)
		}
	}
	if len(minority) < 2 {
		return nil, nil, fmt.Errorf("balance: minority class has %d row, need at least 2 to interpolate", len(minority))
	}
	k := min(b.K, len(minority)-1)

	rng := rand.New(rand.NewSource(b.Seed))
	draws := make([]smoteDraw, need)
	bases := make(map[int]bool)
	for i := range draws {
		draws[i] = smoteDraw{base: rng.Intn(len(minority)), neighbor: rng.Intn(k), gap: rng.Float64()}
		bases[draws[i].base] = true
	}

	unique := make([]int, 0, len(bases))
	for m := range bases {
		unique = append(unique, m)
	}
	sort.Ints(unique)

	neighbors := make([][]int, len(minority))
	parallelFor(len(unique), b.Workers, func(i int) {
		m := unique[i]
		neighbors[m] = nearest(X, minority, m, k)
	})

	for _, d := range draws {
		a := X[minority[d.base]]
		nb := X[minority[neighbors[d.base][d.neighbor]]]
		synthetic := make([]float64, len(a))
		for j := range a {
			synthetic[j] = a[j] + d.gap*(nb[j]-a[j])
		}
		outX = append(outX, synthetic)
		outY = append(outY, minorityClass)
	}

	log.Info().
		Int("minority_class", minorityClass).
		Int("original", len(minority)).
		Int("synthetic", need).
		Int("k", k).
		Msg("SMOTE balancing complete")

	return outX, outY, nil
}

// nearest returns the positions (within minority) of the k rows closest to
// minority[self], ties broken by position.
func nearest(X [][]float64, minority []int, self, k int) []int {
	type cand struct {
		pos  int
		dist float64
	}
	best := make([]cand, 0, k+1)
	origin := X[minority[self]]

	for pos, row := range minority {
		if pos == self {
			continue
		}
		d := floats.Distance(origin, X[row], 2)
		if len(best) == k && d >= best[k-1].dist {
			continue
		}
		i := sort.Search(len(best), func(i int) bool { return best[i].dist > d })
		best = append(best, cand{})
		copy(best[i+1:], best[i:])
		best[i] = cand{pos: pos, dist: d}
		if len(best) > k {
			best = best[:k]
		}
	}

	out := make([]int, len(best))
	for i, c := range best {
		out[i] = c.pos
	}
	return out
}
