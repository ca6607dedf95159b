package ml

import (
	"sort"
	"sync"
)

// binnedMatrix is the column-major histogram view of a training batch.
// cuts[f] holds the sorted split candidates of feature f; a value x falls in
// bin k when exactly k cuts are <= x, so "bin <= k" is equivalent to
// "x < cuts[f][k]".
type binnedMatrix struct {
	rows int
	cuts [][]float64
	bins [][]uint8
}

func newBinnedMatrix(X [][]float64, maxBin, workers int) *binnedMatrix {
	nf := len(X[0])
	m := &binnedMatrix{
		rows: len(X),
		cuts: make([][]float64, nf),
		bins: make([][]uint8, nf),
	}

	parallelFor(nf, workers, func(f int) {
		col := make([]float64, len(X))
		for i, row := range X {
			col[i] = row[f]
		}
		cuts := featureCuts(col, maxBin)

		bins := make([]uint8, len(X))
		for i, row := range X {
			bins[i] = uint8(binOf(cuts, row[f]))
		}
		m.cuts[f] = cuts
		m.bins[f] = bins
	})
	return m
}

// featureCuts picks at most maxBin-1 cut points: midpoints between
// consecutive distinct values, thinned to quantiles when there are more
// distinct values than bins.
func featureCuts(col []float64, maxBin int) []float64 {
	sorted := make([]float64, len(col))
	copy(sorted, col)
	sort.Float64s(sorted)

	distinct := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != distinct[len(distinct)-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) < 2 {
		return nil
	}

	if len(distinct) <= maxBin {
		cuts := make([]float64, len(distinct)-1)
		for i := 1; i < len(distinct); i++ {
			cuts[i-1] = midpoint(distinct[i-1], distinct[i])
		}
		return cuts
	}

	cuts := make([]float64, 0, maxBin-1)
	for k := 1; k < maxBin; k++ {
		idx := k * len(distinct) / maxBin
		c := midpoint(distinct[idx-1], distinct[idx])
		if len(cuts) == 0 || c > cuts[len(cuts)-1] {
			cuts = append(cuts, c)
		}
	}
	return cuts
}

// midpoint never returns hi, so the cut always separates lo from hi.
func midpoint(lo, hi float64) float64 {
	m := lo + (hi-lo)/2
	if m >= hi || m <= lo {
		return hi
	}
	return m
}

func binOf(cuts []float64, x float64) int {
	return sort.Search(len(cuts), func(i int) bool { return cuts[i] > x })
}

type gradPair struct {
	g float64
	h float64
}

// histogram holds per-feature, per-bin gradient sums for one tree node.
type histogram [][]gradPair

func (m *binnedMatrix) histogram(rows []int, grad, hess []float64, workers int) histogram {
	h := make(histogram, len(m.bins))
	parallelFor(len(m.bins), workers, func(f int) {
		hf := make([]gradPair, len(m.cuts[f])+1)
		bins := m.bins[f]
		for _, r := range rows {
			b := bins[r]
			hf[b].g += grad[r]
			hf[b].h += hess[r]
		}
		h[f] = hf
	})
	return h
}

// subtract returns parent minus child, the histogram of the sibling node.
func (h histogram) subtract(child histogram) histogram {
	out := make(histogram, len(h))
	for f := range h {
		out[f] = make([]gradPair, len(h[f]))
		for b := range h[f] {
			out[f][b] = gradPair{g: h[f][b].g - child[f][b].g, h: h[f][b].h - child[f][b].h}
		}
	}
	return out
}

// parallelFor calls fn for every i in [0,n) on up to workers goroutines.
// Callers write results into per-index slots so the outcome does not depend
// on scheduling.
func parallelFor(n, workers int, fn func(i int)) {
	if workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(workers, n); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
