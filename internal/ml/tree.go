package ml

import (
	"fmt"

	"kdd-ids/internal/cfg"
)

// Node is one node of a regression tree. Internal nodes send x to Left when
// x[Feature] < Threshold and to Right otherwise; leaves carry Value, the
// margin contribution already scaled by the learning rate.
type Node struct {
	Leaf      bool    `json:"leaf"`
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Gain      float64 `json:"gain"`
	Cover     float64 `json:"cover"`
}

// Tree is a flat array of nodes rooted at index 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) margin(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *Tree) validate(numFeatures int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 || n.Feature >= numFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, numFeatures)
		}
		// children are always appended after their parent
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

type splitCandidate struct {
	feature int
	bin     int
	gain    float64
}

// treeBuilder grows one tree on a binned batch with second-order
// gradient statistics (logistic loss).
type treeBuilder struct {
	params cfg.BoosterSettings
	data   *binnedMatrix
	grad   []float64
	hess   []float64
	nodes  []Node
}

func buildTree(params cfg.BoosterSettings, data *binnedMatrix, grad, hess []float64) Tree {
	b := &treeBuilder{params: params, data: data, grad: grad, hess: hess}

	rows := make([]int, data.rows)
	for i := range rows {
		rows[i] = i
	}
	b.grow(rows, 0, data.histogram(rows, grad, hess, params.Workers))
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(rows []int, depth int, hist histogram) int {
	var G, H float64
	for _, r := range rows {
		G += b.grad[r]
		H += b.hess[r]
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Leaf: true, Value: b.leafValue(G, H), Cover: H})

	if depth >= b.params.MaxDepth || len(rows) < 2 {
		return idx
	}

	best := b.bestSplit(hist, G, H)
	if best.feature < 0 {
		return idx
	}

	bins := b.data.bins[best.feature]
	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, r := range rows {
		if int(bins[r]) <= best.bin {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	// build the smaller child directly, derive its sibling by subtraction
	var leftHist, rightHist histogram
	if len(left) <= len(right) {
		leftHist = b.data.histogram(left, b.grad, b.hess, b.params.Workers)
		rightHist = hist.subtract(leftHist)
	} else {
		rightHist = b.data.histogram(right, b.grad, b.hess, b.params.Workers)
		leftHist = hist.subtract(rightHist)
	}

	l := b.grow(left, depth+1, leftHist)
	r := b.grow(right, depth+1, rightHist)

	b.nodes[idx] = Node{
		Feature:   best.feature,
		Threshold: b.data.cuts[best.feature][best.bin],
		Left:      l,
		Right:     r,
		Gain:      best.gain,
		Cover:     H,
	}
	return idx
}

func (b *treeBuilder) leafValue(G, H float64) float64 {
	return -G / (H + b.params.Lambda) * b.params.LearningRate
}

// bestSplit scans every feature histogram and returns the split with the
// highest positive gain; feature < 0 means no split qualifies. Ties resolve
// to the lowest feature, then the lowest bin.
func (b *treeBuilder) bestSplit(hist histogram, G, H float64) splitCandidate {
	perFeature := make([]splitCandidate, len(hist))
	parallelFor(len(hist), b.params.Workers, func(f int) {
		perFeature[f] = b.bestFeatureSplit(f, hist[f], G, H)
	})

	best := splitCandidate{feature: -1}
	for _, c := range perFeature {
		if c.feature >= 0 && c.gain > best.gain {
			best = c
		}
	}
	return best
}

func (b *treeBuilder) bestFeatureSplit(f int, hf []gradPair, G, H float64) splitCandidate {
	lambda := b.params.Lambda
	mcw := b.params.MinChildWeight
	parent := G * G / (H + lambda)

	best := splitCandidate{feature: -1}
	var gl, hl float64
	for k := 0; k < len(hf)-1; k++ {
		gl += hf[k].g
		hl += hf[k].h
		gr, hr := G-gl, H-hl
		if hl < mcw || hr < mcw || hl <= 0 || hr <= 0 {
			continue
		}
		gain := 0.5*(gl*gl/(hl+lambda)+gr*gr/(hr+lambda)-parent) - b.params.Gamma
		if gain > best.gain {
			best = splitCandidate{feature: f, bin: k, gain: gain}
		}
	}
	return best
}
