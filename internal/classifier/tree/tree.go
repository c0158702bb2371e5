// Package tree grows binary decision trees over sparse feature vectors.
// The same builder serves the random forest (Gini on class weights) and
// both boosting variants (gradient/hessian statistics); the split rule and
// leaf value come from a Criterion.
package tree

import (
	"math"
	"math/rand"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/feature"
)

// Stats are additive per-sample statistics. W is the sample weight,
// G the weighted target or gradient, H the hessian.
type Stats struct {
	W float64
	G float64
	H float64
}

func (s Stats) Add(o Stats) Stats { return Stats{s.W + o.W, s.G + o.G, s.H + o.H} }
func (s Stats) Sub(o Stats) Stats { return Stats{s.W - o.W, s.G - o.G, s.H - o.H} }

// Criterion scores candidate splits and computes leaf values.
type Criterion interface {
	// Gain of splitting parent into left and right. Only splits with a
	// strictly positive gain are taken.
	Gain(parent, left, right Stats) float64
	Leaf(s Stats) float64
	// Admissible reports whether both children satisfy the minimum size
	// constraints.
	Admissible(left, right Stats) bool
}

type Params struct {
	// MaxDepth <= 0 means unlimited.
	MaxDepth int
	// MaxFeatures picks how many of the candidate features present at a
	// node are evaluated. Nil evaluates all of them.
	MaxFeatures func(candidates int) int
	// Allowed restricts the features the tree may split on. Nil allows all.
	Allowed func(feature int) bool
	Rand    *rand.Rand
}

// Node is a tree node. A node with Left < 0 is a leaf.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict walks v down the tree. Samples with value <= Threshold go left.
func (t *Tree) Predict(v feature.Vector) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if v.Get(n.Feature) <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the length of the longest root to leaf path.
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Left < 0 {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

// Valid checks node links so a corrupt artifact cannot loop or index out
// of range at prediction time.
func (t *Tree) Valid(dim int) bool {
	if len(t.Nodes) == 0 {
		return false
	}
	for i, n := range t.Nodes {
		if n.Left < 0 {
			if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
				return false
			}
			continue
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return false
		}
		if n.Feature < 0 || n.Feature >= dim {
			return false
		}
	}
	return true
}

type entry struct {
	value  float64
	sample int
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

type builder struct {
	rows  []feature.Vector
	stats []Stats
	crit  Criterion
	p     Params
	nodes []Node
}

// Build grows a tree over the given samples (indices into rows and stats).
func Build(rows []feature.Vector, stats []Stats, samples []int, crit Criterion, p Params) *Tree {
	b := &builder{rows: rows, stats: stats, crit: crit, p: p}
	b.grow(samples, 0)
	return &Tree{Nodes: b.nodes}
}

func (b *builder) total(samples []int) Stats {
	var s Stats
	for _, i := range samples {
		s = s.Add(b.stats[i])
	}
	return s
}

func (b *builder) grow(samples []int, depth int) int {
	total := b.total(samples)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1, Value: b.crit.Leaf(total)})

	if len(samples) < 2 || (b.p.MaxDepth > 0 && depth >= b.p.MaxDepth) {
		return idx
	}
	best, ok := b.bestSplit(samples, total)
	if !ok {
		return idx
	}

	left := make([]int, 0, len(samples))
	right := make([]int, 0, len(samples))
	for _, s := range samples {
		if b.rows[s].Get(best.feature) <= best.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return idx
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx] = Node{Feature: best.feature, Threshold: best.threshold, Left: l, Right: r}
	return idx
}

func (b *builder) candidates(samples []int) ([]int, map[int][]entry) {
	entries := make(map[int][]entry)
	for _, s := range samples {
		row := b.rows[s]
		for k, f := range row.Indices {
			if b.p.Allowed != nil && !b.p.Allowed(f) {
				continue
			}
			entries[f] = append(entries[f], entry{value: row.Values[k], sample: s})
		}
	}
	features := make([]int, 0, len(entries))
	for f := range entries {
		features = append(features, f)
	}
	sort.Ints(features)

	if b.p.MaxFeatures != nil && b.p.Rand != nil {
		m := b.p.MaxFeatures(len(features))
		if m > 0 && m < len(features) {
			for i := 0; i < m; i++ {
				j := i + b.p.Rand.Intn(len(features)-i)
				features[i], features[j] = features[j], features[i]
			}
			features = features[:m]
			sort.Ints(features)
		}
	}
	return features, entries
}

type group struct {
	value float64
	stats Stats
}

func (b *builder) bestSplit(samples []int, total Stats) (split, bool) {
	features, entries := b.candidates(samples)
	best := split{gain: 0}
	found := false

	groups := make([]group, 0, len(samples)+1)
	for _, f := range features {
		es := entries[f]
		sort.Slice(es, func(i, j int) bool { return es[i].value < es[j].value })

		groups = groups[:0]
		var nonZero Stats
		zeroPlaced := len(es) == len(samples)
		for _, e := range es {
			if !zeroPlaced && e.value > 0 {
				groups = append(groups, group{value: 0})
				zeroPlaced = true
			}
			st := b.stats[e.sample]
			nonZero = nonZero.Add(st)
			if n := len(groups); n > 0 && groups[n-1].value == e.value {
				groups[n-1].stats = groups[n-1].stats.Add(st)
				continue
			}
			groups = append(groups, group{value: e.value, stats: st})
		}
		if !zeroPlaced {
			groups = append(groups, group{value: 0})
		}
		if len(es) < len(samples) {
			zero := total.Sub(nonZero)
			for i := range groups {
				if groups[i].value == 0 {
					groups[i].stats = zero
					break
				}
			}
		}
		if len(groups) < 2 {
			continue
		}

		var left Stats
		for i := 0; i < len(groups)-1; i++ {
			left = left.Add(groups[i].stats)
			right := total.Sub(left)
			if !b.crit.Admissible(left, right) {
				continue
			}
			gain := b.crit.Gain(total, left, right)
			if gain > best.gain+1e-12 {
				best = split{
					feature:   f,
					threshold: (groups[i].value + groups[i+1].value) / 2,
					gain:      gain,
				}
				found = true
			}
		}
	}
	return best, found
}
