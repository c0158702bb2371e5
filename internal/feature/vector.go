// Package feature defines the sparse numeric vectors that flow from the
// vocabulary into the vector-based classifiers.
package feature

import (
	"fmt"
	"math"
	"sort"
)

// Vector is a sparse vector of fixed dimensionality. Indices are strictly
// increasing and every stored value is non-zero; absent indices are zero.
type Vector struct {
	Dim     int       `json:"dim"`
	Indices []int     `json:"indices"`
	Values  []float64 `json:"values"`
}

// Zero returns the all-zero vector of dimension dim.
func Zero(dim int) Vector {
	return Vector{Dim: dim}
}

// FromMap builds a Vector from index→value pairs, dropping zeros.
func FromMap(dim int, m map[int]float64) Vector {
	idx := make([]int, 0, len(m))
	for i, v := range m {
		if v != 0 {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	vals := make([]float64, len(idx))
	for k, i := range idx {
		vals[k] = m[i]
	}
	return Vector{Dim: dim, Indices: idx, Values: vals}
}

// NNZ returns the number of stored entries.
func (v Vector) NNZ() int {
	return len(v.Indices)
}

// Get returns the value at index i.
func (v Vector) Get(i int) float64 {
	k := sort.SearchInts(v.Indices, i)
	if k < len(v.Indices) && v.Indices[k] == i {
		return v.Values[k]
	}
	return 0
}

// Dot returns the inner product of v with a dense weight slice.
func (v Vector) Dot(w []float64) float64 {
	var s float64
	for k, i := range v.Indices {
		if i < len(w) {
			s += v.Values[k] * w[i]
		}
	}
	return s
}

// Norm returns the Euclidean norm.
func (v Vector) Norm() float64 {
	var s float64
	for _, x := range v.Values {
		s += x * x
	}
	return math.Sqrt(s)
}

// SquaredDistance returns |v-u|² by merging the two index lists.
func (v Vector) SquaredDistance(u Vector) float64 {
	var s float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(u.Indices) {
		switch {
		case v.Indices[i] == u.Indices[j]:
			d := v.Values[i] - u.Values[j]
			s += d * d
			i++
			j++
		case v.Indices[i] < u.Indices[j]:
			s += v.Values[i] * v.Values[i]
			i++
		default:
			s += u.Values[j] * u.Values[j]
			j++
		}
	}
	for ; i < len(v.Indices); i++ {
		s += v.Values[i] * v.Values[i]
	}
	for ; j < len(u.Indices); j++ {
		s += u.Values[j] * u.Values[j]
	}
	return s
}

// Lerp returns v + gap*(u-v). Used to synthesise points between two
// samples of the same class.
func (v Vector) Lerp(u Vector, gap float64) Vector {
	out := Vector{
		Dim:     v.Dim,
		Indices: make([]int, 0, len(v.Indices)+len(u.Indices)),
		Values:  make([]float64, 0, len(v.Indices)+len(u.Indices)),
	}
	add := func(idx int, a, b float64) {
		x := a + gap*(b-a)
		if x != 0 {
			out.Indices = append(out.Indices, idx)
			out.Values = append(out.Values, x)
		}
	}
	i, j := 0, 0
	for i < len(v.Indices) && j < len(u.Indices) {
		switch {
		case v.Indices[i] == u.Indices[j]:
			add(v.Indices[i], v.Values[i], u.Values[j])
			i++
			j++
		case v.Indices[i] < u.Indices[j]:
			add(v.Indices[i], v.Values[i], 0)
			i++
		default:
			add(u.Indices[j], 0, u.Values[j])
			j++
		}
	}
	for ; i < len(v.Indices); i++ {
		add(v.Indices[i], v.Values[i], 0)
	}
	for ; j < len(u.Indices); j++ {
		add(u.Indices[j], 0, u.Values[j])
	}
	return out
}

// Validate checks the structural invariants of v.
func (v Vector) Validate() error {
	if len(v.Indices) != len(v.Values) {
		return fmt.Errorf("vector has %d indices but %d values", len(v.Indices), len(v.Values))
	}
	prev := -1
	for k, i := range v.Indices {
		if i <= prev || i >= v.Dim {
			return fmt.Errorf("vector index %d at position %d out of order or range (dim %d)", i, k, v.Dim)
		}
		if math.IsNaN(v.Values[k]) || math.IsInf(v.Values[k], 0) {
			return fmt.Errorf("vector value at index %d is not finite", i)
		}
		prev = i
	}
	return nil
}
