package inference

import (
	"fmt"
	"sort"
)

// SparseVector is a row of the feature matrix. Only non-zero entries are stored;
// an absent column is treated as missing by the tree ensemble.
type SparseVector struct {
	Dim     int
	Indices []int
	Values  []float64
}

// NewSparseVector builds a vector of the given width from a column->value map
func NewSparseVector(dim int, entries map[int]float64) (*SparseVector, error) {
	v := &SparseVector{Dim: dim}
	indices := make([]int, 0, len(entries))
	for idx, val := range entries {
		if idx < 0 || idx >= dim {
			return nil, fmt.Errorf("column %d out of range for width %d", idx, dim)
		}
		if val != 0 {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)
	v.Indices = indices
	v.Values = make([]float64, len(indices))
	for i, idx := range indices {
		v.Values[i] = entries[idx]
	}
	return v, nil
}

// Dense builds a sparse vector from dense values, dropping zeros
func Dense(values ...float64) *SparseVector {
	v := &SparseVector{Dim: len(values)}
	for i, val := range values {
		if val != 0 {
			v.Indices = append(v.Indices, i)
			v.Values = append(v.Values, val)
		}
	}
	return v
}

// Hstack concatenates vectors column-wise in the given order
func Hstack(parts ...*SparseVector) *SparseVector {
	out := &SparseVector{}
	for _, p := range parts {
		for i, idx := range p.Indices {
			out.Indices = append(out.Indices, out.Dim+idx)
			out.Values = append(out.Values, p.Values[i])
		}
		out.Dim += p.Dim
	}
	return out
}

// Lookup returns the stored entries keyed by column
func (v *SparseVector) Lookup() map[int]float64 {
	m := make(map[int]float64, len(v.Indices))
	for i, idx := range v.Indices {
		m[idx] = v.Values[i]
	}
	return m
}

// At returns the value at column idx and whether it is present
func (v *SparseVector) At(idx int) (float64, bool) {
	i := sort.SearchInts(v.Indices, idx)
	if i < len(v.Indices) && v.Indices[i] == idx {
		return v.Values[i], true
	}
	return 0, false
}
