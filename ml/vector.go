package ml

import (
	"fmt"
	"math"
	"sort"
)

// Vector is a sparse feature vector. Indices are strictly increasing.
type Vector struct {
	Dim     int       `json:"dim"`
	Indices []int     `json:"indices"`
	Values  []float64 `json:"values"`
}

// At returns the value at feature index i.
func (v Vector) At(i int) float64 {
	pos := sort.SearchInts(v.Indices, i)
	if pos < len(v.Indices) && v.Indices[pos] == i {
		return v.Values[pos]
	}
	return 0
}

func (v Vector) Dense() []float64 {
	out := make([]float64, v.Dim)
	for k, idx := range v.Indices {
		out[idx] = v.Values[k]
	}
	return out
}

func (v Vector) Validate() error {
	if len(v.Indices) != len(v.Values) {
		return fmt.Errorf("vector has %d indices and %d values", len(v.Indices), len(v.Values))
	}
	prev := -1
	for _, idx := range v.Indices {
		if idx <= prev || idx >= v.Dim {
			return fmt.Errorf("vector index %d out of order or outside dim %d", idx, v.Dim)
		}
		prev = idx
	}
	return nil
}

// DenseVector converts a dense slice into a sparse Vector, dropping zeros.
func DenseVector(values []float64) Vector {
	v := Vector{Dim: len(values)}
	for i, value := range values {
		if value != 0 {
			v.Indices = append(v.Indices, i)
			v.Values = append(v.Values, value)
		}
	}
	return v
}

func l2Normalize(values []float64) {
	var sum float64
	for _, value := range values {
		sum += value * value
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range values {
		values[i] /= norm
	}
}
