package vectorstore

import (
	"fmt"
	"math"

	"github.com/spetr/mcp-vecstore/pkg/types"
)

// norm returns the Euclidean norm of v.
func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

// validateVector rejects vectors that cannot be normalized.
func validateVector(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty", types.ErrInvalidVector)
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("%w: non-finite component at %d", types.ErrInvalidVector, i)
		}
	}
	if norm(v) == 0 {
		return fmt.Errorf("%w: zero magnitude", types.ErrInvalidVector)
	}
	return nil
}

// unit returns v scaled to unit length in float64.
// The caller guarantees v has a non-zero norm.
func unit(v []float32) []float64 {
	n := norm(v)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x) / n
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// CosineSimilarity returns the cosine of the angle between a and b.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", types.ErrDimensionMismatch, len(a), len(b))
	}
	if err := validateVector(a); err != nil {
		return 0, err
	}
	if err := validateVector(b); err != nil {
		return 0, err
	}
	return dot(unit(a), unit(b)), nil
}
