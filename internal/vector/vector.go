// Package vector implements the embedding math used by the matcher:
// L2 normalization and dot-product similarity over float32 vectors.
package vector

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrZeroNorm is returned when a vector cannot be normalized because its
	// Euclidean norm is zero, not finite, or the vector is empty.
	ErrZeroNorm = errors.New("vector has zero norm")

	// ErrDimensionMismatch is returned when two vectors of different length are compared.
	ErrDimensionMismatch = errors.New("vector dimensions do not match")
)

// Norm returns the Euclidean norm of v.
func Norm(v []float32) float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	return math.Sqrt(sumSquares)
}

// Normalize returns a copy of v scaled to unit length.
// The input slice is not modified.
func Normalize(v []float32) ([]float32, error) {
	norm := Norm(v)
	if len(v) == 0 || norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, ErrZeroNorm
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// IsUnit reports whether v has unit norm within tol.
func IsUnit(v []float32, tol float64) bool {
	return math.Abs(Norm(v)-1) <= tol
}

// Dot returns the dot product of a and b. For unit vectors this is their cosine similarity.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot, nil
}

// Cosine computes the cosine similarity of two vectors that are not necessarily normalized.
// Returns a value between -1 and 1, where 1 means identical direction.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	na, err := Normalize(a)
	if err != nil {
		return 0, err
	}
	nb, err := Normalize(b)
	if err != nil {
		return 0, err
	}
	sim, err := Dot(na, nb)
	if err != nil {
		return 0, err
	}
	// Clamp to [-1, 1] to handle floating point errors.
	return max(-1, min(1, sim)), nil
}
