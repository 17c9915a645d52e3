// Package face is the vision capability port. Embeddings are computed
// elsewhere; this package only fetches and compares them.
package face

import (
	"context"
	"errors"
	"math"
)

// Embedder captures one frame and returns the embedding of the face in
// it, or nil when no face was found.
type Embedder interface {
	Capture(ctx context.Context) ([]float64, error)
}

// Comparator decides whether two embeddings belong to the same person.
type Comparator interface {
	Compare(candidate, known []float64) bool
}

// DefaultTolerance is the usual euclidean cutoff for 128-d face encodings.
const DefaultTolerance = 0.6

var ErrDimension = errors.New("embedding dimension mismatch")

// Euclidean matches when the distance is at most Tolerance.
type Euclidean struct {
	Tolerance float64
}

func (e Euclidean) Compare(candidate, known []float64) bool {
	d, err := Distance(candidate, known)
	if err != nil {
		return false
	}
	return d <= e.Tolerance
}

func Distance(a, b []float64) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, ErrDimension
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
