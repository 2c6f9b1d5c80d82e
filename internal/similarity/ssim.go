// Package similarity implements the structural similarity score used to compare
// grayscale feature vectors.
package similarity

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stabilizing constants of the SSIM formula for signals normalized to [0,1].
const (
	C1 = 0.0001
	C2 = 0.0009
)

var (
	// ErrShapeMismatch is returned when two vectors of different length are compared.
	ErrShapeMismatch = errors.New("vector length mismatch")
	// ErrEmptyVector is returned when a vector has no components.
	ErrEmptyVector = errors.New("empty vector")
)

// Mean returns the arithmetic mean of x.
func Mean(x []float64) float64 {
	return stat.Mean(x, nil)
}

// PopVariance returns the population variance of x (divided by n, not n-1).
func PopVariance(x []float64) float64 {
	return stat.PopVariance(x, nil)
}

// PopCovariance returns the population covariance of x and y.
// Both slices must have the same length.
func PopCovariance(x, y []float64) float64 {
	n := len(x)
	if n < 2 {
		return 0
	}
	// stat.Covariance is the unbiased estimator, rescale to population.
	return stat.Covariance(x, y, nil) * float64(n-1) / float64(n)
}

// Signal is a vector with its first and second moments precomputed, so that a
// vector compared many times against its neighbours is only summarized once.
type Signal struct {
	centered []float64
	mean     float64
	variance float64
}

// NewSignal summarizes x. The input slice is not retained.
func NewSignal(x []float64) (*Signal, error) {
	if len(x) == 0 {
		return nil, ErrEmptyVector
	}

	mean := stat.Mean(x, nil)
	centered := make([]float64, len(x))
	copy(centered, x)
	floats.AddConst(-mean, centered)

	return &Signal{
		centered: centered,
		mean:     mean,
		variance: floats.Dot(centered, centered) / float64(len(x)),
	}, nil
}

// Len returns the number of components of the summarized vector.
func (s *Signal) Len() int {
	return len(s.centered)
}

// Mean returns the mean of the summarized vector.
func (s *Signal) Mean() float64 {
	return s.mean
}

// Variance returns the population variance of the summarized vector.
func (s *Signal) Variance() float64 {
	return s.variance
}

// Compare returns the SSIM score of two summarized signals.
func Compare(a, b *Signal) (float64, error) {
	if a == nil || b == nil || a.Len() == 0 || b.Len() == 0 {
		return 0, ErrEmptyVector
	}
	if a.Len() != b.Len() {
		return 0, fmt.Errorf("%w: %d != %d", ErrShapeMismatch, a.Len(), b.Len())
	}

	covariance := floats.Dot(a.centered, b.centered) / float64(a.Len())
	return score(a.mean, b.mean, a.variance, b.variance, covariance), nil
}

// SSIM returns the global structural similarity of x and y computed from their
// population statistics. The result lies in [-1, 1]; identical non-empty
// vectors score 1.
func SSIM(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: %d != %d", ErrShapeMismatch, len(x), len(y))
	}

	a, err := NewSignal(x)
	if err != nil {
		return 0, err
	}
	b, err := NewSignal(y)
	if err != nil {
		return 0, err
	}
	return Compare(a, b)
}

func score(meanX, meanY, varX, varY, cov float64) float64 {
	numerator := (2*meanX*meanY + C1) * (2*cov + C2)
	denominator := (meanX*meanX + meanY*meanY + C1) * (varX + varY + C2)
	return numerator / denominator
}
