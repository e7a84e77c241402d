package embeddings

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when a vector does not have the expected number of dimensions.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// demoPrefix is the fixed head of the demo vector; the remaining dimensions are zero.
var demoPrefix = []float32{0.12, -0.03, 0.08}

// DemoVector returns the fixed demo vector with dims dimensions.
// The vector is not normalized; the stored procedure takes care of that.
func DemoVector(dims int) []float32 {
	vec := make([]float32, dims)
	copy(vec, demoPrefix)

	return vec
}

// CheckDimensions returns ErrDimensionMismatch when len(vec) != dims.
func CheckDimensions(vec []float32, dims int) error {
	if len(vec) != dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), dims)
	}

	return nil
}
