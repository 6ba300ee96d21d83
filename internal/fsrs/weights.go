package fsrs

import (
	"fmt"
	"math"
)

// NumWeights is the length of the FSRS weight vector.
const NumWeights = 19

// Weights is the ordered FSRS parameter vector w0..w18.
type Weights [NumWeights]float64

// DefaultWeights are the stock FSRS weights used for the global default row.
var DefaultWeights = Weights{
	0.40255, 1.18385, 3.173, 15.69105, 7.1949,
	0.5345, 1.4604, 0.0046, 1.54575, 0.1192,
	1.01925, 1.9395, 0.11, 0.29605, 2.2698,
	0.2315, 2.9898, 0.51655, 0.6621,
}

// LowerBounds and UpperBounds bound each weight during fitting and validation.
var LowerBounds = Weights{
	0.001, 0.001, 0.001, 0.001, 1.0,
	0.001, 0.001, 0.001, 0.0, 0.0,
	0.001, 0.001, 0.001, 0.001, 0.0,
	0.0, 1.0, 0.0, 0.0,
}

var UpperBounds = Weights{
	100.0, 100.0, 100.0, 100.0, 10.0,
	4.0, 4.0, 0.75, 4.5, 0.8,
	3.5, 5.0, 0.25, 0.9, 4.0,
	1.0, 6.0, 2.0, 2.0,
}

// WeightsFromSlice copies a stored vector. The length must be exactly NumWeights.
func WeightsFromSlice(v []float64) (Weights, error) {
	var w Weights
	if len(v) != NumWeights {
		return w, fmt.Errorf("%w: want %d values, got %d", ErrInvalidWeights, NumWeights, len(v))
	}
	copy(w[:], v)
	return w, w.Validate()
}

func (w Weights) Slice() []float64 {
	out := make([]float64, NumWeights)
	copy(out, w[:])
	return out
}

// Validate checks every weight is finite and inside its bound.
func (w Weights) Validate() error {
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: w[%d] is not finite", ErrInvalidWeights, i)
		}
		if v < LowerBounds[i] || v > UpperBounds[i] {
			return fmt.Errorf("%w: w[%d]=%g outside [%g, %g]", ErrInvalidWeights, i, v, LowerBounds[i], UpperBounds[i])
		}
	}
	return nil
}

// Clamp pins every weight into its bound.
func (w Weights) Clamp() Weights {
	for i := range w {
		w[i] = math.Max(LowerBounds[i], math.Min(UpperBounds[i], w[i]))
	}
	return w
}
