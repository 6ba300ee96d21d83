package fsrs

import "errors"

var (
	ErrInvalidRating  = errors.New("fsrs: invalid rating")
	ErrInvalidState   = errors.New("fsrs: invalid card state")
	ErrInvalidWeights = errors.New("fsrs: weights out of bounds")
	ErrInvalidConfig  = errors.New("fsrs: invalid config")
)
