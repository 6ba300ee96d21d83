package fsrs

import (
	"math"
	"time"
)

// Retrievability is the recall probability reported for prediction and ordering:
// 0.9^(days since last review / stability). Cards never reviewed, or with zero
// stability, are fully retrievable.
func Retrievability(stability float64, lastReview *time.Time, now time.Time) float64 {
	if stability <= 0 || lastReview == nil || lastReview.IsZero() {
		return 1
	}
	days := now.Sub(*lastReview).Hours() / 24
	if days <= 0 {
		return 1
	}
	r := math.Pow(0.9, days/stability)
	if math.IsNaN(r) {
		return 0
	}
	return math.Min(math.Max(r, 0), 1)
}

// ElapsedDays counts whole days between two instants, never negative.
func ElapsedDays(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
