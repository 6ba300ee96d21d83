package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/yungbote/neurobridge-srs/internal/fsrs"
)

// syntheticReviews builds histories where recall drops once gaps exceed a
// card-specific threshold, so the default weights are not a perfect fit.
func syntheticReviews(cards, perCard int) []Review {
	rng := rand.New(rand.NewSource(7))
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	out := make([]Review, 0, cards*perCard)
	for c := 0; c < cards; c++ {
		key := fmt.Sprintf("card-%03d", c)
		at := start.Add(time.Duration(c) * time.Hour)
		gap := 1
		for i := 0; i < perCard; i++ {
			rating := fsrs.Good
			if i > 0 && gap > 3+c%5 && rng.Float64() < 0.6 {
				rating = fsrs.Again
			}
			out = append(out, Review{CardKey: key, Rating: rating, ReviewedAt: at})
			if rating == fsrs.Again {
				gap = 1
			} else {
				gap *= 2
			}
			at = at.Add(time.Duration(gap) * 24 * time.Hour)
		}
	}
	return out
}

func TestOptimizeNeverWorsensLoss(t *testing.T) {
	reviews := syntheticReviews(30, 6)
	res, err := Optimize(context.Background(), reviews, fsrs.DefaultConfig(), Options{Epochs: 2, BatchSize: 64})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if res.ReviewCount != len(reviews) {
		t.Fatalf("review count: want=%d got=%d", len(reviews), res.ReviewCount)
	}
	if res.CrossDayReviews == 0 {
		t.Fatalf("expected cross-day reviews in synthetic data")
	}
	if res.Loss > res.InitialLoss {
		t.Fatalf("loss increased: initial=%v final=%v", res.InitialLoss, res.Loss)
	}
	if err := res.Weights.Validate(); err != nil {
		t.Fatalf("fitted weights out of bounds: %v", err)
	}
	if res.Steps == 0 {
		t.Fatalf("expected at least one gradient step")
	}
}

func TestOptimizeIsDeterministic(t *testing.T) {
	reviews := syntheticReviews(12, 5)
	opts := Options{Epochs: 1, BatchSize: 16}
	a, err := Optimize(context.Background(), reviews, fsrs.DefaultConfig(), opts)
	if err != nil {
		t.Fatalf("Optimize a: %v", err)
	}
	b, err := Optimize(context.Background(), reviews, fsrs.DefaultConfig(), opts)
	if err != nil {
		t.Fatalf("Optimize b: %v", err)
	}
	if a.Weights != b.Weights || a.Loss != b.Loss {
		t.Fatalf("non-deterministic result: %v vs %v", a.Loss, b.Loss)
	}
}

func TestOptimizeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Optimize(ctx, syntheticReviews(5, 4), fsrs.DefaultConfig(), Options{Epochs: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled got=%v", err)
	}
}

func TestOptimizeEdgeCases(t *testing.T) {
	if _, err := Optimize(context.Background(), nil, fsrs.DefaultConfig(), Options{}); !errors.Is(err, ErrNoReviews) {
		t.Fatalf("empty: want ErrNoReviews got=%v", err)
	}

	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	sameDay := []Review{
		{CardKey: "a", Rating: fsrs.Good, ReviewedAt: now},
		{CardKey: "a", Rating: fsrs.Good, ReviewedAt: now.Add(10 * time.Minute)},
	}
	res, err := Optimize(context.Background(), sameDay, fsrs.DefaultConfig(), Options{})
	if err != nil {
		t.Fatalf("same day: %v", err)
	}
	if res.Weights != fsrs.DefaultWeights || res.Steps != 0 {
		t.Fatalf("same-day history should keep start weights: steps=%d", res.Steps)
	}
}

func TestBuildSequencesOrdersAndLabels(t *testing.T) {
	t0 := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	seqs := buildSequences([]Review{
		{CardKey: "b", Rating: fsrs.Good, ReviewedAt: t0.Add(48 * time.Hour)},
		{CardKey: "b", Rating: fsrs.Again, ReviewedAt: t0},
		{CardKey: "a", Rating: fsrs.Easy, ReviewedAt: t0},
		{CardKey: "a", Rating: fsrs.Rating(9), ReviewedAt: t0},
	}, 0)
	if len(seqs) != 2 || seqs[0].key != "a" || seqs[1].key != "b" {
		t.Fatalf("unexpected sequences: %+v", seqs)
	}
	if len(seqs[0].steps) != 1 {
		t.Fatalf("invalid ratings must be dropped: %+v", seqs[0].steps)
	}
	b := seqs[1].steps
	if b[0].label != 0 || b[1].label != 1 {
		t.Fatalf("labels: %+v", b)
	}
	if b[1].elapsedDays != 2 {
		t.Fatalf("elapsed days: want=2 got=%v", b[1].elapsedDays)
	}
}
