package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-srs/internal/domain"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
)

// CardOpt tweaks a seeded card before insert.
type CardOpt func(c *types.Card)

func WithTopic(topicID uuid.UUID) CardOpt {
	return func(c *types.Card) { c.TopicID = &topicID }
}

func WithDue(at time.Time) CardOpt {
	return func(c *types.Card) { c.DueAt = at.UTC() }
}

// WithMemory sets the memory state of a card that has already been reviewed once at lastReview.
func WithMemory(state fsrs.State, difficulty, stability float64, lastReview time.Time) CardOpt {
	return func(c *types.Card) {
		c.State = state
		c.Difficulty = difficulty
		c.Stability = stability
		lr := lastReview.UTC()
		c.LastReviewedAt = &lr
		if c.Reps == 0 {
			c.Reps = 1
		}
	}
}

func WithReps(reps, lapses int) CardOpt {
	return func(c *types.Card) {
		c.Reps = reps
		c.Lapses = lapses
	}
}

func SeedCard(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, opts ...CardOpt) *types.Card {
	tb.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	text := "front / back"
	c := &types.Card{
		ID:             uuid.New(),
		UserID:         userID,
		FlashcardText:  &text,
		Difficulty:     5.0,
		Stability:      0,
		Retrievability: 1.0,
		State:          fsrs.StateNew,
		DueAt:          now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed card: %v", err)
	}
	return c
}

func SeedReviewLog(tb testing.TB, ctx context.Context, tx *gorm.DB, card *types.Card, rating fsrs.Rating, at time.Time) *types.ReviewLog {
	tb.Helper()
	l := &types.ReviewLog{
		ID:                   uuid.New(),
		CardID:               card.ID,
		UserID:               card.UserID,
		TopicID:              card.TopicID,
		Rating:               rating,
		ReviewedAt:           at.UTC().Truncate(time.Microsecond),
		StateBefore:          card.State,
		StateAfter:           card.State,
		DifficultyBefore:     card.Difficulty,
		DifficultyAfter:      card.Difficulty,
		StabilityBefore:      card.Stability,
		StabilityAfter:       card.Stability,
		RetrievabilityBefore: 1,
		CreatedAt:            at.UTC(),
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed review log: %v", err)
	}
	return l
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }

func PtrString(v string) *string { return &v }
