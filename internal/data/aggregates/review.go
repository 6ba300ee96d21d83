package aggregates

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	repos "github.com/yungbote/neurobridge-srs/internal/data/repos/learning"
	types "github.com/yungbote/neurobridge-srs/internal/domain"
	domainagg "github.com/yungbote/neurobridge-srs/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
)

// ModelSource resolves the memory model for a card's scope. It receives the
// transaction so parameter reads see the same snapshot as the card.
type ModelSource interface {
	ModelFor(dbc dbctx.Context, userID uuid.UUID, topicID *uuid.UUID) (fsrs.MemoryModel, error)
}

// MasteryRefresher recomputes a topic's mastery after one of its cards changed.
type MasteryRefresher interface {
	Refresh(dbc dbctx.Context, userID, topicID uuid.UUID, now time.Time) (*types.TopicMastery, error)
}

type ReviewAggregateDeps struct {
	Cards   repos.CardRepo
	Logs    repos.ReviewLogRepo
	Models  ModelSource
	Mastery MasteryRefresher
}

type reviewAggregate struct {
	base BaseDeps
	deps ReviewAggregateDeps
}

var _ domainagg.ReviewAggregate = (*reviewAggregate)(nil)

func NewReviewAggregate(base BaseDeps, deps ReviewAggregateDeps) domainagg.ReviewAggregate {
	return &reviewAggregate{base: base.withDefaults(), deps: deps}
}

func (a *reviewAggregate) Contract() domainagg.Contract {
	return domainagg.ReviewAggregateContract
}

const maxIdempotencyKeyLen = 128

func (a *reviewAggregate) SubmitReview(ctx context.Context, in domainagg.SubmitReviewInput) (domainagg.SubmitReviewResult, error) {
	const op = "review.submit"
	var out domainagg.SubmitReviewResult

	if in.UserID == uuid.Nil || in.CardID == uuid.Nil {
		return out, domainagg.Validation(op, "user_id and card_id are required")
	}
	if !in.Rating.Valid() {
		return out, domainagg.Validation(op, "rating must be between 1 and 4, got %d", int(in.Rating))
	}
	if in.ReviewDurationSeconds != nil && *in.ReviewDurationSeconds < 0 {
		return out, domainagg.Validation(op, "review_duration_seconds must be >= 0")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return out, domainagg.Validation(op, "idempotency key longer than %d characters", maxIdempotencyKeyLen)
	}
	now := in.ReviewedAt.UTC().Truncate(time.Microsecond)
	if in.ReviewedAt.IsZero() {
		now = time.Now().UTC().Truncate(time.Microsecond)
	}

	err := executeWrite(ctx, a.base, op, func(dbc dbctx.Context) error {
		out = domainagg.SubmitReviewResult{}

		card, err := a.deps.Cards.GetByIDForUpdate(dbc, in.CardID)
		if err != nil {
			return err
		}
		if card == nil || card.UserID != in.UserID {
			return domainagg.NotFound(op, "card %s not found", in.CardID)
		}

		if key != "" {
			prev, err := a.deps.Logs.GetByIdempotencyKey(dbc, card.ID, key)
			if err != nil {
				return err
			}
			if prev != nil {
				out = domainagg.SubmitReviewResult{Card: card, Log: prev, Replayed: true}
				return nil
			}
		}

		model, err := a.deps.Models.ModelFor(dbc, card.UserID, card.TopicID)
		if err != nil {
			return err
		}
		before := *card
		retrievabilityBefore := fsrs.Retrievability(card.Stability, card.LastReviewedAt, now)
		next, err := model.ApplyReview(card.Memory(), in.Rating, now)
		if err != nil {
			return err
		}

		applyMemory(card, next, in, now)
		ok, err := a.base.CASGuard.UpdateByVersion(dbc, card.TableName(), card.ID, before.Version, cardUpdates(card))
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "card was modified concurrently"); err != nil {
			return err
		}

		entry := &types.ReviewLog{
			ID:                    uuid.New(),
			CardID:                card.ID,
			UserID:                card.UserID,
			TopicID:               card.TopicID,
			Rating:                in.Rating,
			ReviewDurationSeconds: in.ReviewDurationSeconds,
			ReviewedAt:            now,
			StateBefore:           before.State,
			StateAfter:            card.State,
			DifficultyBefore:      before.Difficulty,
			DifficultyAfter:       card.Difficulty,
			StabilityBefore:       before.Stability,
			StabilityAfter:        card.Stability,
			RetrievabilityBefore:  retrievabilityBefore,
			ScheduledDays:         card.ScheduledDays,
			ElapsedDays:           card.ElapsedDays,
			CreatedAt:             now,
		}
		if key != "" {
			entry.IdempotencyKey = &key
		}
		if err := a.deps.Logs.Create(dbc, entry); err != nil {
			return err
		}

		if a.deps.Mastery != nil && card.TopicID != nil && *card.TopicID != uuid.Nil {
			if _, err := a.deps.Mastery.Refresh(dbc, card.UserID, *card.TopicID, now); err != nil {
				return err
			}
		}

		out = domainagg.SubmitReviewResult{Card: card, Log: entry}
		return nil
	})
	if err != nil {
		return domainagg.SubmitReviewResult{}, err
	}
	return out, nil
}

// responseTimeAlpha is the weight of the newest sample in the response time moving average.
const responseTimeAlpha = 0.2

func applyMemory(card *types.Card, next fsrs.Memory, in domainagg.SubmitReviewInput, now time.Time) {
	reviewedAt := now

	card.Difficulty = next.Difficulty
	card.Stability = next.Stability
	card.Retrievability = fsrs.Retrievability(next.Stability, &reviewedAt, now)
	card.State = next.State
	card.DueAt = next.Due.UTC().Truncate(time.Microsecond)
	card.LastReviewedAt = &reviewedAt
	card.ElapsedDays = next.ElapsedDays
	card.ScheduledDays = next.ScheduledDays
	card.Reps = next.Reps
	card.Lapses = next.Lapses

	if in.Rating.Passed() {
		card.ConsecutiveCorrect++
	} else {
		card.ConsecutiveCorrect = 0
	}
	if in.ReviewDurationSeconds != nil {
		sample := *in.ReviewDurationSeconds
		avg := sample
		if card.AverageResponseTimeSeconds != nil {
			avg = *card.AverageResponseTimeSeconds*(1-responseTimeAlpha) + sample*responseTimeAlpha
		}
		card.AverageResponseTimeSeconds = &avg
	}
	card.Version++
	card.UpdatedAt = now
}

func cardUpdates(card *types.Card) map[string]any {
	return map[string]any{
		"difficulty":                    card.Difficulty,
		"stability":                     card.Stability,
		"retrievability":                card.Retrievability,
		"state":                         string(card.State),
		"due_at":                        card.DueAt,
		"last_reviewed_at":              card.LastReviewedAt,
		"elapsed_days":                  card.ElapsedDays,
		"scheduled_days":                card.ScheduledDays,
		"reps":                          card.Reps,
		"lapses":                        card.Lapses,
		"consecutive_correct":           card.ConsecutiveCorrect,
		"average_response_time_seconds": card.AverageResponseTimeSeconds,
		"version":                       card.Version,
		"updated_at":                    card.UpdatedAt,
	}
}
