package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/neurobridge-srs/internal/data/aggregates"
	repos "github.com/yungbote/neurobridge-srs/internal/data/repos/learning"
	types "github.com/yungbote/neurobridge-srs/internal/domain"
	domainagg "github.com/yungbote/neurobridge-srs/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
	"github.com/yungbote/neurobridge-srs/internal/observability"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
)

const (
	DefaultDueLimit = 20
	MaxDueLimit     = 500
	MaxDaysAhead    = 365
	// CalendarDateLayout keys the upcoming review calendar.
	CalendarDateLayout = "2006-01-02"
)

type DueCardsQuery struct {
	UserID uuid.UUID
	// Limit defaults to DefaultDueLimit and is capped at MaxDueLimit.
	Limit      int
	TopicID    *uuid.UUID
	IncludeNew bool
}

// RatingPreview is what a rating would do to a card, without persisting it.
type RatingPreview struct {
	Rating        fsrs.Rating `json:"rating"`
	State         fsrs.State  `json:"state"`
	DueAt         time.Time   `json:"due_at"`
	ScheduledDays int         `json:"scheduled_days"`
	Stability     float64     `json:"stability"`
	Difficulty    float64     `json:"difficulty"`
}

func (s *service) GetDueCards(ctx context.Context, q DueCardsQuery) ([]*types.Card, error) {
	const op = "scheduler.due_cards"
	if q.UserID == uuid.Nil {
		return nil, domainagg.Validation(op, "user_id is required")
	}
	if q.Limit < 0 {
		return nil, domainagg.Validation(op, "limit must be >= 0")
	}
	limit := q.Limit
	if limit == 0 {
		limit = DefaultDueLimit
	}
	if limit > MaxDueLimit {
		limit = MaxDueLimit
	}

	ctx, span := observability.StartSpan(ctx, "scheduler.GetDueCards",
		attribute.Int("limit", limit),
		attribute.Bool("include_new", q.IncludeNew),
	)
	cards, err := s.deps.Cards.ListDue(dbctx.Context{Ctx: ctx}, repos.DueQuery{
		UserID:     q.UserID,
		Now:        s.now(),
		Limit:      limit,
		TopicID:    q.TopicID,
		IncludeNew: q.IncludeNew,
	})
	err = aggregates.MapError(op, err)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return cards, nil
}

// ownedCard loads a card outside any transaction. Cards of other users are
// reported as not found.
func (s *service) ownedCard(ctx context.Context, op string, userID, cardID uuid.UUID) (*types.Card, error) {
	if userID == uuid.Nil || cardID == uuid.Nil {
		return nil, domainagg.Validation(op, "user_id and card_id are required")
	}
	card, err := s.deps.Cards.GetByID(dbctx.Context{Ctx: ctx}, cardID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if card == nil || card.UserID != userID {
		return nil, domainagg.NotFound(op, "card %s not found", cardID)
	}
	return card, nil
}

func (s *service) PredictRetention(ctx context.Context, userID, cardID uuid.UUID) (float64, error) {
	card, err := s.ownedCard(ctx, "scheduler.predict_retention", userID, cardID)
	if err != nil {
		return 0, err
	}
	return fsrs.Retrievability(card.Stability, card.LastReviewedAt, s.now()), nil
}

func (s *service) PreviewReview(ctx context.Context, userID, cardID uuid.UUID) ([]RatingPreview, error) {
	const op = "scheduler.preview_review"
	card, err := s.ownedCard(ctx, op, userID, cardID)
	if err != nil {
		return nil, err
	}
	model, _, err := s.deps.Models.Resolve(dbctx.Context{Ctx: ctx}, card.UserID, card.TopicID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	outcomes, err := model.Preview(card.Memory(), s.now())
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	out := make([]RatingPreview, 0, len(fsrs.AllRatings))
	for _, r := range fsrs.AllRatings {
		next := outcomes[r]
		out = append(out, RatingPreview{
			Rating:        r,
			State:         next.State,
			DueAt:         next.Due,
			ScheduledDays: next.ScheduledDays,
			Stability:     next.Stability,
			Difficulty:    next.Difficulty,
		})
	}
	return out, nil
}

// GetUpcomingReviews counts cards due per calendar day in [now, now+daysAhead days].
// Days are rendered in the service location as CalendarDateLayout.
func (s *service) GetUpcomingReviews(ctx context.Context, userID uuid.UUID, daysAhead int) (map[string]int, error) {
	const op = "scheduler.upcoming_reviews"
	if userID == uuid.Nil {
		return nil, domainagg.Validation(op, "user_id is required")
	}
	if daysAhead < 0 || daysAhead > MaxDaysAhead {
		return nil, domainagg.Validation(op, "days_ahead must be between 0 and %d, got %d", MaxDaysAhead, daysAhead)
	}
	ctx, span := observability.StartSpan(ctx, "scheduler.GetUpcomingReviews", attribute.Int("days_ahead", daysAhead))
	now := s.now()
	dues, err := s.deps.Cards.ListDueTimes(dbctx.Context{Ctx: ctx}, userID, now, now.Add(time.Duration(daysAhead)*24*time.Hour))
	err = aggregates.MapError(op, err)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int)
	for _, due := range dues {
		out[due.In(s.loc).Format(CalendarDateLayout)]++
	}
	return out, nil
}

// endOfToday is the last stored instant of the current day in the service location.
func (s *service) endOfToday(now time.Time) time.Time {
	y, m, d := now.In(s.loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, s.loc).Add(-time.Microsecond).UTC()
}
