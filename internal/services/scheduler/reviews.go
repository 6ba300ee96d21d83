package scheduler

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	domainagg "github.com/yungbote/neurobridge-srs/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
	"github.com/yungbote/neurobridge-srs/internal/observability"
)

type ReviewInput struct {
	UserID                uuid.UUID
	CardID                uuid.UUID
	Rating                fsrs.Rating
	ReviewDurationSeconds *float64
	// IdempotencyKey makes retries of the same submission safe. Optional.
	IdempotencyKey string
}

func (s *service) SubmitReview(ctx context.Context, in ReviewInput) (domainagg.SubmitReviewResult, error) {
	ctx, span := observability.StartSpan(ctx, "scheduler.SubmitReview",
		attribute.String("card_id", in.CardID.String()),
		attribute.Int("rating", int(in.Rating)),
	)
	res, err := s.deps.ReviewAgg.SubmitReview(ctx, domainagg.SubmitReviewInput{
		UserID:                in.UserID,
		CardID:                in.CardID,
		Rating:                in.Rating,
		ReviewDurationSeconds: in.ReviewDurationSeconds,
		IdempotencyKey:        in.IdempotencyKey,
		ReviewedAt:            s.now(),
	})
	if err == nil {
		span.SetAttributes(attribute.Bool("replayed", res.Replayed))
	}
	observability.EndSpan(span, err)
	if err != nil {
		return res, err
	}
	if !res.Replayed && res.Card != nil {
		s.metrics.IncReview(in.Rating.String(), res.Card.State.String())
	}
	return res, nil
}
