package scheduler

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/neurobridge-srs/internal/domain"
	"github.com/yungbote/neurobridge-srs/internal/data/aggregates"
	domainagg "github.com/yungbote/neurobridge-srs/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
	"github.com/yungbote/neurobridge-srs/internal/observability"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
)

func (s *service) CreateCard(ctx context.Context, userID uuid.UUID, in domainagg.NewCard) (*types.Card, error) {
	cards, err := s.CreateCards(ctx, userID, []domainagg.NewCard{in})
	if err != nil {
		return nil, err
	}
	return cards[0], nil
}

func (s *service) CreateCards(ctx context.Context, userID uuid.UUID, items []domainagg.NewCard) ([]*types.Card, error) {
	ctx, span := observability.StartSpan(ctx, "scheduler.CreateCards", attribute.Int("cards", len(items)))
	cards, err := s.deps.CardAgg.CreateCards(ctx, domainagg.CreateCardsInput{
		UserID: userID,
		Items:  items,
		Now:    s.now(),
	})
	observability.EndSpan(span, err)
	return cards, err
}

func (s *service) PurgeUser(ctx context.Context, userID uuid.UUID) (domainagg.PurgeUserResult, error) {
	ctx, span := observability.StartSpan(ctx, "scheduler.PurgeUser")
	res, err := s.deps.CardAgg.PurgeUser(ctx, userID)
	observability.EndSpan(span, err)
	if err != nil {
		return res, err
	}
	s.invalidate(ctx, userID, nil)
	s.log.Info("user purged", "user_id", userID, "cards", res.Cards, "review_logs", res.ReviewLogs)
	return res, nil
}

func (s *service) EnsureGlobalParameters(ctx context.Context) (bool, error) {
	const op = "parameters.ensure_global"
	row, err := types.NewFSRSParameters(nil, nil, fsrs.DefaultConfig())
	if err != nil {
		return false, aggregates.MapError(op, err)
	}
	created, err := s.deps.Parameters.EnsureGlobal(dbctx.Context{Ctx: ctx}, row)
	if err != nil {
		return false, aggregates.MapError(op, err)
	}
	if created {
		s.log.Info("seeded global FSRS parameters", "version", row.Version)
	}
	return created, nil
}
