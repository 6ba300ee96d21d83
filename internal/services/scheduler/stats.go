package scheduler

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/neurobridge-srs/internal/data/aggregates"
	domainagg "github.com/yungbote/neurobridge-srs/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
	"github.com/yungbote/neurobridge-srs/internal/observability"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
)

type CardStats struct {
	TotalCards int64                `json:"total_cards"`
	ByState    map[fsrs.State]int64 `json:"by_state"`
	// DueToday counts cards due up to the end of the current day, overdue ones included.
	DueToday int64 `json:"due_today"`
	// MeanStability averages cards with stability > 0; 0 when there are none.
	MeanStability float64 `json:"mean_stability"`
	TotalReviews  int64   `json:"total_reviews"`
}

func (s *service) GetCardStats(ctx context.Context, userID uuid.UUID) (CardStats, error) {
	const op = "scheduler.card_stats"
	var out CardStats
	if userID == uuid.Nil {
		return out, domainagg.Validation(op, "user_id is required")
	}
	ctx, span := observability.StartSpan(ctx, "scheduler.GetCardStats")
	endOfToday := s.endOfToday(s.now())

	g, gctx := errgroup.WithContext(ctx)
	dbc := dbctx.Context{Ctx: gctx}
	g.Go(func() error {
		n, err := s.deps.Cards.CountByUser(dbc, userID)
		out.TotalCards = n
		return err
	})
	g.Go(func() error {
		byState, err := s.deps.Cards.CountByState(dbc, userID)
		out.ByState = byState
		return err
	})
	g.Go(func() error {
		n, err := s.deps.Cards.CountDueBefore(dbc, userID, endOfToday)
		out.DueToday = n
		return err
	})
	g.Go(func() error {
		mean, err := s.deps.Cards.MeanStability(dbc, userID)
		out.MeanStability = mean
		return err
	})
	g.Go(func() error {
		n, err := s.deps.Cards.SumReps(dbc, userID)
		out.TotalReviews = n
		return err
	})
	err := aggregates.MapError(op, g.Wait())
	observability.EndSpan(span, err)
	if err != nil {
		return CardStats{}, err
	}
	return out, nil
}
