package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	repos "github.com/yungbote/neurobridge-srs/internal/data/repos/learning"
	types "github.com/yungbote/neurobridge-srs/internal/domain"
	domainagg "github.com/yungbote/neurobridge-srs/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
)

type CardAggregateDeps struct {
	Cards      repos.CardRepo
	Logs       repos.ReviewLogRepo
	Parameters repos.FSRSParametersRepo
	Mastery    repos.TopicMasteryRepo
}

type cardAggregate struct {
	base BaseDeps
	deps CardAggregateDeps
}

var _ domainagg.CardAggregate = (*cardAggregate)(nil)

func NewCardAggregate(base BaseDeps, deps CardAggregateDeps) domainagg.CardAggregate {
	return &cardAggregate{base: base.withDefaults(), deps: deps}
}

func (a *cardAggregate) Contract() domainagg.Contract {
	return domainagg.CardAggregateContract
}

func (a *cardAggregate) CreateCards(ctx context.Context, in domainagg.CreateCardsInput) ([]*types.Card, error) {
	const op = "card.create"
	if in.UserID == uuid.Nil {
		return nil, domainagg.Validation(op, "user_id is required")
	}
	if len(in.Items) == 0 {
		return nil, domainagg.Validation(op, "at least one card is required")
	}
	if len(in.Items) > domainagg.MaxCardsPerBatch {
		return nil, domainagg.Validation(op, "at most %d cards per request, got %d", domainagg.MaxCardsPerBatch, len(in.Items))
	}
	now := in.Now.UTC().Truncate(time.Microsecond)
	if in.Now.IsZero() {
		now = time.Now().UTC().Truncate(time.Microsecond)
	}

	rows := make([]*types.Card, 0, len(in.Items))
	for i, item := range in.Items {
		card, err := buildCard(in.UserID, item, now)
		if err != nil {
			if len(in.Items) == 1 {
				return nil, domainagg.Validation(op, "%s", err.Error())
			}
			return nil, domainagg.Validation(op, "item %d: %s", i, err.Error())
		}
		rows = append(rows, card)
	}

	var out []*types.Card
	err := executeWrite(ctx, a.base, op, func(dbc dbctx.Context) error {
		created, err := a.deps.Cards.Create(dbc, rows)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func buildCard(userID uuid.UUID, item domainagg.NewCard, now time.Time) (*types.Card, error) {
	card := &types.Card{
		ID:             uuid.New(),
		UserID:         userID,
		ChunkID:        nonNilUUID(item.ChunkID),
		TopicID:        nonNilUUID(item.TopicID),
		Difficulty:     5.0,
		Stability:      0,
		Retrievability: 1.0,
		State:          fsrs.StateNew,
		DueAt:          now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if item.FlashcardText != nil {
		if text := strings.TrimSpace(*item.FlashcardText); text != "" {
			card.FlashcardText = &text
		}
	}
	if !card.HasContent() {
		return nil, fmt.Errorf("one of chunk_id, topic_id or flashcard_text is required")
	}
	if item.InitialDueAt != nil && !item.InitialDueAt.IsZero() {
		card.DueAt = item.InitialDueAt.UTC().Truncate(time.Microsecond)
	}
	return card, nil
}

func nonNilUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	v := *id
	return &v
}

func (a *cardAggregate) PurgeUser(ctx context.Context, userID uuid.UUID) (domainagg.PurgeUserResult, error) {
	const op = "card.purge_user"
	var out domainagg.PurgeUserResult
	if userID == uuid.Nil {
		return out, domainagg.Validation(op, "user_id is required")
	}
	err := executeWrite(ctx, a.base, op, func(dbc dbctx.Context) error {
		var err error
		res := domainagg.PurgeUserResult{}
		if res.ReviewLogs, err = a.deps.Logs.DeleteByUser(dbc, userID); err != nil {
			return err
		}
		if res.Cards, err = a.deps.Cards.DeleteByUser(dbc, userID); err != nil {
			return err
		}
		if res.Parameters, err = a.deps.Parameters.DeleteByUser(dbc, userID); err != nil {
			return err
		}
		if res.Mastery, err = a.deps.Mastery.DeleteByUser(dbc, userID); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return domainagg.PurgeUserResult{}, err
	}
	return out, nil
}
