package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/neurobridge-srs/internal/domain"
)

var CardAggregateContract = Contract{
	Name:             "Recall.CardAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyTableRepoQueries,
	Notes:            "Owns all-or-nothing card creation and the per-user purge of cards, logs, parameters and mastery.",
}

// MaxCardsPerBatch bounds CreateCards.
const MaxCardsPerBatch = 500

// CardAggregate owns card lifecycle writes that span more than one row or table.
type CardAggregate interface {
	Aggregate

	CreateCards(ctx context.Context, in CreateCardsInput) ([]*types.Card, error)
	PurgeUser(ctx context.Context, userID uuid.UUID) (PurgeUserResult, error)
}

// NewCard references what to study. At least one reference must be set.
type NewCard struct {
	ChunkID       *uuid.UUID
	TopicID       *uuid.UUID
	FlashcardText *string
	// InitialDueAt defaults to Now.
	InitialDueAt *time.Time
}

type CreateCardsInput struct {
	UserID uuid.UUID
	Items  []NewCard
	Now    time.Time
}

type PurgeUserResult struct {
	Cards      int64 `json:"cards"`
	ReviewLogs int64 `json:"review_logs"`
	Parameters int64 `json:"parameters"`
	Mastery    int64 `json:"mastery"`
}
