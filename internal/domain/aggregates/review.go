package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/neurobridge-srs/internal/domain"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
)

var ReviewAggregateContract = Contract{
	Name:             "Recall.ReviewAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes: "Owns the card update, review log append and topic mastery refresh of a single review " +
		"in one transaction, serialised per card by row lock plus version compare-and-set.",
}

// ReviewAggregate owns review submission writes.
//
// Failures are *aggregates.Error with codes CodeValidation, CodeNotFound,
// CodeConflict, CodeRetryable or CodeInternal.
type ReviewAggregate interface {
	Aggregate

	SubmitReview(ctx context.Context, in SubmitReviewInput) (SubmitReviewResult, error)
}

type SubmitReviewInput struct {
	UserID                uuid.UUID
	CardID                uuid.UUID
	Rating                fsrs.Rating
	ReviewDurationSeconds *float64
	IdempotencyKey        string
	ReviewedAt            time.Time
}

type SubmitReviewResult struct {
	Card *types.Card
	Log  *types.ReviewLog
	// Replayed is true when IdempotencyKey matched an earlier submission and nothing was written.
	Replayed bool
}
