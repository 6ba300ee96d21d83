package aggregates

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	repos "github.com/yungbote/neurobridge-srs/internal/data/repos/learning"
	repotest "github.com/yungbote/neurobridge-srs/internal/data/repos/testutil"
	types "github.com/yungbote/neurobridge-srs/internal/domain"
	domainagg "github.com/yungbote/neurobridge-srs/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
)

func newCardAggregateForTest(t *testing.T) (domainagg.CardAggregate, CardAggregateDeps, dbctx.Context) {
	t.Helper()
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	log := repotest.Logger(t)
	deps := CardAggregateDeps{
		Cards:      repos.NewCardRepo(tx, log),
		Logs:       repos.NewReviewLogRepo(tx, log),
		Parameters: repos.NewFSRSParametersRepo(tx, log),
		Mastery:    repos.NewTopicMasteryRepo(tx, log),
	}
	agg := NewCardAggregate(BaseDeps{DB: tx, Log: log, Runner: NewGormTxRunner(tx)}, deps)
	return agg, deps, dbctx.Context{Ctx: context.Background(), Tx: tx}
}

func TestCardAggregateCreateCards(t *testing.T) {
	agg, deps, dbc := newCardAggregateForTest(t)
	userID := uuid.New()
	topicID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	later := now.Add(48 * time.Hour)

	created, err := agg.CreateCards(dbc.Ctx, domainagg.CreateCardsInput{
		UserID: userID,
		Now:    now,
		Items: []domainagg.NewCard{
			{TopicID: &topicID},
			{FlashcardText: repotest.PtrString("  capital of France?  "), InitialDueAt: &later},
		},
	})
	if err != nil {
		t.Fatalf("CreateCards: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created: want=2 got=%d", len(created))
	}
	first := created[0]
	if first.State != fsrs.StateNew || first.Difficulty != 5.0 || first.Stability != 0 || first.Retrievability != 1 {
		t.Fatalf("new card defaults: %+v", first)
	}
	if !first.DueAt.Equal(now) {
		t.Fatalf("default due: want=%v got=%v", now, first.DueAt)
	}
	if !created[1].DueAt.Equal(later) || *created[1].FlashcardText != "capital of France?" {
		t.Fatalf("second card: due=%v text=%q", created[1].DueAt, *created[1].FlashcardText)
	}
	if n, err := deps.Cards.CountByUser(dbc, userID); err != nil || n != 2 {
		t.Fatalf("CountByUser: want=2 got=%d err=%v", n, err)
	}
}

func TestCardAggregateCreateCardsAllOrNothing(t *testing.T) {
	agg, deps, dbc := newCardAggregateForTest(t)
	userID := uuid.New()
	topicID := uuid.New()

	_, err := agg.CreateCards(dbc.Ctx, domainagg.CreateCardsInput{
		UserID: userID,
		Items: []domainagg.NewCard{
			{TopicID: &topicID},
			{FlashcardText: repotest.PtrString("   ")},
		},
	})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("want validation got=%q (%v)", domainagg.CodeOf(err), err)
	}
	if !strings.Contains(err.Error(), "item 1") {
		t.Fatalf("error should name the item: %v", err)
	}
	if n, err := deps.Cards.CountByUser(dbc, userID); err != nil || n != 0 {
		t.Fatalf("partial insert: n=%d err=%v", n, err)
	}

	items := make([]domainagg.NewCard, domainagg.MaxCardsPerBatch+1)
	for i := range items {
		items[i] = domainagg.NewCard{TopicID: &topicID}
	}
	if _, err := agg.CreateCards(dbc.Ctx, domainagg.CreateCardsInput{UserID: userID, Items: items}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("oversized batch: want validation got=%v", err)
	}
	if _, err := agg.CreateCards(dbc.Ctx, domainagg.CreateCardsInput{UserID: userID, Items: []domainagg.NewCard{{}}}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("empty card: want validation got=%v", err)
	}
}

func TestCardAggregatePurgeUser(t *testing.T) {
	agg, deps, dbc := newCardAggregateForTest(t)
	userID := uuid.New()
	otherID := uuid.New()
	topicID := uuid.New()

	card := repotest.SeedCard(t, dbc.Ctx, dbc.Tx, userID, repotest.WithTopic(topicID))
	repotest.SeedReviewLog(t, dbc.Ctx, dbc.Tx, card, fsrs.Good, time.Now())
	repotest.SeedCard(t, dbc.Ctx, dbc.Tx, otherID)

	params, err := types.NewFSRSParameters(&userID, nil, fsrs.DefaultConfig())
	if err != nil {
		t.Fatalf("NewFSRSParameters: %v", err)
	}
	if err := deps.Parameters.Upsert(dbc, params); err != nil {
		t.Fatalf("Upsert params: %v", err)
	}
	if err := deps.Mastery.Upsert(dbc, &types.TopicMastery{UserID: userID, TopicID: topicID, LastUpdate: time.Now().UTC()}); err != nil {
		t.Fatalf("Upsert mastery: %v", err)
	}

	res, err := agg.PurgeUser(dbc.Ctx, userID)
	if err != nil {
		t.Fatalf("PurgeUser: %v", err)
	}
	if res.Cards != 1 || res.ReviewLogs != 1 || res.Parameters != 1 || res.Mastery != 1 {
		t.Fatalf("purge counts: %+v", res)
	}
	if n, err := deps.Cards.CountByUser(dbc, otherID); err != nil || n != 1 {
		t.Fatalf("other user affected: n=%d err=%v", n, err)
	}
	if _, err := agg.PurgeUser(dbc.Ctx, uuid.Nil); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("nil user: want validation got=%v", err)
	}
}
