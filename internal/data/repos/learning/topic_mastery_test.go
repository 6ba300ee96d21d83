package learning

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/neurobridge-srs/internal/data/repos/testutil"
	types "github.com/yungbote/neurobridge-srs/internal/domain"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
)

func TestTopicMasteryRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewTopicMasteryRepo(db, testutil.Logger(t))

	userID := uuid.New()
	topicID := uuid.New()
	now := time.Now().UTC()

	row := &types.TopicMastery{
		UserID:     userID,
		TopicID:    topicID,
		Mastery:    0.4,
		CardCount:  3,
		Metadata:   datatypes.JSON([]byte(`{}`)),
		LastUpdate: now,
	}
	if err := repo.Upsert(dbc, row); err != nil {
		t.Fatalf("Upsert(create): %v", err)
	}
	if err := repo.Upsert(dbc, &types.TopicMastery{
		UserID:     userID,
		TopicID:    topicID,
		Mastery:    0.8,
		CardCount:  4,
		Metadata:   datatypes.JSON([]byte(`{}`)),
		LastUpdate: now.Add(time.Minute),
	}); err != nil {
		t.Fatalf("Upsert(update): %v", err)
	}

	got, err := repo.Get(dbc, userID, topicID)
	if err != nil || got == nil {
		t.Fatalf("Get: got=%v err=%v", got, err)
	}
	if got.ID != row.ID || got.Mastery != 0.8 || got.CardCount != 4 {
		t.Fatalf("Get: got=%+v", got)
	}
	if missing, err := repo.Get(dbc, userID, uuid.New()); err != nil || missing != nil {
		t.Fatalf("Get(missing): got=%v err=%v", missing, err)
	}
	if rows, err := repo.ListByUser(dbc, userID); err != nil || len(rows) != 1 {
		t.Fatalf("ListByUser: err=%v len=%d", err, len(rows))
	}
	if n, err := repo.DeleteByUser(dbc, userID); err != nil || n != 1 {
		t.Fatalf("DeleteByUser: want=1 got=%d err=%v", n, err)
	}
}
