package learning

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/neurobridge-srs/internal/domain"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
)

type TopicMasteryRepo interface {
	Upsert(dbc dbctx.Context, row *types.TopicMastery) error
	Get(dbc dbctx.Context, userID, topicID uuid.UUID) (*types.TopicMastery, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.TopicMastery, error)
	DeleteByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type topicMasteryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTopicMasteryRepo(db *gorm.DB, baseLog *logger.Logger) TopicMasteryRepo {
	return &topicMasteryRepo{db: db, log: baseLog.With("repo", "TopicMasteryRepo")}
}

func (r *topicMasteryRepo) dbx(dbc dbctx.Context) *gorm.DB {
	dbc = dbc.Ensure()
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *topicMasteryRepo) Get(dbc dbctx.Context, userID, topicID uuid.UUID) (*types.TopicMastery, error) {
	if userID == uuid.Nil || topicID == uuid.Nil {
		return nil, nil
	}
	var out types.TopicMastery
	err := r.dbx(dbc).
		Where("user_id = ? AND topic_id = ?", userID, topicID).
		Take(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *topicMasteryRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.TopicMastery, error) {
	out := []*types.TopicMastery{}
	if userID == uuid.Nil {
		return out, nil
	}
	if err := r.dbx(dbc).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *topicMasteryRepo) Upsert(dbc dbctx.Context, row *types.TopicMastery) error {
	if row == nil || row.UserID == uuid.Nil || row.TopicID == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.UpdatedAt = now
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}

	return r.dbx(dbc).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "topic_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"mastery", "mature_fraction", "stability_score", "mean_retrievability",
				"recent_retention", "card_count", "recent_review_count", "metadata",
				"last_update", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *topicMasteryRepo) DeleteByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, nil
	}
	res := r.dbx(dbc).Where("user_id = ?", userID).Delete(&types.TopicMastery{})
	return res.RowsAffected, res.Error
}
