package learning

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-srs/internal/domain"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
)

// RetentionCounts is the number of reviews in a window and how many were Good or Easy.
type RetentionCounts struct {
	Total  int64
	Passed int64
}

type ReviewLogRepo interface {
	Create(dbc dbctx.Context, row *types.ReviewLog) error
	GetByIdempotencyKey(dbc dbctx.Context, cardID uuid.UUID, key string) (*types.ReviewLog, error)
	LatestForCard(dbc dbctx.Context, cardID uuid.UUID) (*types.ReviewLog, error)

	// CountForScope and ListForScope select logs of userID, narrowed to topicID when set.
	CountForScope(dbc dbctx.Context, userID uuid.UUID, topicID *uuid.UUID) (int64, error)
	ListForScope(dbc dbctx.Context, userID uuid.UUID, topicID *uuid.UUID) ([]*types.ReviewLog, error)

	RetentionSince(dbc dbctx.Context, userID, topicID uuid.UUID, since time.Time) (RetentionCounts, error)
	// UsersWithReviews lists users holding at least minReviews logs, ordered by id.
	UsersWithReviews(dbc dbctx.Context, minReviews int64) ([]uuid.UUID, error)

	DeleteByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type reviewLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewLogRepo(db *gorm.DB, baseLog *logger.Logger) ReviewLogRepo {
	return &reviewLogRepo{db: db, log: baseLog.With("repo", "ReviewLogRepo")}
}

func (r *reviewLogRepo) dbx(dbc dbctx.Context) *gorm.DB {
	dbc = dbc.Ensure()
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *reviewLogRepo) Create(dbc dbctx.Context, row *types.ReviewLog) error {
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return r.dbx(dbc).Create(row).Error
}

func (r *reviewLogRepo) GetByIdempotencyKey(dbc dbctx.Context, cardID uuid.UUID, key string) (*types.ReviewLog, error) {
	key = strings.TrimSpace(key)
	if cardID == uuid.Nil || key == "" {
		return nil, nil
	}
	var out types.ReviewLog
	err := r.dbx(dbc).
		Where("card_id = ? AND idempotency_key = ?", cardID, key).
		Take(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *reviewLogRepo) LatestForCard(dbc dbctx.Context, cardID uuid.UUID) (*types.ReviewLog, error) {
	if cardID == uuid.Nil {
		return nil, nil
	}
	var out types.ReviewLog
	err := r.dbx(dbc).
		Where("card_id = ?", cardID).
		Order("reviewed_at DESC").
		Order("created_at DESC").
		Take(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *reviewLogRepo) scope(dbc dbctx.Context, userID uuid.UUID, topicID *uuid.UUID) *gorm.DB {
	q := r.dbx(dbc).Model(&types.ReviewLog{}).Where("user_id = ?", userID)
	if topicID != nil && *topicID != uuid.Nil {
		q = q.Where("topic_id = ?", *topicID)
	}
	return q
}

func (r *reviewLogRepo) CountForScope(dbc dbctx.Context, userID uuid.UUID, topicID *uuid.UUID) (int64, error) {
	var n int64
	if userID == uuid.Nil {
		return 0, nil
	}
	err := r.scope(dbc, userID, topicID).Count(&n).Error
	return n, err
}

func (r *reviewLogRepo) ListForScope(dbc dbctx.Context, userID uuid.UUID, topicID *uuid.UUID) ([]*types.ReviewLog, error) {
	out := []*types.ReviewLog{}
	if userID == uuid.Nil {
		return out, nil
	}
	err := r.scope(dbc, userID, topicID).
		Order("card_id ASC").
		Order("reviewed_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewLogRepo) RetentionSince(dbc dbctx.Context, userID, topicID uuid.UUID, since time.Time) (RetentionCounts, error) {
	var out RetentionCounts
	if userID == uuid.Nil || topicID == uuid.Nil {
		return out, nil
	}
	err := r.dbx(dbc).
		Model(&types.ReviewLog{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN rating >= ? THEN 1 ELSE 0 END), 0) AS passed", int(fsrs.Good)).
		Where("user_id = ? AND topic_id = ? AND reviewed_at >= ?", userID, topicID, since).
		Scan(&out).Error
	return out, err
}

func (r *reviewLogRepo) UsersWithReviews(dbc dbctx.Context, minReviews int64) ([]uuid.UUID, error) {
	if minReviews < 1 {
		minReviews = 1
	}
	out := []uuid.UUID{}
	err := r.dbx(dbc).
		Model(&types.ReviewLog{}).
		Select("user_id").
		Group("user_id").
		Having("COUNT(*) >= ?", minReviews).
		Order("user_id ASC").
		Pluck("user_id", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewLogRepo) DeleteByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, nil
	}
	res := r.dbx(dbc).Where("user_id = ?", userID).Delete(&types.ReviewLog{})
	return res.RowsAffected, res.Error
}
