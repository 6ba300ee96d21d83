package learning

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/neurobridge-srs/internal/domain"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
)

// DueQuery selects a user's cards with due_at <= Now.
type DueQuery struct {
	UserID     uuid.UUID
	Now        time.Time
	Limit      int
	TopicID    *uuid.UUID
	IncludeNew bool
}

type CardRepo interface {
	Create(dbc dbctx.Context, rows []*types.Card) ([]*types.Card, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Card, error)
	GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Card, error)

	ListDue(dbc dbctx.Context, q DueQuery) ([]*types.Card, error)
	ListDueTimes(dbc dbctx.Context, userID uuid.UUID, from, to time.Time) ([]time.Time, error)
	ListByUserTopic(dbc dbctx.Context, userID, topicID uuid.UUID) ([]*types.Card, error)

	CountByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)
	CountByState(dbc dbctx.Context, userID uuid.UUID) (map[fsrs.State]int64, error)
	CountDueBefore(dbc dbctx.Context, userID uuid.UUID, before time.Time) (int64, error)
	MeanStability(dbc dbctx.Context, userID uuid.UUID) (float64, error)
	SumReps(dbc dbctx.Context, userID uuid.UUID) (int64, error)

	DeleteByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type cardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCardRepo(db *gorm.DB, baseLog *logger.Logger) CardRepo {
	return &cardRepo{db: db, log: baseLog.With("repo", "CardRepo")}
}

func (r *cardRepo) dbx(dbc dbctx.Context) *gorm.DB {
	dbc = dbc.Ensure()
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *cardRepo) Create(dbc dbctx.Context, rows []*types.Card) ([]*types.Card, error) {
	if len(rows) == 0 {
		return []*types.Card{}, nil
	}
	if err := r.dbx(dbc).CreateInBatches(&rows, 200).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *cardRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Card, error) {
	return r.get(r.dbx(dbc), id)
}

// GetByIDForUpdate takes a row lock for the rest of the transaction.
func (r *cardRepo) GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Card, error) {
	return r.get(r.dbx(dbc).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *cardRepo) get(q *gorm.DB, id uuid.UUID) (*types.Card, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Card
	if err := q.Where("id = ?", id).Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *cardRepo) ListDue(dbc dbctx.Context, q DueQuery) ([]*types.Card, error) {
	out := []*types.Card{}
	if q.UserID == uuid.Nil || q.Limit <= 0 {
		return out, nil
	}
	tx := r.dbx(dbc).
		Where("user_id = ? AND due_at <= ?", q.UserID, q.Now)
	if q.TopicID != nil && *q.TopicID != uuid.Nil {
		tx = tx.Where("topic_id = ?", *q.TopicID)
	}
	if !q.IncludeNew {
		tx = tx.Where("state <> ?", fsrs.StateNew)
	}
	err := tx.
		Order("due_at ASC").
		Order("retrievability ASC").
		Order("id ASC").
		Limit(q.Limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cardRepo) ListDueTimes(dbc dbctx.Context, userID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	out := []time.Time{}
	if userID == uuid.Nil {
		return out, nil
	}
	err := r.dbx(dbc).
		Model(&types.Card{}).
		Where("user_id = ? AND due_at >= ? AND due_at <= ?", userID, from, to).
		Order("due_at ASC").
		Pluck("due_at", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cardRepo) ListByUserTopic(dbc dbctx.Context, userID, topicID uuid.UUID) ([]*types.Card, error) {
	out := []*types.Card{}
	if userID == uuid.Nil || topicID == uuid.Nil {
		return out, nil
	}
	if err := r.dbx(dbc).
		Where("user_id = ? AND topic_id = ?", userID, topicID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *cardRepo) CountByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.dbx(dbc).Model(&types.Card{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *cardRepo) CountByState(dbc dbctx.Context, userID uuid.UUID) (map[fsrs.State]int64, error) {
	var rows []struct {
		State fsrs.State
		Count int64
	}
	err := r.dbx(dbc).
		Model(&types.Card{}).
		Select("state, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[fsrs.State]int64, len(fsrs.AllStates))
	for _, s := range fsrs.AllStates {
		out[s] = 0
	}
	for _, row := range rows {
		out[row.State] = row.Count
	}
	return out, nil
}

func (r *cardRepo) CountDueBefore(dbc dbctx.Context, userID uuid.UUID, before time.Time) (int64, error) {
	var n int64
	err := r.dbx(dbc).
		Model(&types.Card{}).
		Where("user_id = ? AND due_at <= ?", userID, before).
		Count(&n).Error
	return n, err
}

// MeanStability averages stability over cards that have been reviewed (stability > 0).
func (r *cardRepo) MeanStability(dbc dbctx.Context, userID uuid.UUID) (float64, error) {
	var avg sql.NullFloat64
	err := r.dbx(dbc).
		Model(&types.Card{}).
		Select("AVG(stability)").
		Where("user_id = ? AND stability > 0", userID).
		Row().Scan(&avg)
	if err != nil {
		return 0, err
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

func (r *cardRepo) SumReps(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	var sum sql.NullInt64
	err := r.dbx(dbc).
		Model(&types.Card{}).
		Select("SUM(reps)").
		Where("user_id = ?", userID).
		Row().Scan(&sum)
	if err != nil {
		return 0, err
	}
	return sum.Int64, nil
}

func (r *cardRepo) DeleteByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, nil
	}
	res := r.dbx(dbc).Where("user_id = ?", userID).Delete(&types.Card{})
	return res.RowsAffected, res.Error
}
