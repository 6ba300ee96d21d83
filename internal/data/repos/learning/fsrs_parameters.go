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

type FSRSParametersRepo interface {
	GetByScope(dbc dbctx.Context, scopeKey string) (*types.FSRSParameters, error)
	// Resolve returns the most specific row for (userID, topicID), or nil when
	// not even the global row exists.
	Resolve(dbc dbctx.Context, userID uuid.UUID, topicID *uuid.UUID) (*types.FSRSParameters, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.FSRSParameters, error)

	Upsert(dbc dbctx.Context, row *types.FSRSParameters) error
	// EnsureGlobal inserts row unless its scope already exists; it never overwrites.
	EnsureGlobal(dbc dbctx.Context, row *types.FSRSParameters) (bool, error)

	DeleteByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type fsrsParametersRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFSRSParametersRepo(db *gorm.DB, baseLog *logger.Logger) FSRSParametersRepo {
	return &fsrsParametersRepo{db: db, log: baseLog.With("repo", "FSRSParametersRepo")}
}

func (r *fsrsParametersRepo) dbx(dbc dbctx.Context) *gorm.DB {
	dbc = dbc.Ensure()
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx)
	}
	return r.db.WithContext(dbc.Ctx)
}

func (r *fsrsParametersRepo) GetByScope(dbc dbctx.Context, scopeKey string) (*types.FSRSParameters, error) {
	if scopeKey == "" {
		return nil, nil
	}
	var out types.FSRSParameters
	if err := r.dbx(dbc).Where("scope_key = ?", scopeKey).Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *fsrsParametersRepo) Resolve(dbc dbctx.Context, userID uuid.UUID, topicID *uuid.UUID) (*types.FSRSParameters, error) {
	order := types.ResolutionOrder(userID, topicID)
	rows := []*types.FSRSParameters{}
	if err := r.dbx(dbc).Where("scope_key IN ?", order).Find(&rows).Error; err != nil {
		return nil, err
	}
	byKey := make(map[string]*types.FSRSParameters, len(rows))
	for _, row := range rows {
		byKey[row.ScopeKey] = row
	}
	for _, key := range order {
		if row, ok := byKey[key]; ok {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fsrsParametersRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.FSRSParameters, error) {
	out := []*types.FSRSParameters{}
	if userID == uuid.Nil {
		return out, nil
	}
	if err := r.dbx(dbc).
		Where("user_id = ?", userID).
		Order("scope_key ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fsrsParametersRepo) Upsert(dbc dbctx.Context, row *types.FSRSParameters) error {
	if row == nil || row.ScopeKey == "" {
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
			Columns: []clause.Column{{Name: "scope_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"weights", "target_retention", "maximum_interval", "enable_fuzz",
				"version", "optimized", "sample_size", "loss", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *fsrsParametersRepo) EnsureGlobal(dbc dbctx.Context, row *types.FSRSParameters) (bool, error) {
	if row == nil {
		return false, nil
	}
	row.ScopeKey = types.GlobalScopeKey
	row.UserID = nil
	row.TopicID = nil
	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = now
	row.UpdatedAt = now
	res := r.dbx(dbc).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "scope_key"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *fsrsParametersRepo) DeleteByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, nil
	}
	res := r.dbx(dbc).Where("user_id = ?", userID).Delete(&types.FSRSParameters{})
	return res.RowsAffected, res.Error
}
