package mastery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	repos "github.com/yungbote/neurobridge-srs/internal/data/repos/learning"
	types "github.com/yungbote/neurobridge-srs/internal/domain"
	domainagg "github.com/yungbote/neurobridge-srs/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/platform/dbctx"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
)

type Service interface {
	// Refresh recomputes and stores the (user, topic) mastery inside dbc's transaction.
	Refresh(dbc dbctx.Context, userID, topicID uuid.UUID, now time.Time) (*types.TopicMastery, error)
	Get(ctx context.Context, userID, topicID uuid.UUID) (*types.TopicMastery, error)
	Policy() Policy
}

type service struct {
	db      *gorm.DB
	log     *logger.Logger
	cards   repos.CardRepo
	logs    repos.ReviewLogRepo
	mastery repos.TopicMasteryRepo
	policy  Policy
}

func NewService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cards repos.CardRepo,
	logs repos.ReviewLogRepo,
	mastery repos.TopicMasteryRepo,
	policy Policy,
) (Service, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &service{
		db:      db,
		log:     baseLog.With("service", "MasteryService"),
		cards:   cards,
		logs:    logs,
		mastery: mastery,
		policy:  policy,
	}, nil
}

func (s *service) Policy() Policy { return s.policy }

func (s *service) Refresh(dbc dbctx.Context, userID, topicID uuid.UUID, now time.Time) (*types.TopicMastery, error) {
	const op = "mastery.refresh"
	if userID == uuid.Nil || topicID == uuid.Nil {
		return nil, domainagg.Validation(op, "user_id and topic_id are required")
	}
	now = now.UTC()

	cards, err := s.cards.ListByUserTopic(dbc, userID, topicID)
	if err != nil {
		return nil, err
	}
	counts, err := s.logs.RetentionSince(dbc, userID, topicID, now.Add(-s.policy.RetentionWindow))
	if err != nil {
		return nil, err
	}
	b := s.policy.Compute(cards, counts.Total, counts.Passed, now)

	meta, err := json.Marshal(s.policy.Normalized())
	if err != nil {
		return nil, err
	}
	row := &types.TopicMastery{
		UserID:             userID,
		TopicID:            topicID,
		Mastery:            b.Score,
		MatureFraction:     b.MatureFraction,
		StabilityScore:     b.StabilityScore,
		MeanRetrievability: b.MeanRetrievability,
		RecentRetention:    b.RecentRetention,
		CardCount:          b.CardCount,
		RecentReviewCount:  b.RecentReviewCount,
		Metadata:           datatypes.JSON(meta),
		LastUpdate:         now,
	}
	if err := s.mastery.Upsert(dbc, row); err != nil {
		return nil, err
	}
	s.log.Debug("Topic mastery refreshed", "user_id", userID, "topic_id", topicID, "mastery", b.Score, "cards", b.CardCount)
	return row, nil
}

func (s *service) Get(ctx context.Context, userID, topicID uuid.UUID) (*types.TopicMastery, error) {
	const op = "mastery.get"
	if userID == uuid.Nil || topicID == uuid.Nil {
		return nil, domainagg.Validation(op, "user_id and topic_id are required")
	}
	row, err := s.mastery.Get(dbctx.Context{Ctx: ctx}, userID, topicID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domainagg.NotFound(op, "no mastery recorded for topic %s", topicID)
	}
	return row, nil
}
