// Package scheduler exposes the spaced-repetition operations: card creation,
// due queues, review submission, retention prediction, the review calendar,
// parameter optimisation and per-user statistics.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	repos "github.com/yungbote/neurobridge-srs/internal/data/repos/learning"
	types "github.com/yungbote/neurobridge-srs/internal/domain"
	domainagg "github.com/yungbote/neurobridge-srs/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/observability"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
	"github.com/yungbote/neurobridge-srs/internal/realtime/bus"
	"github.com/yungbote/neurobridge-srs/internal/services/mastery"
)

type Service interface {
	CreateCard(ctx context.Context, userID uuid.UUID, in domainagg.NewCard) (*types.Card, error)
	CreateCards(ctx context.Context, userID uuid.UUID, items []domainagg.NewCard) ([]*types.Card, error)
	GetDueCards(ctx context.Context, q DueCardsQuery) ([]*types.Card, error)
	SubmitReview(ctx context.Context, in ReviewInput) (domainagg.SubmitReviewResult, error)
	PredictRetention(ctx context.Context, userID, cardID uuid.UUID) (float64, error)
	PreviewReview(ctx context.Context, userID, cardID uuid.UUID) ([]RatingPreview, error)
	GetUpcomingReviews(ctx context.Context, userID uuid.UUID, daysAhead int) (map[string]int, error)
	OptimizeParameters(ctx context.Context, in OptimizeInput) (OptimizeResult, error)
	GetCardStats(ctx context.Context, userID uuid.UUID) (CardStats, error)
	GetTopicMastery(ctx context.Context, userID, topicID uuid.UUID) (*types.TopicMastery, error)
	PurgeUser(ctx context.Context, userID uuid.UUID) (domainagg.PurgeUserResult, error)

	// EnsureGlobalParameters inserts the default global parameter row if absent.
	EnsureGlobalParameters(ctx context.Context) (bool, error)
	// StartInvalidationListener applies cache invalidations published by other instances.
	StartInvalidationListener(ctx context.Context) error
}

type Deps struct {
	Cards      repos.CardRepo
	Logs       repos.ReviewLogRepo
	Parameters repos.FSRSParametersRepo
	CardAgg    domainagg.CardAggregate
	ReviewAgg  domainagg.ReviewAggregate
	Mastery    mastery.Service
	Models     *ModelCache
}

func (d Deps) validate() error {
	switch {
	case d.Cards == nil:
		return fmt.Errorf("scheduler: card repo required")
	case d.Logs == nil:
		return fmt.Errorf("scheduler: review log repo required")
	case d.Parameters == nil:
		return fmt.Errorf("scheduler: parameters repo required")
	case d.CardAgg == nil:
		return fmt.Errorf("scheduler: card aggregate required")
	case d.ReviewAgg == nil:
		return fmt.Errorf("scheduler: review aggregate required")
	case d.Mastery == nil:
		return fmt.Errorf("scheduler: mastery service required")
	case d.Models == nil:
		return fmt.Errorf("scheduler: model cache required")
	}
	return nil
}

// OptimizeConfig bounds parameter fitting.
type OptimizeConfig struct {
	MinReviews int
	Timeout    time.Duration
	Epochs     int
}

func DefaultOptimizeConfig() OptimizeConfig {
	return OptimizeConfig{MinReviews: 100, Timeout: 2 * time.Minute, Epochs: 5}
}

type Option func(*service)

// WithClock replaces time.Now. Times are normalised to UTC.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithLocation sets the zone that defines calendar days and "today".
func WithLocation(loc *time.Location) Option {
	return func(s *service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithBus publishes invalidations to, and applies them from, other instances.
// origin identifies this instance; a random one is used when empty.
func WithBus(b bus.Bus, origin string) Option {
	return func(s *service) {
		s.bus = b
		if origin != "" {
			s.origin = origin
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *service) { s.metrics = m }
}

func WithOptimizeConfig(cfg OptimizeConfig) Option {
	return func(s *service) {
		def := DefaultOptimizeConfig()
		if cfg.MinReviews <= 0 {
			cfg.MinReviews = def.MinReviews
		}
		if cfg.Timeout <= 0 {
			cfg.Timeout = def.Timeout
		}
		if cfg.Epochs <= 0 {
			cfg.Epochs = def.Epochs
		}
		s.optimize = cfg
	}
}

type service struct {
	db       *gorm.DB
	log      *logger.Logger
	deps     Deps
	clock    func() time.Time
	loc      *time.Location
	bus      bus.Bus
	origin   string
	metrics  *observability.Metrics
	optimize OptimizeConfig
}

func NewService(db *gorm.DB, baseLog *logger.Logger, deps Deps, opts ...Option) (Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	s := &service{
		db:       db,
		log:      baseLog.With("service", "SchedulerService"),
		deps:     deps,
		clock:    time.Now,
		loc:      time.UTC,
		origin:   uuid.NewString(),
		optimize: DefaultOptimizeConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *service) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

func (s *service) GetTopicMastery(ctx context.Context, userID, topicID uuid.UUID) (*types.TopicMastery, error) {
	ctx, span := observability.StartSpan(ctx, "scheduler.GetTopicMastery")
	out, err := s.deps.Mastery.Get(ctx, userID, topicID)
	observability.EndSpan(span, err)
	return out, err
}
