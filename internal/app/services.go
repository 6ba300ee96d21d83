package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-srs/internal/data/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/observability"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
	"github.com/yungbote/neurobridge-srs/internal/realtime/bus"
	"github.com/yungbote/neurobridge-srs/internal/services/mastery"
	"github.com/yungbote/neurobridge-srs/internal/services/scheduler"
)

type Services struct {
	Mastery   mastery.Service
	Models    *scheduler.ModelCache
	Scheduler scheduler.Service
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, metrics *observability.Metrics, b bus.Bus) (Services, error) {
	log.Info("Wiring services...")

	masterySvc, err := mastery.NewService(db, log, r.Card, r.ReviewLog, r.TopicMastery, cfg.Mastery)
	if err != nil {
		return Services{}, fmt.Errorf("init mastery service: %w", err)
	}
	models := scheduler.NewModelCache(r.Parameters, log, scheduler.WithCacheMetrics(metrics))

	base := aggregates.BaseDeps{
		DB:    db,
		Log:   log,
		Hooks: aggregates.NewObservabilityHooks(metrics),
	}
	cardAgg := aggregates.NewCardAggregate(base, aggregates.CardAggregateDeps{
		Cards:      r.Card,
		Logs:       r.ReviewLog,
		Parameters: r.Parameters,
		Mastery:    r.TopicMastery,
	})
	reviewAgg := aggregates.NewReviewAggregate(base, aggregates.ReviewAggregateDeps{
		Cards:   r.Card,
		Logs:    r.ReviewLog,
		Models:  models,
		Mastery: masterySvc,
	})

	opts := []scheduler.Option{
		scheduler.WithLocation(cfg.Location),
		scheduler.WithMetrics(metrics),
		scheduler.WithOptimizeConfig(cfg.Optimize),
	}
	if b != nil {
		opts = append(opts, scheduler.WithBus(b, ""))
	}
	sched, err := scheduler.NewService(db, log, scheduler.Deps{
		Cards:      r.Card,
		Logs:       r.ReviewLog,
		Parameters: r.Parameters,
		CardAgg:    cardAgg,
		ReviewAgg:  reviewAgg,
		Mastery:    masterySvc,
		Models:     models,
	}, opts...)
	if err != nil {
		return Services{}, fmt.Errorf("init scheduler service: %w", err)
	}

	return Services{
		Mastery:   masterySvc,
		Models:    models,
		Scheduler: sched,
	}, nil
}
