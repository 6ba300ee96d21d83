package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-srs/internal/data/db"
	httpserver "github.com/yungbote/neurobridge-srs/internal/http"
	"github.com/yungbote/neurobridge-srs/internal/observability"
	"github.com/yungbote/neurobridge-srs/internal/platform/envutil"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
	"github.com/yungbote/neurobridge-srs/internal/realtime/bus"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics
	Bus      bus.Bus

	store        *db.Service
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	seeded, fileErr := LoadConfigFile(envutil.String("CONFIG_FILE", ""))

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if fileErr != nil {
		log.Sync()
		return nil, fileErr
	}
	if seeded > 0 {
		log.Info("Loaded config file", "path", envutil.String("CONFIG_FILE", ""), "keys", seeded)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	store, err := db.Open(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init %s: %w", cfg.DB.Driver, err)
	}
	if err := store.AutoMigrateAll(); err != nil {
		_ = store.Close()
		log.Sync()
		return nil, fmt.Errorf("%s automigrate: %w", cfg.DB.Driver, err)
	}
	theDB := store.DB()

	metrics := observability.Init(cfg.MetricsEnabled)
	otelShutdown := observability.InitOTel(context.Background(), log, cfg.OTel)

	var invalidations bus.Bus
	if cfg.Redis.Addr != "" {
		invalidations, err = bus.NewRedisBus(log, cfg.Redis)
		if err != nil {
			_ = store.Close()
			log.Sync()
			return nil, fmt.Errorf("init redis bus: %w", err)
		}
	} else {
		log.Info("REDIS_ADDR not set; model cache invalidation stays local")
	}

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, metrics, invalidations)
	if err != nil {
		if invalidations != nil {
			_ = invalidations.Close()
		}
		_ = store.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, theDB, serviceset)
	middleware := wireMiddleware(log)
	router := wireRouter(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		Bus:          invalidations,
		store:        store,
		otelShutdown: otelShutdown,
	}, nil
}

// Start seeds the global parameter row and starts background listeners.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	seedCtx, seedCancel := context.WithTimeout(ctx, 30*time.Second)
	created, err := a.Services.Scheduler.EnsureGlobalParameters(seedCtx)
	seedCancel()
	if err != nil {
		return fmt.Errorf("seed global parameters: %w", err)
	}
	if created {
		a.Log.Info("Seeded global FSRS parameters")
	}

	if a.Bus != nil {
		if err := a.Services.Scheduler.StartInvalidationListener(ctx); err != nil {
			return fmt.Errorf("start invalidation listener: %w", err)
		}
		a.Metrics.StartRedisCollector(ctx, a.Log, bus.Client(a.Bus), 15*time.Second)
	}
	a.Metrics.StartDBCollector(ctx, a.Log, a.DB, 15*time.Second)
	return nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context, addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	if addr == "" {
		addr = a.Cfg.HTTPAddr
	}
	a.Log.Info("Serving HTTP", "addr", addr)
	srv := &httpserver.Server{Engine: a.Router}
	return srv.Run(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Bus != nil {
		_ = a.Bus.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Log.Warn("db close failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
