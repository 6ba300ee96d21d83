package app

import (
	"gorm.io/gorm"

	httpH "github.com/yungbote/neurobridge-srs/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-srs/internal/http/middleware"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
)

type Middleware struct {
	Identity *httpMW.IdentityMiddleware
}

type Handlers struct {
	Health *httpH.HealthHandler
	Review *httpH.ReviewHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(db),
		Review: httpH.NewReviewHandler(log, services.Scheduler),
	}
}

func wireMiddleware(log *logger.Logger) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Identity: httpMW.NewIdentityMiddleware(log),
	}
}
