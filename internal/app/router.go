package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-srs/internal/http"
	"github.com/yungbote/neurobridge-srs/internal/observability"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	serviceName := ""
	if cfg.OTel.Enabled {
		serviceName = cfg.ServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:                log,
		ServiceName:        serviceName,
		CORSOrigins:        cfg.CORSOrigins,
		Metrics:            metrics,
		IdentityMiddleware: middleware.Identity,
		ReviewHandler:      handlers.Review,
		HealthHandler:      handlers.Health,
	})
}
