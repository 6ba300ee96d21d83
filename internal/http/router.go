package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/neurobridge-srs/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-srs/internal/http/middleware"
	"github.com/yungbote/neurobridge-srs/internal/observability"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	IdentityMiddleware *httpMW.IdentityMiddleware

	ReviewHandler *httpH.ReviewHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	protected := api.Group("/")
	{
		if cfg.IdentityMiddleware != nil {
			protected.Use(cfg.IdentityMiddleware.RequireUser())
		}

		// Reviews
		if cfg.ReviewHandler != nil {
			h := cfg.ReviewHandler
			reviews := protected.Group("/reviews")
			reviews.GET("/due", h.GetDueCards)
			reviews.GET("/schedule", h.GetUpcomingReviews)
			reviews.GET("/stats", h.GetStats)
			reviews.GET("/retention/:card_id", h.PredictRetention)
			reviews.GET("/preview/:card_id", h.PreviewReview)
			reviews.GET("/mastery/:topic_id", h.GetTopicMastery)
			reviews.POST("/cards", h.CreateCard)
			reviews.POST("/cards/bulk", h.CreateCards)
			reviews.POST("/optimize", h.OptimizeParameters)
			reviews.POST("/:card_id", h.SubmitReview)
			reviews.DELETE("/user", h.PurgeUser)
		}
	}

	return r
}
