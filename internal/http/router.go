package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/missionengine/internal/http/handlers"
	httpMW "github.com/yungbote/missionengine/internal/http/middleware"
	"github.com/yungbote/missionengine/internal/observability"
	"github.com/yungbote/missionengine/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics
	// ServiceName enables otelgin spans when set.
	ServiceName string
	// CORSOrigins defaults to middleware.DefaultCORSOrigins.
	CORSOrigins []string

	MissionHandler  *httpH.MissionHandler
	ActionHandler   *httpH.ActionHandler
	RealtimeHandler *httpH.RealtimeHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	protected := r.Group("/api")
	protected.Use(httpMW.RequireUser())
	{
		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}

		// Missions
		if cfg.MissionHandler != nil {
			protected.GET("/missions", cfg.MissionHandler.ListActive)
			protected.GET("/missions/:mission_id/progress", cfg.MissionHandler.Progress)
		}

		// Action ingress
		if cfg.ActionHandler != nil {
			protected.POST("/actions", cfg.ActionHandler.Ingest)
		}
	}

	return r
}
