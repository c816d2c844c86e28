// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"faq-rag-api/internal/config"
	"faq-rag-api/internal/interfaces/http/handler"
	"faq-rag-api/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Chat      *handler.ChatHandler
	Retrieval *handler.RetrievalHandler
	Health    *handler.HealthHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
	limiter  middleware.RateLimiter
}

// New 创建新的路由器；limiter 为 nil 时不限流
func New(cfg *config.Config, handlers Handlers, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Tracing(r.cfg.App.Name)...)
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics(r.metricsPath(), "/health/live"))
	}
}

func (r *Router) metricsPath() string {
	if p := r.cfg.Observability.Metrics.Path; p != "" {
		return p
	}
	return "/metrics"
}

func (r *Router) setupRoutes() {
	if h := r.handlers.Health; h != nil {
		health := r.engine.Group("/health")
		{
			health.GET("", h.Health)
			health.GET("/live", h.Live)
			health.GET("/ready", h.Ready)
		}
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.metricsPath(), gin.WrapH(promhttp.Handler()))
	}

	v1 := r.engine.Group("/v1")

	if chat := r.handlers.Chat; chat != nil {
		chatLimit := middleware.RateLimit(middleware.RateLimitConfig{
			Enabled:  r.cfg.Security.RateLimit.Enabled,
			Limit:    r.cfg.Security.RateLimit.RequestsPerWindow,
			Window:   r.cfg.Security.RateLimit.Window,
			Endpoint: "chat",
		}, r.limiter)

		v1.POST("/chat", chatLimit, chat.Chat)

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", chat.CreateSession)
			sessions.GET("", chat.ListSessions)
			sessions.GET("/:id", chat.GetSession)
			sessions.POST("/:id/end", chat.EndSession)
			sessions.GET("/:id/history", chat.History)
			sessions.GET("/:id/analytics", chat.Analytics)
		}

		v1.POST("/messages/:id/feedback", chat.Feedback)
	}

	if h := r.handlers.Retrieval; h != nil {
		v1.POST("/retrieval/search", h.Search)
	}
}
