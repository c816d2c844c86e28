// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"faq-rag-api/pkg/errors"
	"faq-rag-api/pkg/logger"
)

const (
	// ClientIDHeader 调用方可显式声明客户端标识；缺失时使用客户端 IP
	ClientIDHeader = "X-Client-Id"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool
	// Limit 每个窗口内允许的请求数
	Limit  int
	Window time.Duration
	// Endpoint 参与构建限流 Key 的端点名
	Endpoint string
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error)
	BuildRateLimitKey(clientID, endpoint string) string
}

// RateLimit 按客户端的滑动窗口限流中间件
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.Limit <= 0 {
		cfg.Limit = 30
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "default"
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := limiter.BuildRateLimitKey(clientID(c), cfg.Endpoint)

		allowed, remaining, err := limiter.Allow(ctx, key, cfg.Limit, cfg.Window)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(ctx, "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":     http.StatusTooManyRequests,
				"message":  "rate limit exceeded",
				"error":    gin.H{"error_code": string(errors.CodeTooManyRequests)},
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}

func clientID(c *gin.Context) string {
	if id := c.GetHeader(ClientIDHeader); id != "" {
		return id
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "anonymous"
}
