package chat

import (
	"context"
	"time"

	"faq-rag-api/internal/domain/repository"
	"faq-rag-api/pkg/logger"
	"faq-rag-api/pkg/metrics"
)

// SessionSweeper 定时结束空闲会话（job-worker 使用）
type SessionSweeper struct {
	sessions repository.ChatSessionRepository
}

// NewSessionSweeper 创建会话清理器
func NewSessionSweeper(sessions repository.ChatSessionRepository) *SessionSweeper {
	return &SessionSweeper{sessions: sessions}
}

// CloseIdle 结束空闲超过 ttl 的会话，返回数量
func (s *SessionSweeper) CloseIdle(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := s.sessions.CloseIdle(ctx, time.Now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SessionsClosedTotal.Add(float64(n))
		logger.Info(ctx, "idle sessions closed", "count", n, "ttl", ttl.String())
	}
	return n, nil
}
