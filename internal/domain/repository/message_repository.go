package repository

import (
	"context"

	"faq-rag-api/internal/domain/entity"
)

// MessageRepository 消息仓储
type MessageRepository interface {
	// Create 写入消息并在同一事务内更新会话计数
	Create(ctx context.Context, msg *entity.Message) error
	GetByID(ctx context.Context, id string) (*entity.Message, error)
	// Recent 返回最近 limit 条消息（按时间正序）
	Recent(ctx context.Context, sessionID string, limit int) ([]*entity.Message, error)
	ListBySession(ctx context.Context, sessionID string, pagination Pagination) (*PagedResult[*entity.Message], error)
	UpdateFeedback(ctx context.Context, id string, value int) error
	// SetFlagged 标记消息待人工复核
	SetFlagged(ctx context.Context, id string, flagged bool) error
}

// AnalyticsRepository 会话统计查询
type AnalyticsRepository interface {
	SessionAnalytics(ctx context.Context, sessionID string) (*entity.SessionAnalytics, error)
}
