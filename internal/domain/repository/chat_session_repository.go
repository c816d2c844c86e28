// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"faq-rag-api/internal/domain/entity"
)

// ChatSessionRepository 会话仓储
type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	GetByID(ctx context.Context, id string) (*entity.ChatSession, error)
	GetByIDForUpdate(ctx context.Context, id string) (*entity.ChatSession, error)
	Update(ctx context.Context, session *entity.ChatSession) error
	List(ctx context.Context, activeOnly bool, pagination Pagination) (*PagedResult[*entity.ChatSession], error)
	// SetTitleIfEmpty 仅在标题为空时写入
	SetTitleIfEmpty(ctx context.Context, id, title string) error
	// CloseIdle 结束 last_message_at 早于 before 的活跃会话，返回数量
	CloseIdle(ctx context.Context, before time.Time) (int64, error)
}
