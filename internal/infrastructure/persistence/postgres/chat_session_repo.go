// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"faq-rag-api/internal/domain/entity"
	"faq-rag-api/internal/domain/repository"
)

type ChatSessionRepository struct {
	client *Client
}

func NewChatSessionRepository(client *Client) *ChatSessionRepository {
	return &ChatSessionRepository{client: client}
}

func (r *ChatSessionRepository) Create(ctx context.Context, session *entity.ChatSession) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(session).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chat session: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) GetByID(ctx context.Context, id string) (*entity.ChatSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var session entity.ChatSession
	if err := db.First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}
	return &session, nil
}

func (r *ChatSessionRepository) GetByIDForUpdate(ctx context.Context, id string) (*entity.ChatSession, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.GetByIDForUpdate")
	defer span.End()

	db := getDB(ctx, r.client.db).Clauses(clause.Locking{Strength: "UPDATE"})
	var session entity.ChatSession
	if err := db.First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chat session for update: %w", err)
	}
	return &session, nil
}

func (r *ChatSessionRepository) Update(ctx context.Context, session *entity.ChatSession) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(session).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update chat session: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) List(ctx context.Context, activeOnly bool, pagination repository.Pagination) (*repository.PagedResult[*entity.ChatSession], error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.ChatSession{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count chat sessions: %w", err)
	}

	var sessions []*entity.ChatSession
	if err := query.Order("last_message_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&sessions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chat sessions: %w", err)
	}

	return repository.NewPagedResult(sessions, total, pagination), nil
}

func (r *ChatSessionRepository) SetTitleIfEmpty(ctx context.Context, id, title string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.SetTitleIfEmpty")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Model(&entity.ChatSession{}).
		Where("id = ? AND (title IS NULL OR title = '')", id).
		Update("title", title).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to set chat session title: %w", err)
	}
	return nil
}

func (r *ChatSessionRepository) CloseIdle(ctx context.Context, before time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChatSessionRepository.CloseIdle")
	defer span.End()

	db := getDB(ctx, r.client.db)
	res := db.Model(&entity.ChatSession{}).
		Where("is_active = ? AND last_message_at < ?", true, before).
		Updates(map[string]any{"is_active": false, "ended_at": time.Now()})
	if res.Error != nil {
		span.RecordError(res.Error)
		return 0, fmt.Errorf("failed to close idle chat sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
