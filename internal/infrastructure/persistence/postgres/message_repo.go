// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"faq-rag-api/internal/domain/entity"
	"faq-rag-api/internal/domain/repository"
)

type MessageRepository struct {
	client *Client
	tx     *TxManager
}

func NewMessageRepository(client *Client, tx *TxManager) *MessageRepository {
	return &MessageRepository{client: client, tx: tx}
}

// Create 写入消息并累加会话计数与最近消息时间
func (r *MessageRepository) Create(ctx context.Context, msg *entity.Message) error {
	ctx, span := tracer.Start(ctx, "postgres.MessageRepository.Create")
	defer span.End()

	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		db := getDB(ctx, r.client.db)
		if err := db.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}

		updates := map[string]any{
			"message_count":   gorm.Expr("message_count + 1"),
			"last_message_at": time.Now(),
		}
		if msg.IsAssistant() {
			updates["assistant_message_count"] = gorm.Expr("assistant_message_count + 1")
		}
		if err := db.Model(&entity.ChatSession{}).Where("id = ?", msg.ChatSessionID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to touch chat session: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	ctx, span := tracer.Start(ctx, "postgres.MessageRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var msg entity.Message
	if err := db.First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &msg, nil
}

// Recent 取最近 limit 条并反转为正序
func (r *MessageRepository) Recent(ctx context.Context, sessionID string, limit int) ([]*entity.Message, error) {
	ctx, span := tracer.Start(ctx, "postgres.MessageRepository.Recent")
	defer span.End()

	if limit <= 0 {
		return nil, nil
	}

	db := getDB(ctx, r.client.db)
	var msgs []*entity.Message
	if err := db.Where("chat_session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list recent messages: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Message], error) {
	ctx, span := tracer.Start(ctx, "postgres.MessageRepository.ListBySession")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Message{}).Where("chat_session_id = ?", sessionID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	var msgs []*entity.Message
	if err := query.Order("created_at ASC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&msgs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return repository.NewPagedResult(msgs, total, pagination), nil
}

func (r *MessageRepository) UpdateFeedback(ctx context.Context, id string, value int) error {
	ctx, span := tracer.Start(ctx, "postgres.MessageRepository.UpdateFeedback")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Message{}).Where("id = ?", id).Update("user_feedback", value).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update message feedback: %w", err)
	}
	return nil
}

func (r *MessageRepository) SetFlagged(ctx context.Context, id string, flagged bool) error {
	ctx, span := tracer.Start(ctx, "postgres.MessageRepository.SetFlagged")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.Message{}).Where("id = ?", id).Update("flagged", flagged).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update message flag: %w", err)
	}
	return nil
}
