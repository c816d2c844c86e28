package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"faq-rag-api/internal/application/rag"
	"faq-rag-api/internal/domain/entity"
	"faq-rag-api/internal/domain/repository"
)

// MessageStore 将消息仓储适配为问答核心的持久化与历史读取端口
type MessageStore struct {
	repo repository.MessageRepository
}

// NewMessageStore 创建消息存储适配器
func NewMessageStore(repo repository.MessageRepository) *MessageStore {
	return &MessageStore{repo: repo}
}

// CreateUserMessage 写入用户消息，返回消息 ID
func (s *MessageStore) CreateUserMessage(ctx context.Context, sessionID, content string) (string, error) {
	msg := entity.NewUserMessage(sessionID, content)
	if err := s.repo.Create(ctx, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// CreateAssistantMessage 写入助手消息及其检索审计字段
func (s *MessageStore) CreateAssistantMessage(ctx context.Context, in *rag.AssistantMessage) (string, error) {
	msg := entity.NewAssistantMessage(in.SessionID, in.Content, entity.AnswerType(in.AnswerType), in.TokensIn, in.TokensOut)

	sources := in.Sources
	if sources == nil {
		sources = []rag.EvidenceItem{}
	}
	var err error
	if msg.Sources, err = json.Marshal(sources); err != nil {
		return "", fmt.Errorf("marshal sources: %w", err)
	}
	if msg.RetrievalParams, err = marshalOptional(in.RetrievalParams); err != nil {
		return "", fmt.Errorf("marshal retrieval params: %w", err)
	}
	if msg.RetrievalStats, err = marshalOptional(in.RetrievalStats); err != nil {
		return "", fmt.Errorf("marshal retrieval stats: %w", err)
	}
	if msg.ContextPolicy, err = marshalOptional(in.ContextPolicy); err != nil {
		return "", fmt.Errorf("marshal context policy: %w", err)
	}
	if in.Citations != nil {
		if msg.Citations, err = json.Marshal(in.Citations); err != nil {
			return "", fmt.Errorf("marshal citations: %w", err)
		}
	}

	msg.ErrorType = optionalString(in.ErrorType)
	msg.ModelProvider = optionalString(in.ModelProvider)
	msg.ModelUsed = optionalString(in.ModelUsed)
	latency := in.LatencyMs
	msg.LatencyMs = &latency
	msg.RetrievalScore = in.RetrievalScore

	if err := s.repo.Create(ctx, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// RecentHistory 返回最近 limit 条消息（按时间正序）
func (s *MessageStore) RecentHistory(ctx context.Context, sessionID string, limit int) ([]rag.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	msgs, err := s.repo.Recent(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	turns := make([]rag.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, rag.Turn{Role: string(m.Role), Content: m.Content})
	}
	return turns, nil
}

// marshalOptional nil 指针与 nil 接口都落为 SQL NULL
func marshalOptional(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *rag.RetrievalParams:
		if t == nil {
			return nil, nil
		}
	case *rag.ContextPolicy:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
