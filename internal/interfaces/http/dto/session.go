package dto

import (
	"time"

	"faq-rag-api/internal/domain/entity"
	"faq-rag-api/internal/domain/repository"
)

// CreateSessionRequest 创建会话请求；title 可为空
type CreateSessionRequest struct {
	Title string `json:"title,omitempty" binding:"max=255"`
}

// SessionResponse 会话响应
type SessionResponse struct {
	ID                    string     `json:"id"`
	Title                 string     `json:"title"`
	SummaryText           string     `json:"summary_text,omitempty"`
	IsActive              bool       `json:"is_active"`
	MessageCount          int        `json:"message_count"`
	AssistantMessageCount int        `json:"assistant_message_count"`
	LastMessageAt         time.Time  `json:"last_message_at"`
	EndedAt               *time.Time `json:"ended_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// SessionListResponse 会话列表响应
type SessionListResponse struct {
	Sessions   []*SessionResponse `json:"sessions"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

// HistoryMessage 历史消息
type HistoryMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse 会话历史响应（时间正序）
type HistoryResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []*HistoryMessage `json:"messages"`
}

// ToSessionResponse 转换会话实体
func ToSessionResponse(s *entity.ChatSession) *SessionResponse {
	if s == nil {
		return nil
	}
	resp := &SessionResponse{
		ID:                    s.ID,
		IsActive:              s.IsActive,
		MessageCount:          s.MessageCount,
		AssistantMessageCount: s.AssistantMessageCount,
		LastMessageAt:         s.LastMessageAt,
		EndedAt:               s.EndedAt,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
	if s.Title != nil {
		resp.Title = *s.Title
	}
	if s.SummaryText != nil {
		resp.SummaryText = *s.SummaryText
	}
	return resp
}

// ToSessionListResponse 转换会话分页结果
func ToSessionListResponse(result *repository.PagedResult[*entity.ChatSession]) *SessionListResponse {
	resp := &SessionListResponse{Sessions: make([]*SessionResponse, 0)}
	if result == nil {
		return resp
	}
	for _, s := range result.Items {
		resp.Sessions = append(resp.Sessions, ToSessionResponse(s))
	}
	resp.Total = result.Total
	resp.Page = result.Page
	resp.PageSize = result.PageSize
	resp.TotalPages = result.TotalPages
	return resp
}

// ToHistoryResponse 转换历史消息
func ToHistoryResponse(sessionID string, msgs []*entity.Message) *HistoryResponse {
	resp := &HistoryResponse{SessionID: sessionID, Messages: make([]*HistoryMessage, 0, len(msgs))}
	for _, m := range msgs {
		if m == nil {
			continue
		}
		resp.Messages = append(resp.Messages, &HistoryMessage{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return resp
}
