package dto

import (
	"faq-rag-api/internal/application/chat"
	"faq-rag-api/internal/application/rag"
)

// ChatRequest 一轮对话请求
type ChatRequest struct {
	SessionID   string `json:"session_id" binding:"required"`
	Message     string `json:"message" binding:"required,max=4000"`
	HistorySize *int   `json:"history_size,omitempty" binding:"omitempty,min=0,max=50"`
}

// ToInput 转换为应用层输入
func (r *ChatRequest) ToInput() chat.ChatInput {
	in := chat.ChatInput{
		SessionID:   r.SessionID,
		Message:     r.Message,
		HistorySize: chat.DefaultHistorySize,
	}
	if r.HistorySize != nil {
		in.HistorySize = *r.HistorySize
	}
	return in
}

// ChatResponse 一轮对话响应
type ChatResponse = rag.TurnResult

// FeedbackRequest 消息反馈请求
type FeedbackRequest struct {
	Value *int `json:"value" binding:"required"`
}

// FeedbackResponse 消息反馈响应
type FeedbackResponse struct {
	MessageID    string `json:"message_id"`
	UserFeedback int    `json:"user_feedback"`
}
