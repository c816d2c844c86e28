// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"faq-rag-api/internal/application/chat"
	"faq-rag-api/internal/application/rag"
	"faq-rag-api/internal/domain/entity"
	"faq-rag-api/internal/domain/repository"
	"faq-rag-api/internal/interfaces/http/dto"
	"faq-rag-api/pkg/logger"
)

// ChatService 处理器依赖的对话服务
type ChatService interface {
	Chat(ctx context.Context, in chat.ChatInput) (*rag.TurnResult, error)
	CreateSession(ctx context.Context, title string) (*entity.ChatSession, error)
	GetSession(ctx context.Context, id string) (*entity.ChatSession, error)
	ListSessions(ctx context.Context, activeOnly bool, pagination repository.Pagination) (*repository.PagedResult[*entity.ChatSession], error)
	EndSession(ctx context.Context, id string) (*entity.ChatSession, error)
	History(ctx context.Context, sessionID string, limit int) ([]*entity.Message, error)
	Feedback(ctx context.Context, in chat.FeedbackInput) (*entity.Message, error)
	Analytics(ctx context.Context, sessionID string) (*entity.SessionAnalytics, error)
}

// ChatHandler 对话处理器
type ChatHandler struct {
	svc ChatService
}

// NewChatHandler 创建对话处理器
func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// Chat 发送一条消息
// @Summary 发送消息
// @Description 金融问题走检索问答（可能弃答），其余意图返回固定回复
// @Tags Chat
// @Accept json
// @Produce json
// @Param body body dto.ChatRequest true "对话请求"
// @Success 200 {object} dto.Response[dto.ChatResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /v1/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		dto.BadRequest(c, "message is required")
		return
	}

	ctx = logger.WithContext(ctx, logger.SessionIDKey, req.SessionID)
	res, err := h.svc.Chat(ctx, req.ToInput())
	if err != nil {
		logFailure(ctx, "chat turn failed", err)
		dto.FromError(c, err)
		return
	}
	dto.Success(c, res)
}

// Feedback 对助手消息打分
// @Summary 消息反馈
// @Description value ∈ {-1,0,1}；X-Session-Id 头用于校验消息归属
// @Tags Chat
// @Accept json
// @Produce json
// @Param id path string true "消息 ID"
// @Param X-Session-Id header string false "会话 ID"
// @Param body body dto.FeedbackRequest true "反馈"
// @Success 200 {object} dto.Response[dto.FeedbackResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/messages/{id}/feedback [post]
func (h *ChatHandler) Feedback(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	msg, err := h.svc.Feedback(ctx, chat.FeedbackInput{
		SessionID: strings.TrimSpace(c.GetHeader(dto.SessionIDHeader)),
		MessageID: dto.BindMessageID(c),
		Value:     *req.Value,
	})
	if err != nil {
		logFailure(ctx, "feedback rejected", err)
		dto.FromError(c, err)
		return
	}

	resp := &dto.FeedbackResponse{MessageID: msg.ID}
	if msg.UserFeedback != nil {
		resp.UserFeedback = *msg.UserFeedback
	}
	dto.Success(c, resp)
}
