package handler

import (
	"github.com/gin-gonic/gin"

	"faq-rag-api/internal/application/chat"
	"faq-rag-api/internal/interfaces/http/dto"
	"faq-rag-api/pkg/logger"
)

// CreateSession 创建会话
// @Summary 创建会话
// @Tags Sessions
// @Accept json
// @Produce json
// @Param body body dto.CreateSessionRequest false "会话信息"
// @Success 201 {object} dto.Response[dto.SessionResponse]
// @Router /v1/sessions [post]
func (h *ChatHandler) CreateSession(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			dto.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	session, err := h.svc.CreateSession(ctx, req.Title)
	if err != nil {
		logFailure(ctx, "failed to create session", err)
		dto.FromError(c, err)
		return
	}
	dto.Created(c, dto.ToSessionResponse(session))
}

// ListSessions 会话列表
// @Summary 会话列表
// @Tags Sessions
// @Produce json
// @Param active query bool false "仅活跃会话"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[dto.SessionListResponse]
// @Router /v1/sessions [get]
func (h *ChatHandler) ListSessions(c *gin.Context) {
	ctx := c.Request.Context()
	page := dto.BindPage(c)

	result, err := h.svc.ListSessions(ctx, dto.BindBool(c, "active", false), page.ToPagination())
	if err != nil {
		logFailure(ctx, "failed to list sessions", err)
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToSessionListResponse(result))
}

// GetSession 会话详情
// @Summary 会话详情
// @Tags Sessions
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{id} [get]
func (h *ChatHandler) GetSession(c *gin.Context) {
	session, err := h.svc.GetSession(c.Request.Context(), dto.BindSessionID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToSessionResponse(session))
}

// EndSession 结束会话
// @Summary 结束会话
// @Tags Sessions
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{id}/end [post]
func (h *ChatHandler) EndSession(c *gin.Context) {
	ctx := c.Request.Context()

	session, err := h.svc.EndSession(ctx, dto.BindSessionID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	logger.Info(ctx, "chat session ended", "session_id", session.ID)
	dto.Success(c, dto.ToSessionResponse(session))
}

// History 会话历史
// @Summary 会话历史（时间正序）
// @Tags Sessions
// @Produce json
// @Param id path string true "会话 ID"
// @Param limit query int false "条数 1..100，默认 20"
// @Success 200 {object} dto.Response[dto.HistoryResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{id}/history [get]
func (h *ChatHandler) History(c *gin.Context) {
	sessionID := dto.BindSessionID(c)
	limit := chat.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		limit = dto.ParseInt(raw, -1)
	}

	msgs, err := h.svc.History(c.Request.Context(), sessionID, limit)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToHistoryResponse(sessionID, msgs))
}

// Analytics 会话统计
// @Summary 会话统计
// @Tags Sessions
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} dto.Response[entity.SessionAnalytics]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{id}/analytics [get]
func (h *ChatHandler) Analytics(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.svc.Analytics(ctx, dto.BindSessionID(c))
	if err != nil {
		logFailure(ctx, "failed to load session analytics", err)
		dto.FromError(c, err)
		return
	}
	dto.Success(c, stats)
}
