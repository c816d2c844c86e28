package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faq-rag-api/internal/application/chat"
	"faq-rag-api/internal/application/rag"
	"faq-rag-api/internal/domain/entity"
	"faq-rag-api/internal/domain/repository"
	apperrors "faq-rag-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubChatService struct {
	chatIn     chat.ChatInput
	chatRes    *rag.TurnResult
	chatErr    error
	feedbackIn chat.FeedbackInput
	feedbackFn func(in chat.FeedbackInput) (*entity.Message, error)
	historyLim int
	history    []*entity.Message
	historyErr error
	session    *entity.ChatSession
	sessionErr error
	activeOnly bool
}

func (s *stubChatService) Chat(_ context.Context, in chat.ChatInput) (*rag.TurnResult, error) {
	s.chatIn = in
	return s.chatRes, s.chatErr
}

func (s *stubChatService) CreateSession(_ context.Context, title string) (*entity.ChatSession, error) {
	sess := entity.NewChatSession(title)
	sess.ID = "s-new"
	return sess, nil
}

func (s *stubChatService) GetSession(_ context.Context, _ string) (*entity.ChatSession, error) {
	return s.session, s.sessionErr
}

func (s *stubChatService) ListSessions(_ context.Context, activeOnly bool, p repository.Pagination) (*repository.PagedResult[*entity.ChatSession], error) {
	s.activeOnly = activeOnly
	return repository.NewPagedResult([]*entity.ChatSession{s.session}, 1, p), nil
}

func (s *stubChatService) EndSession(_ context.Context, _ string) (*entity.ChatSession, error) {
	return s.session, s.sessionErr
}

func (s *stubChatService) History(_ context.Context, _ string, limit int) ([]*entity.Message, error) {
	s.historyLim = limit
	if limit < 1 || limit > 100 {
		return nil, apperrors.ErrInvalidParam.WithDetail("limit must be between 1 and 100")
	}
	return s.history, s.historyErr
}

func (s *stubChatService) Feedback(_ context.Context, in chat.FeedbackInput) (*entity.Message, error) {
	s.feedbackIn = in
	return s.feedbackFn(in)
}

func (s *stubChatService) Analytics(_ context.Context, sessionID string) (*entity.SessionAnalytics, error) {
	return &entity.SessionAnalytics{SessionID: sessionID, TotalMessages: 2}, nil
}

func newChatRouter(svc ChatService) *gin.Engine {
	h := NewChatHandler(svc)
	r := gin.New()
	r.POST("/v1/chat", h.Chat)
	r.POST("/v1/sessions", h.CreateSession)
	r.GET("/v1/sessions", h.ListSessions)
	r.GET("/v1/sessions/:id", h.GetSession)
	r.POST("/v1/sessions/:id/end", h.EndSession)
	r.GET("/v1/sessions/:id/history", h.History)
	r.GET("/v1/sessions/:id/analytics", h.Analytics)
	r.POST("/v1/messages/:id/feedback", h.Feedback)
	return r
}

func doJSON(r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		ErrorCode string `json:"error_code"`
		Details   string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestChatHandler_Chat(t *testing.T) {
	svc := &stubChatService{chatRes: &rag.TurnResult{
		Answer:     "Transfers settle in 1-2 business days [1].",
		AnswerType: rag.AnswerGrounded,
		MessageID:  "m-1",
		SessionID:  "s-1",
	}}
	r := newChatRouter(svc)

	w := doJSON(r, http.MethodPost, "/v1/chat", map[string]any{"session_id": "s-1", "message": "How long do transfers take?"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decode(t, w)
	var res rag.TurnResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "m-1", res.MessageID)
	assert.Equal(t, rag.AnswerGrounded, res.AnswerType)
	assert.Equal(t, chat.DefaultHistorySize, svc.chatIn.HistorySize)
}

func TestChatHandler_ChatValidation(t *testing.T) {
	r := newChatRouter(&stubChatService{})

	w := doJSON(r, http.MethodPost, "/v1/chat", map[string]any{"session_id": "s-1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/chat", map[string]any{"session_id": "s-1", "message": "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/chat", map[string]any{"session_id": "s-1", "message": "hi", "history_size": 99}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_ChatErrors(t *testing.T) {
	svc := &stubChatService{chatErr: apperrors.ErrSessionNotFound}
	r := newChatRouter(svc)

	w := doJSON(r, http.MethodPost, "/v1/chat", map[string]any{"session_id": "missing", "message": "hello"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(apperrors.CodeSessionNotFound), env.Error.ErrorCode)

	svc.chatErr = errors.New("pq: connection refused")
	w = doJSON(r, http.MethodPost, "/v1/chat", map[string]any{"session_id": "s-1", "message": "hello"}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env = decode(t, w)
	assert.Equal(t, "internal server error", env.Message)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestChatHandler_Feedback(t *testing.T) {
	svc := &stubChatService{feedbackFn: func(in chat.FeedbackInput) (*entity.Message, error) {
		if in.SessionID != "" && in.SessionID != "s-1" {
			return nil, apperrors.ErrSessionForbidden
		}
		return &entity.Message{ID: in.MessageID, Role: entity.RoleAssistant, UserFeedback: &in.Value}, nil
	}}
	r := newChatRouter(svc)

	w := doJSON(r, http.MethodPost, "/v1/messages/m-1/feedback", map[string]any{"value": 1}, map[string]string{"X-Session-Id": "s-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m-1", svc.feedbackIn.MessageID)
	assert.Equal(t, "s-1", svc.feedbackIn.SessionID)

	env := decode(t, w)
	var resp struct {
		MessageID    string `json:"message_id"`
		UserFeedback int    `json:"user_feedback"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, 1, resp.UserFeedback)

	w = doJSON(r, http.MethodPost, "/v1/messages/m-1/feedback", map[string]any{"value": 1}, map[string]string{"X-Session-Id": "other"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/messages/m-1/feedback", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_Sessions(t *testing.T) {
	svc := &stubChatService{session: &entity.ChatSession{ID: "s-1", IsActive: true}}
	r := newChatRouter(svc)

	w := doJSON(r, http.MethodPost, "/v1/sessions", nil, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/sessions", map[string]any{"title": "Card limits"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "Card limits")

	w = doJSON(r, http.MethodGet, "/v1/sessions?active=true&page=1&page_size=10", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.activeOnly)

	w = doJSON(r, http.MethodGet, "/v1/sessions/s-1", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	svc.sessionErr = apperrors.ErrSessionNotFound
	w = doJSON(r, http.MethodPost, "/v1/sessions/s-9/end", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/v1/sessions/s-1/analytics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_messages":2`)
}

func TestChatHandler_History(t *testing.T) {
	svc := &stubChatService{history: []*entity.Message{
		{ID: "m-1", Role: entity.RoleUser, Content: "hi"},
		{ID: "m-2", Role: entity.RoleAssistant, Content: "hello"},
	}}
	r := newChatRouter(svc)

	w := doJSON(r, http.MethodGet, "/v1/sessions/s-1/history", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, chat.DefaultHistoryLimit, svc.historyLim)
	assert.Contains(t, w.Body.String(), `"role":"assistant"`)

	w = doJSON(r, http.MethodGet, "/v1/sessions/s-1/history?limit=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/v1/sessions/s-1/history?limit=500", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type stubSearcher struct {
	topK int
	res  *rag.SearchResult
	err  error
}

func (s *stubSearcher) Search(_ context.Context, _ string, topK int) (*rag.SearchResult, error) {
	s.topK = topK
	return s.res, s.err
}

func TestRetrievalHandler_Search(t *testing.T) {
	score := 0.82
	searcher := &stubSearcher{res: &rag.SearchResult{
		Hits: []rag.Hit{{
			ID:    "c-1",
			Score: &score,
			Fields: map[string]any{
				"text":     "Q: fees\nA: none",
				"category": "fees",
				"doc_id":   "faq-1",
			},
		}},
		BestScore: &score,
	}}
	r := gin.New()
	r.POST("/v1/retrieval/search", NewRetrievalHandler(searcher).Search)

	w := doJSON(r, http.MethodPost, "/v1/retrieval/search", map[string]any{"query": "fees"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultSearchTopK, searcher.topK)
	assert.Contains(t, w.Body.String(), `"doc_id":"faq-1"`)

	w = doJSON(r, http.MethodPost, "/v1/retrieval/search", map[string]any{"query": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	searcher.err = errors.New("milvus down")
	w = doJSON(r, http.MethodPost, "/v1/retrieval/search", map[string]any{"query": "fees", "top_k": 3}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 3, searcher.topK)
	env := decode(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(apperrors.CodeRetrievalFailed), env.Error.ErrorCode)
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Ready(t *testing.T) {
	ok := checkerFunc(func(context.Context) error { return nil })
	down := checkerFunc(func(context.Context) error { return errors.New("down") })

	cases := []struct {
		name       string
		pg, redis  HealthChecker
		milvus     HealthChecker
		wantCode   int
		wantStatus string
	}{
		{"all healthy", ok, ok, ok, http.StatusOK, "ok"},
		{"milvus degraded", ok, ok, down, http.StatusOK, "degraded"},
		{"milvus disabled", ok, ok, nil, http.StatusOK, "ok"},
		{"postgres down", down, ok, ok, http.StatusServiceUnavailable, "not_ready"},
		{"redis missing", ok, nil, ok, http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler("test", tc.pg, tc.redis, tc.milvus)
			r := gin.New()
			r.GET("/health/ready", h.Ready)

			w := doJSON(r, http.MethodGet, "/health/ready", nil, nil)
			assert.Equal(t, tc.wantCode, w.Code)

			var resp readinessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantStatus, resp.Status)
		})
	}
}
