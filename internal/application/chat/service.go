// Package chat 提供对话入口：会话管理、意图路由、固定回复、反馈与统计。
package chat

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"faq-rag-api/internal/application/rag"
	"faq-rag-api/internal/domain/entity"
	"faq-rag-api/internal/domain/repository"
	"faq-rag-api/internal/infrastructure/messaging"
	apperrors "faq-rag-api/pkg/errors"
	"faq-rag-api/pkg/logger"
	"faq-rag-api/pkg/metrics"
	"faq-rag-api/pkg/tracer"
)

const (
	DefaultHistorySize = 6
	MaxHistorySize     = 50

	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// TurnHandler 检索问答编排
type TurnHandler interface {
	HandleTurn(ctx context.Context, in rag.TurnInput) (*rag.TurnResult, error)
}

// Classifier 意图分类
type Classifier interface {
	Classify(ctx context.Context, text string, history []rag.Turn) rag.IntentResult
}

// EventPublisher 对话事件发布；为 nil 时不发布
type EventPublisher interface {
	PublishTurnCompleted(ctx context.Context, ev *messaging.TurnCompletedEvent) (string, error)
	PublishFeedbackRecorded(ctx context.Context, ev *messaging.FeedbackRecordedEvent) (string, error)
}

// Store 消息写入与历史读取
type Store interface {
	rag.MessageStore
	rag.HistoryReader
}

// ChatInput 一轮对话输入
type ChatInput struct {
	SessionID   string
	Message     string
	HistorySize int
}

// FeedbackInput 反馈输入；SessionID 来自 X-Session-Id 头
type FeedbackInput struct {
	SessionID string
	MessageID string
	Value     int
}

// Service 对话应用服务
type Service struct {
	sessions   repository.ChatSessionRepository
	messages   repository.MessageRepository
	analytics  repository.AnalyticsRepository
	store      Store
	classifier Classifier
	turns      TurnHandler
	events     EventPublisher
}

// NewService 创建对话服务
func NewService(
	sessions repository.ChatSessionRepository,
	messages repository.MessageRepository,
	analytics repository.AnalyticsRepository,
	store Store,
	classifier Classifier,
	turns TurnHandler,
	events EventPublisher,
) *Service {
	return &Service{
		sessions:   sessions,
		messages:   messages,
		analytics:  analytics,
		store:      store,
		classifier: classifier,
		turns:      turns,
		events:     events,
	}
}

// Chat 处理一条用户消息：金融问题走检索问答，其余意图返回固定回复
func (s *Service) Chat(ctx context.Context, in ChatInput) (*rag.TurnResult, error) {
	ctx, span := tracer.Start(ctx, "chat.Chat")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", in.SessionID))

	text := strings.TrimSpace(in.Message)
	if text == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("message must not be empty")
	}
	if in.HistorySize < 0 || in.HistorySize > MaxHistorySize {
		return nil, apperrors.ErrInvalidParam.WithDetail("history_size must be between 0 and 50")
	}

	if _, err := s.mustGetSession(ctx, in.SessionID); err != nil {
		return nil, err
	}
	ctx = logger.WithContext(ctx, logger.SessionIDKey, in.SessionID)
	start := time.Now()

	if err := s.sessions.SetTitleIfEmpty(ctx, in.SessionID, entity.TitleFromMessage(in.Message)); err != nil {
		logger.Warn(ctx, "failed to auto-title session", "error", err.Error())
	}

	history, err := s.store.RecentHistory(ctx, in.SessionID, in.HistorySize)
	if err != nil {
		logger.Warn(ctx, "failed to load history, classifying without it", "error", err.Error())
		history = nil
	}

	intent := s.classifier.Classify(ctx, in.Message, history)
	method, _ := intent.Signals["classification_method"].(string)
	metrics.IntentClassificationsTotal.WithLabelValues(string(intent.Intent), method).Inc()
	span.SetAttributes(
		attribute.String("intent", string(intent.Intent)),
		attribute.Float64("intent.confidence", intent.Confidence),
	)
	logger.Debug(ctx, "intent classified",
		"intent", string(intent.Intent),
		"confidence", intent.Confidence,
		"method", method,
		"category_hint", intent.CategoryHint,
	)

	var res *rag.TurnResult
	if intent.Intent == rag.IntentFintechQuestion {
		res, err = s.turns.HandleTurn(ctx, rag.TurnInput{
			SessionID:        in.SessionID,
			UserText:         in.Message,
			Query:            intent.ProcessedQuery,
			CategoryHint:     intent.CategoryHint,
			IntentConfidence: intent.Confidence,
		})
	} else {
		res, err = s.sendCanned(ctx, in.SessionID, in.Message, intent)
	}
	if err != nil {
		span.RecordError(err)
		logger.Error(ctx, "failed to record chat turn", err)
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to record chat turn")
	}

	s.publishTurn(ctx, intent.Intent, res, start)
	return res, nil
}

// sendCanned 非检索路径：先写用户消息保证历史完整，再写固定回复
func (s *Service) sendCanned(ctx context.Context, sessionID, userText string, intent rag.IntentResult) (*rag.TurnResult, error) {
	if _, err := s.store.CreateUserMessage(ctx, sessionID, userText); err != nil {
		return nil, err
	}

	content := CannedReply(intent.Intent)
	msgID, err := s.store.CreateAssistantMessage(context.WithoutCancel(ctx), &rag.AssistantMessage{
		SessionID: sessionID,
		Content:   content,
		Sources:   []rag.EvidenceItem{},
		RetrievalStats: map[string]any{
			"router_intent":     string(intent.Intent),
			"intent_confidence": intent.Confidence,
		},
		AnswerType: rag.AnswerFallback,
	})
	if err != nil {
		return nil, err
	}
	metrics.ChatTurnsTotal.WithLabelValues(string(rag.AnswerFallback)).Inc()

	return &rag.TurnResult{
		Answer:     content,
		AnswerType: rag.AnswerFallback,
		MessageID:  msgID,
		SessionID:  sessionID,
		Sources:    []rag.EvidenceItem{},
	}, nil
}

func (s *Service) publishTurn(ctx context.Context, intent rag.Intent, res *rag.TurnResult, start time.Time) {
	if s.events == nil || res == nil {
		return
	}
	ev := &messaging.TurnCompletedEvent{
		SessionID:  res.SessionID,
		MessageID:  res.MessageID,
		Intent:     string(intent),
		AnswerType: string(res.AnswerType),
		LatencyMs:  float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if res.Metrics != nil {
		ev.AbstainReason, _ = res.Metrics["abstain_reason"].(string)
		ev.KeptHits, _ = res.Metrics["kept_hits"].(int)
		ev.TokensIn, _ = res.Metrics["tokens_in"].(*int)
		ev.TokensOut, _ = res.Metrics["tokens_out"].(*int)
		ev.ModelProvider, _ = res.Metrics["model_provider"].(string)
		ev.ModelUsed, _ = res.Metrics["model_used"].(string)
		if v, ok := res.Metrics["verification"].(rag.Verification); ok {
			c := v.Confidence
			ev.VerificationConfidence = &c
		}
	}
	if _, err := s.events.PublishTurnCompleted(context.WithoutCancel(ctx), ev); err != nil {
		logger.Warn(ctx, "failed to publish turn event", "error", err.Error(), "message_id", res.MessageID)
	}
}

// CreateSession 创建会话
func (s *Service) CreateSession(ctx context.Context, title string) (*entity.ChatSession, error) {
	session := entity.NewChatSession(title)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create session")
	}
	logger.Info(ctx, "chat session created", "session_id", session.ID)
	return session, nil
}

// GetSession 获取会话
func (s *Service) GetSession(ctx context.Context, id string) (*entity.ChatSession, error) {
	return s.mustGetSession(ctx, id)
}

// ListSessions 分页列出会话
func (s *Service) ListSessions(ctx context.Context, activeOnly bool, pagination repository.Pagination) (*repository.PagedResult[*entity.ChatSession], error) {
	result, err := s.sessions.List(ctx, activeOnly, pagination)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list sessions")
	}
	return result, nil
}

// EndSession 结束会话；已结束的会话原样返回
func (s *Service) EndSession(ctx context.Context, id string) (*entity.ChatSession, error) {
	session, err := s.mustGetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return session, nil
	}
	session.End(time.Now())
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to end session")
	}
	return session, nil
}

// History 返回最近 limit 条消息（按时间正序）
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]*entity.Message, error) {
	if limit < 1 || limit > MaxHistoryLimit {
		return nil, apperrors.ErrInvalidParam.WithDetail("limit must be between 1 and 100")
	}
	if _, err := s.mustGetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.Recent(ctx, sessionID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load history")
	}
	return msgs, nil
}

// Feedback 记录用户对助手消息的反馈
func (s *Service) Feedback(ctx context.Context, in FeedbackInput) (*entity.Message, error) {
	if !entity.ValidFeedback(in.Value) {
		return nil, apperrors.ErrInvalidParam.WithDetail("value must be -1, 0 or 1")
	}
	msg, err := s.messages.GetByID(ctx, in.MessageID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load message")
	}
	if msg == nil {
		return nil, apperrors.ErrMessageNotFound
	}
	if in.SessionID != "" && msg.ChatSessionID != in.SessionID {
		return nil, apperrors.ErrSessionForbidden
	}
	if !msg.IsAssistant() {
		return nil, apperrors.ErrFeedbackNotAllowed
	}

	if err := s.messages.UpdateFeedback(ctx, msg.ID, in.Value); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to record feedback")
	}
	v := in.Value
	msg.UserFeedback = &v
	metrics.FeedbackTotal.WithLabelValues(feedbackLabel(v)).Inc()

	if s.events != nil {
		if _, err := s.events.PublishFeedbackRecorded(context.WithoutCancel(ctx), &messaging.FeedbackRecordedEvent{
			SessionID: msg.ChatSessionID,
			MessageID: msg.ID,
			Value:     v,
		}); err != nil {
			logger.Warn(ctx, "failed to publish feedback event", "error", err.Error(), "message_id", msg.ID)
		}
	}
	return msg, nil
}

// Analytics 会话统计
func (s *Service) Analytics(ctx context.Context, sessionID string) (*entity.SessionAnalytics, error) {
	if _, err := s.mustGetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	a, err := s.analytics.SessionAnalytics(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to compute analytics")
	}
	return a, nil
}

func (s *Service) mustGetSession(ctx context.Context, id string) (*entity.ChatSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load session")
	}
	if session == nil {
		return nil, apperrors.ErrSessionNotFound
	}
	return session, nil
}

func feedbackLabel(v int) string {
	switch {
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	default:
		return "neutral"
	}
}
