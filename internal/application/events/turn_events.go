// Package events 消费对话事件流：汇总为指标，并把差评消息标记为待复核。
package events

import (
	"context"
	"strconv"

	"faq-rag-api/internal/infrastructure/messaging"
	"faq-rag-api/pkg/logger"
	"faq-rag-api/pkg/metrics"
)

// MessageFlagger 消息复核标记
type MessageFlagger interface {
	SetFlagged(ctx context.Context, id string, flagged bool) error
}

// Handler 对话事件处理器
type Handler struct {
	flagger MessageFlagger
}

// NewHandler 创建事件处理器；flagger 为 nil 时只记录指标
func NewHandler(flagger MessageFlagger) *Handler {
	return &Handler{flagger: flagger}
}

// Register 在消费者上注册全部事件类型
func (h *Handler) Register(c *messaging.Consumer) {
	c.Handle(messaging.TypeTurnCompleted, h.HandleTurnCompleted)
	c.Handle(messaging.TypeFeedbackRecorded, h.HandleFeedbackRecorded)
}

// HandleTurnCompleted 记录轮次指标
func (h *Handler) HandleTurnCompleted(ctx context.Context, msg *messaging.Message) error {
	var ev messaging.TurnCompletedEvent
	if err := msg.UnmarshalPayload(&ev); err != nil {
		return err
	}

	metrics.TurnEventsTotal.WithLabelValues(ev.Intent, ev.AnswerType, ev.AbstainReason).Inc()
	if ev.LatencyMs > 0 {
		metrics.TurnEventLatency.WithLabelValues(ev.AnswerType).Observe(ev.LatencyMs / 1000)
	}
	if ev.TokensIn != nil {
		metrics.TurnEventTokens.WithLabelValues(ev.ModelProvider, ev.ModelUsed, "prompt").Add(float64(*ev.TokensIn))
	}
	if ev.TokensOut != nil {
		metrics.TurnEventTokens.WithLabelValues(ev.ModelProvider, ev.ModelUsed, "completion").Add(float64(*ev.TokensOut))
	}

	fields := []any{
		"session_id", ev.SessionID,
		"message_id", ev.MessageID,
		"intent", ev.Intent,
		"answer_type", ev.AnswerType,
		"latency_ms", ev.LatencyMs,
		"kept_hits", ev.KeptHits,
	}
	if ev.AbstainReason != "" {
		fields = append(fields, "abstain_reason", ev.AbstainReason)
	}
	if ev.VerificationConfidence != nil {
		fields = append(fields, "verification_confidence", *ev.VerificationConfidence)
	}
	logger.Info(ctx, "chat turn completed", fields...)
	return nil
}

// HandleFeedbackRecorded 差评标记复核，改评后撤销标记
func (h *Handler) HandleFeedbackRecorded(ctx context.Context, msg *messaging.Message) error {
	var ev messaging.FeedbackRecordedEvent
	if err := msg.UnmarshalPayload(&ev); err != nil {
		return err
	}
	metrics.FeedbackEventsTotal.WithLabelValues(strconv.Itoa(ev.Value)).Inc()

	if h.flagger == nil || ev.MessageID == "" {
		return nil
	}
	flagged := ev.Value < 0
	if err := h.flagger.SetFlagged(ctx, ev.MessageID, flagged); err != nil {
		return err
	}
	if flagged {
		metrics.MessagesFlaggedTotal.Inc()
		logger.Info(ctx, "assistant message flagged for review",
			"session_id", ev.SessionID,
			"message_id", ev.MessageID,
		)
	}
	return nil
}
