package messaging

// 对话事件类型
const (
	TypeTurnCompleted    = "chat.turn.completed"
	TypeFeedbackRecorded = "chat.feedback.recorded"
)

// TurnCompletedEvent 一轮问答落库后发布
type TurnCompletedEvent struct {
	SessionID              string   `json:"session_id"`
	MessageID              string   `json:"message_id"`
	Intent                 string   `json:"intent"`
	AnswerType             string   `json:"answer_type"`
	AbstainReason          string   `json:"abstain_reason,omitempty"`
	LatencyMs              float64  `json:"latency_ms"`
	VerificationConfidence *float64 `json:"verification_confidence,omitempty"`
	KeptHits               int      `json:"kept_hits"`
	TokensIn               *int     `json:"tokens_in,omitempty"`
	TokensOut              *int     `json:"tokens_out,omitempty"`
	ModelProvider          string   `json:"model_provider,omitempty"`
	ModelUsed              string   `json:"model_used,omitempty"`
}

// FeedbackRecordedEvent 用户对回答打分后发布
type FeedbackRecordedEvent struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Value     int    `json:"value"`
}
