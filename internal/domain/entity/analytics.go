package entity

// SessionAnalytics 会话维度的统计
type SessionAnalytics struct {
	SessionID           string           `json:"session_id"`
	TotalMessages       int64            `json:"total_messages"`
	UserMessages        int64            `json:"user_messages"`
	AssistantMessages   int64            `json:"assistant_messages"`
	AvgLatencyMs        *float64         `json:"avg_latency_ms,omitempty"`
	TokensIn            int64            `json:"tokens_in"`
	TokensOut           int64            `json:"tokens_out"`
	TokensUsed          int64            `json:"tokens_used"`
	PositiveFeedback    int64            `json:"positive_feedback"`
	NegativeFeedback    int64            `json:"negative_feedback"`
	FeedbackRatio       *float64         `json:"feedback_ratio,omitempty"`
	AvgRetrievalScore   *float64         `json:"avg_retrieval_score,omitempty"`
	AnswerTypeBreakdown map[string]int64 `json:"answer_type_breakdown"`
}

// ComputeFeedbackRatio 正向反馈占全部有效反馈的比例
func (a *SessionAnalytics) ComputeFeedbackRatio() {
	total := a.PositiveFeedback + a.NegativeFeedback
	if total == 0 {
		a.FeedbackRatio = nil
		return
	}
	r := float64(a.PositiveFeedback) / float64(total)
	a.FeedbackRatio = &r
}
