// Package rag 实现 FAQ 检索增强问答核心：意图路由、证据归一化、重排去重、上下文打包、引用校验与拒答。
package rag

// Intent 用户轮次的路由意图
type Intent string

const (
	IntentFintechQuestion Intent = "fintech_question"
	IntentGreeting        Intent = "greeting"
	IntentSmalltalk       Intent = "smalltalk"
	IntentOffTopic        Intent = "off_topic"
	IntentNonsense        Intent = "nonsense"
)

// ParseIntent 将模型输出映射为意图，未知标签归为 off_topic
func ParseIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentFintechQuestion, IntentGreeting, IntentSmalltalk, IntentOffTopic, IntentNonsense:
		return Intent(s), true
	default:
		return IntentOffTopic, false
	}
}

// AnswerType 助手回复类型
type AnswerType string

const (
	AnswerGrounded  AnswerType = "grounded"
	AnswerAbstained AnswerType = "abstained"
	AnswerFallback  AnswerType = "fallback"
)

// 拒答原因
const (
	AbstainNoDiverseSources = "no_diverse_sources"
	AbstainSearchError      = "search_error"
	AbstainLLMError         = "llm_error"
	AbstainLowConfidence    = "low_confidence"
)

// ErrorTypeLLM 生成失败时写入消息的 error_type
const ErrorTypeLLM = "llm_error"

// Turn 一条历史消息
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IntentResult 意图分类结果
type IntentResult struct {
	Intent         Intent
	ProcessedQuery string
	Confidence     float64
	CategoryHint   string
	Signals        map[string]any
}

// Hit 向量检索返回的原始命中；Fields 至少包含 text 与 category
type Hit struct {
	ID     string
	Score  *float64
	Fields map[string]any
}

// Text 返回命中的正文，缺失时为空串
func (h Hit) Text() string {
	return fieldString(h.Fields, "text")
}

// Category 返回命中的分类，缺失时为空串
func (h Hit) Category() string {
	return fieldString(h.Fields, "category")
}

func fieldString(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

// SearchResult 检索结果；BestScore 为空表示没有正分
type SearchResult struct {
	Hits      []Hit
	BestScore *float64
}

// Generation 文本生成结果
type Generation struct {
	Text      string
	TokensIn  *int
	TokensOut *int
	LatencyMs float64
	Provider  string
	Model     string
}

// EvidenceItem 归一化后的证据（即引用来源）
type EvidenceItem struct {
	ID               string   `json:"id"`
	Category         *string  `json:"category,omitempty"`
	Score            *float64 `json:"score,omitempty"`
	Title            string   `json:"title"`
	Preview          string   `json:"preview"`
	ContentHash      *string  `json:"content_hash,omitempty"`
	Rank             int      `json:"rank"`
	ScoreNorm        *float64 `json:"score_norm,omitempty"`
	ConfidenceBucket *string  `json:"confidence_bucket,omitempty"`
	IndexName        string   `json:"index_name,omitempty"`
	Namespace        string   `json:"namespace,omitempty"`
	ModelName        string   `json:"model_name,omitempty"`
}

// RetrievalParams 本轮检索参数
type RetrievalParams struct {
	TopK       int     `json:"top_k"`
	MinScore   float64 `json:"min_score"`
	Namespace  string  `json:"namespace"`
	IndexName  string  `json:"index_name"`
	EmbedModel string  `json:"embed_model"`
}

// RetrievalStats 本轮检索观测值
type RetrievalStats struct {
	BestScore   *float64 `json:"best_score,omitempty"`
	KeptHits    int      `json:"kept_hits"`
	NHits       int      `json:"n_hits"`
	RetrievalMs float64  `json:"retrieval_ms"`
	TokensIn    *int     `json:"tokens_in,omitempty"`
	TokensOut   *int     `json:"tokens_out,omitempty"`
}

// ContextPolicy 上下文打包策略
type ContextPolicy struct {
	MaxChars int    `json:"max_chars"`
	Dedupe   string `json:"dedupe"`
	Order    string `json:"order"`
}

// Verification 答案校验结果
type Verification struct {
	Supported       float64 `json:"supported"`
	EvidenceDensity float64 `json:"evidence_density"`
	Coverage        float64 `json:"coverage"`
	Confidence      float64 `json:"confidence"`
}

// TurnResult 一轮问答返回给调用方的结果
type TurnResult struct {
	Answer     string         `json:"answer"`
	AnswerType AnswerType     `json:"answer_type"`
	MessageID  string         `json:"message_id"`
	SessionID  string         `json:"session_id"`
	Sources    []EvidenceItem `json:"sources"`
	Metrics    map[string]any `json:"metrics,omitempty"`
}
