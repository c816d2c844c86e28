package rag

import "context"

// Searcher 向量检索协作方
type Searcher interface {
	Search(ctx context.Context, query string, topK int) (*SearchResult, error)
}

// Generator 文本生成协作方；传输或提供商错误必须返回 error
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (*Generation, error)
}

// IntentLLM 低置信度时的意图分类兜底
type IntentLLM interface {
	ClassifyIntent(ctx context.Context, text string, history []Turn) (string, error)
}

// AssistantMessage 待持久化的助手消息
type AssistantMessage struct {
	SessionID       string
	Content         string
	Sources         []EvidenceItem
	RetrievalParams *RetrievalParams
	RetrievalStats  any
	ContextPolicy   *ContextPolicy
	AnswerType      AnswerType
	ErrorType       string
	Citations       []int
	ModelProvider   string
	ModelUsed       string
	TokensIn        *int
	TokensOut       *int
	LatencyMs       float64
	RetrievalScore  *float64
}

// MessageStore 持久化协作方
type MessageStore interface {
	CreateUserMessage(ctx context.Context, sessionID, content string) (string, error)
	CreateAssistantMessage(ctx context.Context, msg *AssistantMessage) (string, error)
}

// HistoryReader 读取最近的对话历史（按时间正序）
type HistoryReader interface {
	RecentHistory(ctx context.Context, sessionID string, limit int) ([]Turn, error)
}
