package entity

import (
	"encoding/json"
	"time"
)

// Role 消息发送方
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AnswerType 助手消息的回答类型
type AnswerType string

const (
	AnswerTypeGrounded  AnswerType = "grounded"
	AnswerTypeAbstained AnswerType = "abstained"
	AnswerTypeFallback  AnswerType = "fallback"
)

// Message 会话中的一条消息；检索相关字段只在助手消息上出现
type Message struct {
	ID              string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionID   string          `json:"chat_session_id" gorm:"type:uuid;index;not null"`
	Role            Role            `json:"role" gorm:"type:varchar(20);index;not null"`
	Content         string          `json:"content" gorm:"type:text;not null"`
	Sources         json.RawMessage `json:"sources,omitempty" gorm:"type:jsonb"`
	RetrievalParams json.RawMessage `json:"retrieval_params,omitempty" gorm:"type:jsonb"`
	RetrievalStats  json.RawMessage `json:"retrieval_stats,omitempty" gorm:"type:jsonb"`
	ContextPolicy   json.RawMessage `json:"context_policy,omitempty" gorm:"type:jsonb"`
	AnswerType      *AnswerType     `json:"answer_type,omitempty" gorm:"type:varchar(20);index"`
	ErrorType       *string         `json:"error_type,omitempty" gorm:"type:varchar(50)"`
	Citations       json.RawMessage `json:"citations,omitempty" gorm:"type:jsonb"`
	ModelUsed       *string         `json:"model_used,omitempty" gorm:"type:varchar(80)"`
	ModelProvider   *string         `json:"model_provider,omitempty" gorm:"type:varchar(40)"`
	TokensIn        *int            `json:"tokens_in,omitempty"`
	TokensOut       *int            `json:"tokens_out,omitempty"`
	TokensUsed      *int            `json:"tokens_used,omitempty"`
	LatencyMs       *float64        `json:"latency_ms,omitempty"`
	RetrievalScore  *float64        `json:"retrieval_score,omitempty"`
	UserFeedback    *int            `json:"user_feedback,omitempty"`
	Flagged         bool            `json:"flagged" gorm:"not null;default:false"`
	CreatedAt       time.Time       `json:"created_at" gorm:"autoCreateTime;index"`
}

func (Message) TableName() string {
	return "messages"
}

// NewUserMessage 创建用户消息
func NewUserMessage(sessionID, content string) *Message {
	return &Message{
		ChatSessionID: sessionID,
		Role:          RoleUser,
		Content:       content,
		CreatedAt:     time.Now(),
	}
}

// NewAssistantMessage 创建助手消息；TokensUsed 在任一计数存在时取二者之和
func NewAssistantMessage(sessionID, content string, answerType AnswerType, tokensIn, tokensOut *int) *Message {
	at := answerType
	m := &Message{
		ChatSessionID: sessionID,
		Role:          RoleAssistant,
		Content:       content,
		AnswerType:    &at,
		TokensIn:      tokensIn,
		TokensOut:     tokensOut,
		CreatedAt:     time.Now(),
	}
	if tokensIn != nil || tokensOut != nil {
		total := 0
		if tokensIn != nil {
			total += *tokensIn
		}
		if tokensOut != nil {
			total += *tokensOut
		}
		m.TokensUsed = &total
	}
	return m
}

// IsAssistant 是否为助手消息
func (m *Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// ValidFeedback 反馈值只允许 -1/0/1
func ValidFeedback(v int) bool {
	return v >= -1 && v <= 1
}
