// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	defaultSessionTitle = "New chat"
	sessionTitleMax     = 60
	sessionTitleMinCut  = 30
)

// ChatSession 一次对话会话
type ChatSession struct {
	ID                    string     `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title                 *string    `json:"title,omitempty" gorm:"type:varchar(255)"`
	SummaryText           *string    `json:"summary_text,omitempty" gorm:"type:text"`
	IsActive              bool       `json:"is_active" gorm:"not null;default:true;index"`
	MessageCount          int        `json:"message_count" gorm:"not null;default:0"`
	AssistantMessageCount int        `json:"assistant_message_count" gorm:"not null;default:0"`
	LastMessageAt         time.Time  `json:"last_message_at" gorm:"not null;index"`
	EndedAt               *time.Time `json:"ended_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt             time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// NewChatSession 创建会话；title 为空时留待首条消息自动命名
func NewChatSession(title string) *ChatSession {
	now := time.Now()
	s := &ChatSession{
		IsActive:      true,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if t := strings.TrimSpace(title); t != "" {
		s.Title = &t
	}
	return s
}

// HasTitle 会话是否已有标题
func (s *ChatSession) HasTitle() bool {
	return s.Title != nil && strings.TrimSpace(*s.Title) != ""
}

// End 结束会话
func (s *ChatSession) End(at time.Time) {
	s.IsActive = false
	s.EndedAt = &at
}

// Touch 记录一条新消息
func (s *ChatSession) Touch(role Role, at time.Time) {
	s.MessageCount++
	if role == RoleAssistant {
		s.AssistantMessageCount++
	}
	s.LastMessageAt = at
}

// TitleFromMessage 由首条用户消息生成会话标题
func TitleFromMessage(text string) string {
	candidate := strings.Join(strings.Fields(text), " ")
	if candidate == "" {
		return defaultSessionTitle
	}
	if utf8.RuneCountInString(candidate) > sessionTitleMax {
		head := []rune(candidate)[:sessionTitleMax]
		candidate = string(head)
		if cut := strings.LastIndex(candidate, " "); cut >= sessionTitleMinCut {
			candidate = candidate[:cut]
		}
	}
	r, size := utf8.DecodeRuneInString(candidate)
	return string(unicode.ToUpper(r)) + candidate[size:]
}
