package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleFromMessage(t *testing.T) {
	long := "how do international   transfers work when the recipient bank is closed for holidays"
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "   ", "New chat"},
		{"capitalized", "what are the fees?", "What are the fees?"},
		{"collapses whitespace", "  reset\n my   password ", "Reset my password"},
		{"cuts at word boundary", long, "How do international transfers work when the recipient bank"},
		{"hard cut without late space", strings.Repeat("x", 70), "X" + strings.Repeat("x", 59)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TitleFromMessage(tc.in))
		})
	}
}

func TestChatSessionTouchAndEnd(t *testing.T) {
	s := NewChatSession("")
	assert.False(t, s.HasTitle())
	assert.True(t, s.IsActive)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.Touch(RoleUser, at)
	s.Touch(RoleAssistant, at)
	assert.Equal(t, 2, s.MessageCount)
	assert.Equal(t, 1, s.AssistantMessageCount)
	assert.Equal(t, at, s.LastMessageAt)

	s.End(at)
	assert.False(t, s.IsActive)
	require.NotNil(t, s.EndedAt)
}

func TestNewAssistantMessageTokensUsed(t *testing.T) {
	in := 10
	m := NewAssistantMessage("s", "hi", AnswerTypeGrounded, &in, nil)
	require.NotNil(t, m.TokensUsed)
	assert.Equal(t, 10, *m.TokensUsed)
	assert.True(t, m.IsAssistant())

	m = NewAssistantMessage("s", "hi", AnswerTypeFallback, nil, nil)
	assert.Nil(t, m.TokensUsed)
}

func TestValidFeedback(t *testing.T) {
	assert.True(t, ValidFeedback(-1))
	assert.True(t, ValidFeedback(0))
	assert.True(t, ValidFeedback(1))
	assert.False(t, ValidFeedback(2))
}

func TestComputeFeedbackRatio(t *testing.T) {
	a := &SessionAnalytics{PositiveFeedback: 3, NegativeFeedback: 1}
	a.ComputeFeedbackRatio()
	require.NotNil(t, a.FeedbackRatio)
	assert.InDelta(t, 0.75, *a.FeedbackRatio, 1e-9)

	empty := &SessionAnalytics{}
	empty.ComputeFeedbackRatio()
	assert.Nil(t, empty.FeedbackRatio)
}
