package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteQuery(t *testing.T) {
	cases := map[string]string{
		"How do I top up my wallet":      "How do I deposit my wallet",
		"Send money to a friend":         "transfer to a friend",
		"I can't login":                  "I login issues",
		"I cant login":                   "I login issues",
		"Are there charges for this?":    "Are there fee for this?",
		"How do I freeze my account":     "How do I lock account",
		"I canceled a payment yesterday": "I payment reversal yesterday",
		"reset password please":          "password reset please",
		"deposit limit":                  "deposit limit",
	}
	for in, want := range cases {
		assert.Equal(t, want, RewriteQuery(in), in)
	}
}

func TestRewriteQueryIsIdempotent(t *testing.T) {
	inputs := []string{
		"deposit limit",
		"how do I add money and take out cash",
		"receive money from abroad",
		"data protection and privacy costs",
		"blocked card on a frozen account",
	}
	for _, in := range inputs {
		once := RewriteQuery(in)
		assert.Equal(t, once, RewriteQuery(once), in)
	}
}

func TestBiasWithHistoryGuards(t *testing.T) {
	history := []Turn{{Role: "user", Content: "My card is not working"}}
	assert.Equal(t, "card it is blocked", biasWithHistory("it is blocked", history, 4))
	assert.Equal(t, "my card is blocked", biasWithHistory("my card is blocked", history, 4))
	assert.Equal(t, "it is blocked", biasWithHistory("it is blocked", nil, 4))
}
