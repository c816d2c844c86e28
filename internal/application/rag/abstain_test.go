package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAbstainMessage(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"I forgot my PASSWORD and want to lock things", "Do you want to change your password"},
		{"freeze my account", "Do you mean temporarily lock"},
		{"what are the fees", "Which service are you asking about"},
		{"any charges?", "Which service are you asking about"},
		{"my payment failed", "Is this about canceling a payment"},
		{"tell me more", "Could you share a bit more detail"},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			msg, followups := AbstainMessage(tc.text)
			assert.True(t, strings.HasPrefix(msg, "I don't have enough grounded detail in the FAQs to answer precisely. "))
			assert.Len(t, followups, 1)
			assert.True(t, strings.HasPrefix(followups[0], tc.want))
			assert.True(t, strings.HasSuffix(msg, followups[0]))
		})
	}
}
