package rag

import "strings"

const abstainPrefix = "I don't have enough grounded detail in the FAQs to answer precisely. "

// AbstainMessage 生成拒答文案与一条澄清追问
func AbstainMessage(userText string) (string, []string) {
	low := strings.ToLower(userText)

	var q string
	switch {
	case strings.Contains(low, "password"):
		q = "Do you want to change your password while logged in, or reset it if you've forgotten it?"
	case strings.Contains(low, "freeze") || strings.Contains(low, "lock"):
		q = "Do you mean temporarily lock your account in the app, or request a full account suspension?"
	case strings.Contains(low, "fee") || strings.Contains(low, "charge"):
		q = "Which service are you asking about: instant transfers, international transfers, or card withdrawals?"
	case containsAny(low, "cancel", "reverse", "declined", "failed"):
		q = "Is this about canceling a payment you sent, or a transfer that was declined/failed?"
	default:
		q = "Could you share a bit more detail so I can find the exact policy (e.g., transfer type or feature)?"
	}
	return abstainPrefix + q, []string{q}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
