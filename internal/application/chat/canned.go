package chat

import "faq-rag-api/internal/application/rag"

const (
	replyGreeting  = "Hey! I can help with account setup, payments & transfers, security, and regulations. What would you like to do?"
	replySmalltalk = "Got it! If you have a question about your account, payments, or security, I'm here to help."
	replyOffTopic  = "I specialize in our fintech FAQs. Try asking about account setup, payments and transfers, security, or regulations."
	replyNonsense  = "I didn't quite catch that. Could you ask a question about our financial services?"
)

// CannedReply 非检索路径的固定回复；未知意图按 nonsense 处理
func CannedReply(intent rag.Intent) string {
	switch intent {
	case rag.IntentGreeting:
		return replyGreeting
	case rag.IntentSmalltalk:
		return replySmalltalk
	case rag.IntentOffTopic:
		return replyOffTopic
	default:
		return replyNonsense
	}
}
