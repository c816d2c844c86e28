package rag

import (
	"context"

	workflowprompt "faq-rag-api/internal/workflow/prompt"
)

var defaultPromptRegistry = workflowprompt.NewRegistry()

// BuildAnswerPrompt 渲染问答提示词；上下文片段标题中的 [n] 即引用编号
func BuildAnswerPrompt(ctx context.Context, contextText, userText string) (system string, user string, err error) {
	return defaultPromptRegistry.Render(ctx, workflowprompt.PromptRAGAnswerV1, map[string]any{
		"context":  contextText,
		"question": userText,
	})
}
