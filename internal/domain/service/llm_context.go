// Package service 跨层共享的 LLM 调用上下文
package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow llmCtxKey = "llm_workflow"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
	llmCtxKeyModel    llmCtxKey = "llm_model"
)

// 工作流名称，作为 LLM 指标的 workflow 标签
const (
	WorkflowRAGAnswer      = "rag_answer"
	WorkflowIntentClassify = "intent_classify"
)

const unknown = "unknown"

// WithLLMCall 在 ctx 中标记本次调用所属的工作流、提供商与模型
func WithLLMCall(ctx context.Context, workflow, provider, model string) context.Context {
	if ctx == nil {
		return nil
	}
	if w := strings.TrimSpace(workflow); w != "" {
		ctx = context.WithValue(ctx, llmCtxKeyWorkflow, w)
	}
	if p := strings.TrimSpace(provider); p != "" {
		ctx = context.WithValue(ctx, llmCtxKeyProvider, p)
	}
	if m := strings.TrimSpace(model); m != "" {
		ctx = context.WithValue(ctx, llmCtxKeyModel, m)
	}
	return ctx
}

func WorkflowFromContext(ctx context.Context) string {
	return valueOrUnknown(ctx, llmCtxKeyWorkflow)
}

func ProviderFromContext(ctx context.Context) string {
	return valueOrUnknown(ctx, llmCtxKeyProvider)
}

func ModelFromContext(ctx context.Context) string {
	return valueOrUnknown(ctx, llmCtxKeyModel)
}

func valueOrUnknown(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return unknown
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}
