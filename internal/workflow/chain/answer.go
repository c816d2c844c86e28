package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"faq-rag-api/internal/application/rag"
	"faq-rag-api/internal/domain/service"
	workflowport "faq-rag-api/internal/workflow/port"
)

// AnswerChain 生成带引用的回答，实现 rag.Generator
type AnswerChain struct {
	factory  workflowport.ChatModelFactory
	provider string
	runner   *runner
}

// NewAnswerChain provider 为空时使用默认提供商
func NewAnswerChain(factory workflowport.ChatModelFactory, provider string) *AnswerChain {
	return &AnswerChain{
		factory:  factory,
		provider: provider,
		runner:   newRunner(factory, "rag.answer.model"),
	}
}

func (c *AnswerChain) Generate(ctx context.Context, systemPrompt, userPrompt string) (*rag.Generation, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}

	provider, modelName := c.factory.Resolve(c.provider)
	ctx = service.WithLLMCall(ctx, service.WorkflowRAGAnswer, provider, modelName)

	start := time.Now()
	out, err := c.runner.invoke(ctx, provider, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	})
	if err != nil {
		return nil, err
	}

	gen := &rag.Generation{
		Text:      out.Content,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Provider:  provider,
		Model:     modelName,
	}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		in, completion := out.ResponseMeta.Usage.PromptTokens, out.ResponseMeta.Usage.CompletionTokens
		gen.TokensIn = &in
		gen.TokensOut = &completion
	}
	return gen, nil
}
