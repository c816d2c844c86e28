package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"faq-rag-api/internal/application/rag"
	"faq-rag-api/internal/domain/service"
	workflowport "faq-rag-api/internal/workflow/port"
	workflowprompt "faq-rag-api/internal/workflow/prompt"
)

const (
	intentHistoryTurns = 2
	intentHistoryRunes = 60
	intentTemperature  = float32(0.1)
	intentMaxTokens    = 8
)

var intentPromptRegistry = workflowprompt.NewRegistry()

// IntentChain 低置信度时的 LLM 意图分类，实现 rag.IntentLLM
type IntentChain struct {
	factory  workflowport.ChatModelFactory
	provider string
	runner   *runner
}

func NewIntentChain(factory workflowport.ChatModelFactory, provider string) *IntentChain {
	return &IntentChain{
		factory:  factory,
		provider: provider,
		runner:   newRunner(factory, "intent.classify.model"),
	}
}

// ClassifyIntent 返回模型原始输出，由调用方解析标签
func (c *IntentChain) ClassifyIntent(ctx context.Context, text string, history []rag.Turn) (string, error) {
	if c == nil || c.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}

	provider, modelName := c.factory.Resolve(c.provider)
	ctx = service.WithLLMCall(ctx, service.WorkflowIntentClassify, provider, modelName)

	tpl, err := intentPromptRegistry.ChatTemplate(workflowprompt.PromptIntentClassifyV1)
	if err != nil {
		return "", err
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"history_block": historyBlock(history),
		"text":          text,
	})
	if err != nil {
		return "", err
	}

	out, err := c.runner.invoke(ctx, provider, msgs,
		model.WithTemperature(intentTemperature),
		model.WithMaxTokens(intentMaxTokens),
	)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// historyBlock 取最近两轮，每轮截断到 60 字符
func historyBlock(history []rag.Turn) string {
	if len(history) == 0 {
		return ""
	}
	recent := history
	if len(recent) > intentHistoryTurns {
		recent = recent[len(recent)-intentHistoryTurns:]
	}
	parts := make([]string, 0, len(recent))
	for _, t := range recent {
		r := []rune(t.Content)
		if len(r) > intentHistoryRunes {
			r = r[:intentHistoryRunes]
		}
		parts = append(parts, string(r))
	}
	return "Recent conversation context: " + strings.Join(parts, " ") + "\n\n"
}
