// Package chain 基于 Eino 编排的 LLM 调用链
package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	workflowport "faq-rag-api/internal/workflow/port"
)

type messagesRunnable = compose.Runnable[[]*schema.Message, *schema.Message]

// runner 按提供商缓存编译好的 messages -> ChatModel 链
type runner struct {
	factory  workflowport.ChatModelFactory
	nodeName string

	mu    sync.Mutex
	cache map[string]messagesRunnable
}

func newRunner(factory workflowport.ChatModelFactory, nodeName string) *runner {
	return &runner{
		factory:  factory,
		nodeName: nodeName,
		cache:    make(map[string]messagesRunnable),
	}
}

func (r *runner) get(ctx context.Context, provider string) (messagesRunnable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rn, ok := r.cache[provider]; ok {
		return rn, nil
	}

	chatModel, err := r.factory.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	c := compose.NewChain[[]*schema.Message, *schema.Message]()
	c.AppendChatModel(chatModel, compose.WithNodeName(r.nodeName))
	rn, err := c.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile %s chain: %w", r.nodeName, err)
	}
	r.cache[provider] = rn
	return rn, nil
}

func (r *runner) invoke(ctx context.Context, provider string, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	rn, err := r.get(ctx, provider)
	if err != nil {
		return nil, err
	}
	var callOpts []compose.Option
	if len(opts) > 0 {
		callOpts = append(callOpts, compose.WithChatModelOption(opts...))
	}
	out, err := rn.Invoke(ctx, msgs, callOpts...)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return out, nil
}
