package chain

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faq-rag-api/internal/application/rag"
)

type fakeChatModel struct {
	mu    sync.Mutex
	reply *schema.Message
	err   error
	seen  [][]*schema.Message
	opts  *model.Options
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, input)
	m.opts = model.GetCommonOptions(&model.Options{}, opts...)
	if m.err != nil {
		return nil, m.err
	}
	return m.reply, nil
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

type fakeFactory struct {
	model *fakeChatModel
	gets  int
	err   error
}

func (f *fakeFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	return f.model, nil
}

func (f *fakeFactory) Resolve(name string) (string, string) {
	if name == "" {
		name = "openai"
	}
	return name, "gpt-4o-mini"
}

func TestAnswerChainGenerate(t *testing.T) {
	fm := &fakeChatModel{reply: &schema.Message{
		Role:    schema.Assistant,
		Content: "Upload your ID [1].",
		ResponseMeta: &schema.ResponseMeta{
			Usage: &schema.TokenUsage{PromptTokens: 120, CompletionTokens: 9},
		},
	}}
	f := &fakeFactory{model: fm}
	c := NewAnswerChain(f, "")

	gen, err := c.Generate(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "Upload your ID [1].", gen.Text)
	assert.Equal(t, "openai", gen.Provider)
	assert.Equal(t, "gpt-4o-mini", gen.Model)
	require.NotNil(t, gen.TokensIn)
	assert.Equal(t, 120, *gen.TokensIn)
	assert.Equal(t, 9, *gen.TokensOut)

	require.Len(t, fm.seen, 1)
	assert.Equal(t, schema.System, fm.seen[0][0].Role)
	assert.Equal(t, "user", fm.seen[0][1].Content)

	_, err = c.Generate(context.Background(), "system", "again")
	require.NoError(t, err)
	assert.Equal(t, 1, f.gets)
}

func TestAnswerChainErrors(t *testing.T) {
	boom := errors.New("rate limited")
	c := NewAnswerChain(&fakeFactory{model: &fakeChatModel{err: boom}}, "")
	_, err := c.Generate(context.Background(), "s", "u")
	assert.ErrorContains(t, err, "rate limited")

	c = NewAnswerChain(&fakeFactory{err: errors.New("provider x not found")}, "x")
	_, err = c.Generate(context.Background(), "s", "u")
	assert.Error(t, err)

	var nilChain *AnswerChain
	_, err = nilChain.Generate(context.Background(), "s", "u")
	assert.Error(t, err)
}

func TestIntentChainClassify(t *testing.T) {
	fm := &fakeChatModel{reply: &schema.Message{Role: schema.Assistant, Content: " Fintech_Question\n"}}
	c := NewIntentChain(&fakeFactory{model: fm}, "")

	history := []rag.Turn{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: strings.Repeat("a", 80)},
		{Role: "user", Content: "card fees"},
	}
	raw, err := c.ClassifyIntent(context.Background(), "and limits?", history)
	require.NoError(t, err)
	assert.Equal(t, " Fintech_Question\n", raw)

	require.Len(t, fm.seen, 1)
	user := fm.seen[0][1].Content
	assert.Equal(t, "Recent conversation context: "+strings.Repeat("a", 60)+" card fees\n\nUser input: and limits?\nCategory:", user)
	require.NotNil(t, fm.opts.Temperature)
	assert.InDelta(t, 0.1, *fm.opts.Temperature, 1e-6)
	require.NotNil(t, fm.opts.MaxTokens)
	assert.Equal(t, intentMaxTokens, *fm.opts.MaxTokens)
}

func TestHistoryBlock(t *testing.T) {
	assert.Equal(t, "", historyBlock(nil))
	assert.Equal(t, "Recent conversation context: 你好\n\n", historyBlock([]rag.Turn{{Role: "user", Content: "你好"}}))
}
