package rag

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"faq-rag-api/pkg/logger"
	"faq-rag-api/pkg/metrics"
	"faq-rag-api/pkg/tracer"
)

const (
	llmUnavailableMessage = "I couldn't reach the model just now. Please try again later, " +
		"or ask about account setup, payments, security, or regulations."

	dedupeByRoot      = "by_root"
	orderScoreThenCat = "score_then_category"
)

// Config 编排器的检索与判定参数
type Config struct {
	TopK             int
	MinScore         float64
	MaxContextChars  int
	AbstainThreshold float64

	IndexName  string
	Namespace  string
	EmbedModel string

	// 生成结果缺少提供商信息时使用
	ModelProvider string
	ModelName     string

	Ranking RankWeights
}

// DefaultConfig 返回默认参数
func DefaultConfig() Config {
	return Config{
		TopK:             17,
		MinScore:         0,
		MaxContextChars:  DefaultMaxContextChars,
		AbstainThreshold: 0.55,
		Namespace:        DefaultNamespace,
		ModelProvider:    "openai",
		Ranking:          DefaultRankWeights(),
	}
}

// TurnInput 一轮问答的输入；Query 为改写后的检索查询，UserText 为原文
type TurnInput struct {
	SessionID        string
	UserText         string
	Query            string
	CategoryHint     string
	IntentConfidence float64
}

// Orchestrator 串联检索、重排、打包、生成与校验，并做拒答判定
type Orchestrator struct {
	searcher  Searcher
	generator Generator
	store     MessageStore
	ranker    *Ranker
	cfg       Config
}

// NewOrchestrator 创建编排器
func NewOrchestrator(searcher Searcher, generator Generator, store MessageStore, cfg Config) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 17
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultMaxContextChars
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	return &Orchestrator{
		searcher:  searcher,
		generator: generator,
		store:     store,
		ranker:    NewRanker(cfg.Ranking),
		cfg:       cfg,
	}
}

// HandleTurn 处理一轮问答；外部协作方失败时降级为拒答，只有持久化失败会返回 error
func (o *Orchestrator) HandleTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	ctx, span := tracer.Start(ctx, "rag.HandleTurn")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", in.SessionID))

	start := time.Now()
	query := in.Query
	if query == "" {
		query = in.UserText
	}

	if _, err := o.store.CreateUserMessage(ctx, in.SessionID, in.UserText); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	// 检索
	t0 := time.Now()
	var (
		hits      []Hit
		best      *float64
		searchErr error
	)
	res, err := o.searcher.Search(ctx, query, o.cfg.TopK)
	if err != nil {
		searchErr = err
		span.RecordError(err)
		logger.Warn(ctx, "vector search failed, abstaining",
			"session_id", in.SessionID,
			"error", err.Error(),
		)
	} else if res != nil {
		hits, best = res.Hits, res.BestScore
	}
	retrievalMs := msSince(t0)

	// 归一化与重排
	rawSources := Normalize(hits, EvidenceMeta{
		IndexName: o.cfg.IndexName,
		Namespace: o.cfg.Namespace,
		ModelName: o.cfg.EmbedModel,
	})
	ranked := o.ranker.Rerank(query, hits, rawSources, in.CategoryHint, in.IntentConfidence)
	sources := o.ranker.Diversify(ranked, o.ranker.TopN(len(ranked)))
	span.SetAttributes(
		attribute.Int("rag.n_hits", len(hits)),
		attribute.Int("rag.kept_hits", len(sources)),
	)

	params := &RetrievalParams{
		TopK:       o.cfg.TopK,
		MinScore:   o.cfg.MinScore,
		Namespace:  o.cfg.Namespace,
		IndexName:  o.cfg.IndexName,
		EmbedModel: o.cfg.EmbedModel,
	}
	policy := &ContextPolicy{MaxChars: o.cfg.MaxContextChars, Dedupe: dedupeByRoot, Order: orderScoreThenCat}
	retrievalScore := clampedScore(best)
	zero := 0

	if len(sources) == 0 {
		reason := AbstainNoDiverseSources
		if searchErr != nil {
			reason = AbstainSearchError
		}
		content, followups := AbstainMessage(in.UserText)
		audit := rawSources[:min(3, len(rawSources))]
		msgID, err := o.persistAssistant(ctx, &AssistantMessage{
			SessionID:       in.SessionID,
			Content:         content,
			Sources:         audit,
			RetrievalParams: params,
			RetrievalStats: RetrievalStats{
				BestScore:   best,
				KeptHits:    len(rawSources),
				NHits:       len(hits),
				RetrievalMs: retrievalMs,
			},
			ContextPolicy:  policy,
			AnswerType:     AnswerAbstained,
			ModelProvider:  o.cfg.ModelProvider,
			ModelUsed:      o.cfg.ModelName,
			TokensIn:       &zero,
			TokensOut:      &zero,
			LatencyMs:      retrievalMs,
			RetrievalScore: retrievalScore,
		})
		if err != nil {
			return nil, err
		}
		o.observe(AnswerAbstained, reason, start)
		return &TurnResult{
			Answer:     content,
			AnswerType: AnswerAbstained,
			MessageID:  msgID,
			SessionID:  in.SessionID,
			Sources:    audit,
			Metrics: map[string]any{
				"abstain_reason":      reason,
				"suggested_followups": followups,
			},
		}, nil
	}

	// 生成
	contextText := PackContext(sources, hits, o.cfg.MaxContextChars)
	gen, genErr := o.generate(ctx, contextText, in.UserText)
	if genErr != nil {
		span.RecordError(genErr)
		logger.Error(ctx, "answer generation failed", genErr, "session_id", in.SessionID)
		msgID, err := o.persistAssistant(ctx, &AssistantMessage{
			SessionID:       in.SessionID,
			Content:         llmUnavailableMessage,
			Sources:         sources,
			RetrievalParams: params,
			RetrievalStats: RetrievalStats{
				BestScore:   best,
				KeptHits:    len(sources),
				NHits:       len(hits),
				RetrievalMs: retrievalMs,
			},
			ContextPolicy:  policy,
			AnswerType:     AnswerAbstained,
			ErrorType:      ErrorTypeLLM,
			ModelProvider:  o.cfg.ModelProvider,
			ModelUsed:      o.cfg.ModelName,
			TokensIn:       &zero,
			TokensOut:      &zero,
			LatencyMs:      retrievalMs,
			RetrievalScore: retrievalScore,
		})
		if err != nil {
			return nil, err
		}
		o.observe(AnswerAbstained, AbstainLLMError, start)
		return &TurnResult{
			Answer:     llmUnavailableMessage,
			AnswerType: AnswerAbstained,
			MessageID:  msgID,
			SessionID:  in.SessionID,
			Sources:    sources,
			Metrics:    map[string]any{"abstain_reason": AbstainLLMError},
		}, nil
	}

	// 校验
	latencyTotal := retrievalMs + gen.LatencyMs
	verify := Verify(gen.Text, sources, in.UserText)
	metrics.VerificationConfidence.Observe(verify.Confidence)

	answerType := AnswerGrounded
	finalText := gen.Text
	var (
		citations []int
		followups []string
	)
	if verify.Confidence >= o.cfg.AbstainThreshold {
		citations = CitedRanks(finalText)
	} else {
		answerType = AnswerAbstained
		finalText, followups = AbstainMessage(in.UserText)
	}

	provider, model := gen.Provider, gen.Model
	if provider == "" {
		provider = o.cfg.ModelProvider
	}
	if model == "" {
		model = o.cfg.ModelName
	}

	msgID, err := o.persistAssistant(ctx, &AssistantMessage{
		SessionID:       in.SessionID,
		Content:         finalText,
		Sources:         sources,
		RetrievalParams: params,
		RetrievalStats: RetrievalStats{
			BestScore:   best,
			KeptHits:    len(sources),
			NHits:       len(hits),
			RetrievalMs: retrievalMs,
			TokensIn:    gen.TokensIn,
			TokensOut:   gen.TokensOut,
		},
		ContextPolicy:  policy,
		AnswerType:     answerType,
		Citations:      citations,
		ModelProvider:  provider,
		ModelUsed:      model,
		TokensIn:       gen.TokensIn,
		TokensOut:      gen.TokensOut,
		LatencyMs:      latencyTotal,
		RetrievalScore: retrievalScore,
	})
	if err != nil {
		return nil, err
	}

	turnMetrics := map[string]any{
		"best_score":          best,
		"kept_hits":           len(sources),
		"n_hits":              len(hits),
		"retrieval_ms":        retrievalMs,
		"tokens_in":           gen.TokensIn,
		"tokens_out":          gen.TokensOut,
		"latency_ms":          latencyTotal,
		"context_chunks_used": len(sources),
		"verification":        verify,
		"model_provider":      provider,
		"model_used":          model,
	}
	reason := ""
	if answerType == AnswerAbstained {
		reason = AbstainLowConfidence
		turnMetrics["abstain_reason"] = reason
		turnMetrics["suggested_followups"] = followups
	}
	o.observe(answerType, reason, start)

	logger.Info(ctx, "rag turn completed",
		"session_id", in.SessionID,
		"answer_type", string(answerType),
		"kept_hits", len(sources),
		"confidence", verify.Confidence,
		"latency_ms", latencyTotal,
	)

	return &TurnResult{
		Answer:     finalText,
		AnswerType: answerType,
		MessageID:  msgID,
		SessionID:  in.SessionID,
		Sources:    sources,
		Metrics:    turnMetrics,
	}, nil
}

func (o *Orchestrator) generate(ctx context.Context, contextText, userText string) (*Generation, error) {
	system, user, err := BuildAnswerPrompt(ctx, contextText, userText)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}
	gen, err := o.generator.Generate(ctx, system, user)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, fmt.Errorf("generator returned no result")
	}
	return gen, nil
}

// persistAssistant 即使请求已取消也要落库，保证轮次完整
func (o *Orchestrator) persistAssistant(ctx context.Context, msg *AssistantMessage) (string, error) {
	id, err := o.store.CreateAssistantMessage(context.WithoutCancel(ctx), msg)
	if err != nil {
		tracer.SpanFromContext(ctx).RecordError(err)
		return "", fmt.Errorf("persist assistant message: %w", err)
	}
	return id, nil
}

func (o *Orchestrator) observe(answerType AnswerType, reason string, start time.Time) {
	metrics.ChatTurnsTotal.WithLabelValues(string(answerType)).Inc()
	metrics.ChatTurnDuration.WithLabelValues(string(answerType)).Observe(time.Since(start).Seconds())
	if reason != "" {
		metrics.AbstentionsTotal.WithLabelValues(reason).Inc()
	}
}

func clampedScore(best *float64) *float64 {
	if best == nil {
		return nil
	}
	v := max(*best, 0)
	return &v
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
