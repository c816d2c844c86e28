package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"faq-rag-api/internal/application/rag"
	"faq-rag-api/pkg/logger"
	"faq-rag-api/pkg/metrics"
)

const (
	defaultTopK = 5
	maxTopK     = 50
)

// EngineConfig 检索引擎配置
type EngineConfig struct {
	Namespace string
	// MinScore 大于 0 时过滤低分命中
	MinScore float64
	// CacheTTL 为 0 时不使用缓存
	CacheTTL time.Duration
}

// Engine 基于向量库的 FAQ 检索
type Engine struct {
	embedder embedding.Embedder
	vector   VectorRepository
	cache    SearchCache
	cfg      EngineConfig
}

// NewEngine 创建检索引擎；cache 可为 nil
func NewEngine(embedder embedding.Embedder, vectorRepo VectorRepository, cache SearchCache, cfg EngineConfig) *Engine {
	return &Engine{
		embedder: embedder,
		vector:   vectorRepo,
		cache:    cache,
		cfg:      cfg,
	}
}

func (e *Engine) Enabled() bool {
	return e != nil && e.embedder != nil && e.vector != nil
}

// Search 实现 rag.Searcher
func (e *Engine) Search(ctx context.Context, query string, topK int) (*rag.SearchResult, error) {
	if !e.Enabled() {
		return nil, ErrVectorDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return &rag.SearchResult{}, nil
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	if e.cache == nil || e.cfg.CacheTTL <= 0 {
		return e.search(ctx, query, topK)
	}

	key := e.cache.SearchKey(e.cfg.Namespace, topK, query)
	raw, err := e.cache.LoadThrough(ctx, key, e.cfg.CacheTTL, func(ctx context.Context) (any, error) {
		return e.search(ctx, query, topK)
	})
	if err != nil {
		if !errors.Is(err, ErrCacheUnavailable) {
			return nil, err
		}
		logger.Warn(ctx, "search cache unavailable, querying vector store directly", "error", err.Error())
		return e.search(ctx, query, topK)
	}

	var out rag.SearchResult
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.Warn(ctx, "failed to decode cached search result", "key", key, "error", err.Error())
		return e.search(ctx, query, topK)
	}
	return &out, nil
}

func (e *Engine) search(ctx context.Context, query string, topK int) (*rag.SearchResult, error) {
	start := time.Now()
	defer func() {
		metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	}()

	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := e.vector.SearchChunks(ctx, &VectorSearchParams{
		Namespace:   e.cfg.Namespace,
		QueryVector: vec,
		TopK:        topK,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	out := &rag.SearchResult{Hits: make([]rag.Hit, 0, len(results))}
	for _, r := range results {
		if r == nil {
			continue
		}
		score := float64(r.Score)
		if e.cfg.MinScore > 0 && score < e.cfg.MinScore {
			continue
		}
		out.Hits = append(out.Hits, rag.Hit{
			ID:    r.ID,
			Score: &score,
			Fields: map[string]any{
				"text":     r.Text,
				"category": r.Category,
				"question": r.Question,
				"doc_id":   r.DocID,
				"source":   r.Source,
			},
		})
		if score > 0 && (out.BestScore == nil || score > *out.BestScore) {
			best := score
			out.BestScore = &best
		}
	}

	logger.Debug(ctx, "faq retrieval completed",
		"namespace", e.cfg.Namespace,
		"top_k", topK,
		"hits", len(out.Hits),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	v64, err := e.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(v64) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return toFloat32(v64[0]), nil
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, x := range vec {
		out[i] = float32(x)
	}
	return out
}
