package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"faq-rag-api/pkg/logger"
	"faq-rag-api/pkg/metrics"
)

const (
	defaultChunkSizeRunes    = 1200
	defaultChunkOverlapRunes = 120
	defaultEmbeddingBatch    = 32
	maxEmbeddingConcurrency  = 4
)

// chunkNamespace 用于生成确定性分片 ID
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("faq-rag-api/chunks"))

// IndexerConfig 入库配置
type IndexerConfig struct {
	Namespace          string
	EmbeddingBatchSize int
	ChunkSizeRunes     int
	ChunkOverlapRunes  int
}

// Indexer 将 FAQ 文档切片、向量化并写入向量库
type Indexer struct {
	embedder embedding.Embedder
	vector   VectorRepository
	cache    SearchCache
	cfg      IndexerConfig
}

// NewIndexer 创建入库器；cache 可为 nil
func NewIndexer(embedder embedding.Embedder, vectorRepo VectorRepository, cache SearchCache, cfg IndexerConfig) *Indexer {
	if cfg.EmbeddingBatchSize <= 0 {
		cfg.EmbeddingBatchSize = defaultEmbeddingBatch
	}
	if cfg.ChunkSizeRunes <= 0 {
		cfg.ChunkSizeRunes = defaultChunkSizeRunes
	}
	if cfg.ChunkOverlapRunes < 0 || cfg.ChunkOverlapRunes >= cfg.ChunkSizeRunes {
		cfg.ChunkOverlapRunes = defaultChunkOverlapRunes
	}
	return &Indexer{
		embedder: embedder,
		vector:   vectorRepo,
		cache:    cache,
		cfg:      cfg,
	}
}

func (i *Indexer) Enabled() bool {
	return i != nil && i.embedder != nil && i.vector != nil
}

// IndexSource 替换某个来源文件的全部分片
func (i *Indexer) IndexSource(ctx context.Context, source string, docs []FAQDocument) (*IndexStats, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("source is required")
	}
	if !i.Enabled() {
		return nil, ErrVectorDisabled
	}
	if err := i.vector.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	stats := &IndexStats{Source: source}
	chunks, inputs := i.buildChunks(source, docs, stats)

	if len(chunks) > 0 {
		vectors, err := i.embedBatch(ctx, inputs)
		if err != nil {
			metrics.IngestChunksTotal.WithLabelValues(source, "failed").Add(float64(len(chunks)))
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		for idx := range chunks {
			chunks[idx].Vector = vectors[idx]
		}
	}

	// 向量化成功后再替换：文件中已删除的问答不能残留
	if err := i.vector.DeleteChunksBySource(ctx, i.cfg.Namespace, source); err != nil {
		return nil, fmt.Errorf("delete previous chunks: %w", err)
	}
	if len(chunks) > 0 {
		if err := i.vector.InsertChunks(ctx, i.cfg.Namespace, chunks); err != nil {
			metrics.IngestChunksTotal.WithLabelValues(source, "failed").Add(float64(len(chunks)))
			return nil, fmt.Errorf("insert chunks: %w", err)
		}
		metrics.IngestChunksTotal.WithLabelValues(source, "success").Add(float64(len(chunks)))
	}
	stats.Chunks = len(chunks)

	i.invalidateCache(ctx)
	logger.Info(ctx, "faq source indexed",
		"source", source,
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// RemoveSource 删除某个来源文件的全部分片
func (i *Indexer) RemoveSource(ctx context.Context, source string) error {
	if !i.Enabled() {
		return ErrVectorDisabled
	}
	if err := i.vector.DeleteChunksBySource(ctx, i.cfg.Namespace, source); err != nil {
		return err
	}
	i.invalidateCache(ctx)
	logger.Info(ctx, "faq source removed", "source", source)
	return nil
}

// RemoveDocuments 按文档 ID 删除分片
func (i *Indexer) RemoveDocuments(ctx context.Context, docIDs []string) error {
	if !i.Enabled() {
		return ErrVectorDisabled
	}
	if len(docIDs) == 0 {
		return nil
	}
	if err := i.vector.DeleteChunksByDoc(ctx, i.cfg.Namespace, docIDs); err != nil {
		return err
	}
	i.invalidateCache(ctx)
	return nil
}

func (i *Indexer) buildChunks(source string, docs []FAQDocument, stats *IndexStats) ([]*VectorChunk, []string) {
	chunks := make([]*VectorChunk, 0, len(docs))
	inputs := make([]string, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))

	for _, doc := range docs {
		q := strings.TrimSpace(doc.Question)
		a := strings.TrimSpace(doc.Answer)
		if q == "" || a == "" {
			stats.Skipped++
			continue
		}
		docID := strings.TrimSpace(doc.ID)
		if docID == "" {
			docID = DocumentID(q)
		}
		if _, dup := seen[docID]; dup {
			stats.Skipped++
			continue
		}
		seen[docID] = struct{}{}
		stats.Documents++

		category := strings.TrimSpace(doc.Category)
		if category == "" {
			category = "general"
		}
		for idx, part := range splitByRunes(a, i.cfg.ChunkSizeRunes, i.cfg.ChunkOverlapRunes) {
			text := "Q: " + q + "\nA: " + part
			chunks = append(chunks, &VectorChunk{
				ID:       chunkID(docID, idx),
				DocID:    docID,
				Category: category,
				Question: q,
				Text:     text,
				Source:   source,
			})
			inputs = append(inputs, text)
		}
	}
	return chunks, inputs
}

// embedBatch 分批并发向量化，输出顺序与输入一致
func (i *Indexer) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxEmbeddingConcurrency)

	for start := 0; start < len(texts); start += i.cfg.EmbeddingBatchSize {
		start := start
		end := start + i.cfg.EmbeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			v64, err := i.embedder.EmbedStrings(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(v64) != end-start {
				return fmt.Errorf("embedding count mismatch: got %d, want %d", len(v64), end-start)
			}
			for k, vec := range v64 {
				out[start+k] = toFloat32(vec)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (i *Indexer) invalidateCache(ctx context.Context) {
	if i.cache == nil {
		return
	}
	if err := i.cache.InvalidateSearch(ctx, i.cfg.Namespace); err != nil {
		logger.Warn(ctx, "failed to invalidate search cache", "namespace", i.cfg.Namespace, "error", err.Error())
	}
}

// DocumentID 未显式给出 id 时由问题文本派生
func DocumentID(question string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(question), " "))
	return "faq-" + uuid.NewSHA1(chunkNamespace, []byte(norm)).String()[:13]
}

func chunkID(docID string, idx int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d", docID, idx))).String()
}
