package retrieval

import (
	"context"
	"time"
)

// VectorRepository 定义应用层对“向量存储/检索”的最小依赖（port）。
// 由基础设施层提供具体实现（例如 Milvus）。
type VectorRepository interface {
	EnsureCollection(ctx context.Context) error
	SearchChunks(ctx context.Context, params *VectorSearchParams) ([]*VectorSearchResult, error)
	DeleteChunksByDoc(ctx context.Context, namespace string, docIDs []string) error
	DeleteChunksBySource(ctx context.Context, namespace, source string) error
	InsertChunks(ctx context.Context, namespace string, chunks []*VectorChunk) error
}

type VectorSearchParams struct {
	Namespace   string
	QueryVector []float32
	TopK        int
	Category    string
}

type VectorSearchResult struct {
	ID       string
	Score    float32
	DocID    string
	Category string
	Question string
	Text     string
	Source   string
}

type VectorChunk struct {
	ID       string
	DocID    string
	Category string
	Question string
	Text     string
	Source   string
	Vector   []float32
}

// SearchCache 检索结果的读穿缓存（Redis 实现）。
// 缓存自身故障须包装 ErrCacheUnavailable；loader 的错误原样返回
type SearchCache interface {
	SearchKey(namespace string, topK int, query string) string
	LoadThrough(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, error)
	InvalidateSearch(ctx context.Context, namespace string) error
}
