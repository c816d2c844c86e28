// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"faq-rag-api/pkg/metrics"
)

// Repository FAQ 分片向量仓储
type Repository struct {
	client *Client
}

// NewRepository 创建向量检索仓储
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// SearchParams 检索参数
type SearchParams struct {
	Namespace   string
	QueryVector []float32
	TopK        int
	Category    string
}

// SearchResult 检索结果；Score 为 COSINE 相似度
type SearchResult struct {
	ID       string
	Score    float32
	DocID    string
	Category string
	Question string
	Text     string
	Source   string
}

func (r *Repository) ready() error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	return nil
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}
	collName := r.client.Collection()
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", collName)))
	defer span.End()

	if err := r.client.milvus.CreateCollection(ctx, FAQChunksSchema(collName, r.client.Dimension()), entity.DefaultShardNumber); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}
	collName := r.client.Collection()
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collName)))
	defer span.End()

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.cfg.HNSWM,
		r.client.cfg.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := r.client.milvus.CreateIndex(ctx, collName, fieldVector, idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// EnsureCollection 确保集合与索引可用（不存在则创建），不做破坏性操作
func (r *Repository) EnsureCollection(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}

	exists, err := r.client.milvus.HasCollection(ctx, r.client.Collection())
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		if err := r.CreateCollection(ctx); err != nil {
			return err
		}
		if err := r.CreateIndex(ctx); err != nil {
			return err
		}
	}

	return r.client.milvus.LoadCollection(ctx, r.client.Collection(), false)
}

// DropCollection 删除集合
func (r *Repository) DropCollection(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}
	collName := r.client.Collection()
	ctx, span := tracer.Start(ctx, "milvus.DropCollection",
		trace.WithAttributes(attribute.String("collection", collName)))
	defer span.End()

	exists, err := r.client.milvus.HasCollection(ctx, collName)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return nil
	}
	if err := r.client.milvus.DropCollection(ctx, collName); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// CountChunks 集合内的分片数量
func (r *Repository) CountChunks(ctx context.Context) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	stats, err := r.client.milvus.GetCollectionStatistics(ctx, r.client.Collection())
	if err != nil {
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}
	n, err := strconv.ParseInt(stats["row_count"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid row_count %q: %w", stats["row_count"], err)
	}
	return n, nil
}

func (r *Repository) ensurePartition(ctx context.Context, namespace string) (string, error) {
	collName := r.client.Collection()
	partitionName := PartitionName(namespace)
	has, err := r.client.milvus.HasPartition(ctx, collName, partitionName)
	if err != nil {
		return "", fmt.Errorf("failed to check partition: %w", err)
	}
	if !has {
		if err := r.client.milvus.CreatePartition(ctx, collName, partitionName); err != nil {
			return "", fmt.Errorf("failed to create partition: %w", err)
		}
	}
	return partitionName, nil
}

// SearchChunks 检索 FAQ 分片
func (r *Repository) SearchChunks(ctx context.Context, params *SearchParams) ([]*SearchResult, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	collName := r.client.Collection()
	ctx, span := tracer.Start(ctx, "milvus.SearchChunks",
		trace.WithAttributes(
			attribute.String("collection", collName),
			attribute.String("namespace", params.Namespace),
			attribute.Int("top_k", params.TopK),
		))
	defer span.End()

	start := time.Now()
	status := "success"
	defer func() {
		metrics.MilvusSearchDuration.WithLabelValues(collName).Observe(time.Since(start).Seconds())
		metrics.MilvusSearchTotal.WithLabelValues(collName, status).Inc()
	}()

	partitionName := PartitionName(params.Namespace)

	// 分区尚未创建（namespace 还没有入库）时直接返回空结果
	if has, err := r.client.milvus.HasPartition(ctx, collName, partitionName); err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check partition: %w", err)
	} else if !has {
		status = "empty"
		return []*SearchResult{}, nil
	}

	filter := ""
	if c := strings.TrimSpace(params.Category); c != "" {
		filter = fieldCategory + " == " + quote(c)
	}

	ef := r.client.cfg.SearchEf
	if ef < params.TopK {
		ef = max(params.TopK, 64)
	}
	sp, err := entity.NewIndexHNSWSearchParam(ef)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collName,
		[]string{partitionName},
		filter,
		outputFields,
		[]entity.Vector{entity.FloatVector(params.QueryVector)},
		fieldVector,
		entity.COSINE,
		params.TopK,
		sp,
	)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var out []*SearchResult
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			sr := &SearchResult{Score: result.Scores[i]}
			sr.ID = varCharAt(result.Fields, fieldID, i)
			sr.DocID = varCharAt(result.Fields, fieldDocID, i)
			sr.Category = varCharAt(result.Fields, fieldCategory, i)
			sr.Question = varCharAt(result.Fields, fieldQuestion, i)
			sr.Text = varCharAt(result.Fields, fieldText, i)
			sr.Source = varCharAt(result.Fields, fieldSource, i)
			out = append(out, sr)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(out)))
	return out, nil
}

func varCharAt(fields client.ResultSet, name string, i int) string {
	col, ok := fields.GetColumn(name).(*entity.ColumnVarChar)
	if !ok || i >= col.Len() {
		return ""
	}
	return col.Data()[i]
}

// InsertChunks 写入 FAQ 分片
func (r *Repository) InsertChunks(ctx context.Context, namespace string, chunks []*FAQChunk) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertChunks",
		trace.WithAttributes(
			attribute.String("namespace", namespace),
			attribute.Int("count", len(chunks)),
		))
	defer span.End()

	if len(chunks) == 0 {
		return nil
	}

	partitionName, err := r.ensurePartition(ctx, namespace)
	if err != nil {
		span.RecordError(err)
		return err
	}

	n := len(chunks)
	ids := make([]string, n)
	vectors := make([][]float32, n)
	docIDs := make([]string, n)
	categories := make([]string, n)
	questions := make([]string, n)
	texts := make([]string, n)
	sources := make([]string, n)

	for i, c := range chunks {
		ids[i] = c.ID
		vectors[i] = c.Vector
		docIDs[i] = c.DocID
		categories[i] = c.Category
		questions[i] = c.Question
		texts[i] = c.Text
		sources[i] = c.Source
	}

	_, err = r.client.milvus.Insert(ctx, r.client.Collection(), partitionName,
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldVector, r.client.Dimension(), vectors),
		entity.NewColumnVarChar(fieldDocID, docIDs),
		entity.NewColumnVarChar(fieldCategory, categories),
		entity.NewColumnVarChar(fieldQuestion, questions),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(fieldSource, sources),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// DeleteChunksByDoc 删除指定文档的全部分片
func (r *Repository) DeleteChunksByDoc(ctx context.Context, namespace string, docIDs []string) error {
	var parts []string
	for _, id := range docIDs {
		if id = strings.TrimSpace(id); id != "" {
			parts = append(parts, fieldDocID+" == "+quote(id))
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return r.deleteWhere(ctx, namespace, strings.Join(parts, " || "))
}

// DeleteChunksBySource 删除来自某个文件的全部分片
func (r *Repository) DeleteChunksBySource(ctx context.Context, namespace, source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil
	}
	return r.deleteWhere(ctx, namespace, fieldSource+" == "+quote(source))
}

func (r *Repository) deleteWhere(ctx context.Context, namespace, filter string) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteChunks",
		trace.WithAttributes(
			attribute.String("namespace", namespace),
			attribute.String("filter", filter),
		))
	defer span.End()

	collName := r.client.Collection()
	partitionName := PartitionName(namespace)

	if has, err := r.client.milvus.HasPartition(ctx, collName, partitionName); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check partition: %w", err)
	} else if !has {
		return nil
	}

	if err := r.client.milvus.Delete(ctx, collName, partitionName, filter); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}
