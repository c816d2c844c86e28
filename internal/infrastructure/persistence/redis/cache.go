package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"faq-rag-api/internal/application/retrieval"
	"faq-rag-api/pkg/metrics"
)

const scanBatch = 500

var cacheTracer = otel.Tracer("redis.cache")

// Cache 检索结果缓存；同一键的并发未命中只回源一次
type Cache struct {
	client *Client
	group  singleflight.Group
}

func NewCache(client *Client) *Cache {
	return &Cache{client: client}
}

// SearchKey namespace + topK + 归一化查询的摘要
func (c *Cache) SearchKey(namespace string, topK int, query string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(norm))
	return c.client.Key("search", namespace, strconv.Itoa(topK), hex.EncodeToString(sum[:16]))
}

// LoadThrough 命中直接返回；未命中调用 loader 并以 JSON 写回。
// Redis 读失败包装为 retrieval.ErrCacheUnavailable，写回失败只记录在 span 上
func (c *Cache) LoadThrough(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.LoadThrough",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("cache.hit", true))
		metrics.SearchCacheTotal.WithLabelValues("hit").Inc()
		return val, nil
	case !IsNil(err):
		span.RecordError(err)
		metrics.SearchCacheTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", retrieval.ErrCacheUnavailable, err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))
	metrics.SearchCacheTotal.WithLabelValues("miss").Inc()

	res, err, shared := c.group.Do(key, func() (any, error) {
		data, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode cached value: %w", err)
		}
		if err := c.client.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
			span.RecordError(err)
		}
		return raw, nil
	})
	span.SetAttributes(attribute.Bool("cache.shared", shared))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return res.([]byte), nil
}

// InvalidateSearch 删除 namespace 下的全部检索缓存，入库或删除来源后调用
func (c *Cache) InvalidateSearch(ctx context.Context, namespace string) error {
	pattern := c.client.Key("search", namespace, "*")
	ctx, span := cacheTracer.Start(ctx, "cache.InvalidateSearch",
		trace.WithAttributes(attribute.String("cache.pattern", pattern)))
	defer span.End()

	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			span.RecordError(err)
			return err
		}
		if len(keys) > 0 {
			if err := c.client.rdb.Unlink(ctx, keys...).Err(); err != nil {
				span.RecordError(err)
				return err
			}
			removed += len(keys)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	span.SetAttributes(attribute.Int("cache.invalidated_count", removed))
	return nil
}
