// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"faq-rag-api/internal/config"
)

const dialTimeout = 10 * time.Second

var tracer = otel.Tracer("milvus")

// Client 持有 Milvus 连接与 FAQ 集合的解析后参数
type Client struct {
	milvus     client.Client
	collection string
	dimension  int
	cfg        *config.MilvusConfig
}

// NewClient 连接 Milvus；未配置用户名时走匿名连接
func NewClient(ctx context.Context, cfg *config.MilvusConfig) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	mc, err := client.NewClient(dialCtx, client.Config{
		Address:  net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Username: cfg.User,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}
	return newClient(mc, cfg), nil
}

func newClient(mc client.Client, cfg *config.MilvusConfig) *Client {
	name := cfg.Collection
	if name == "" {
		name = CollectionFAQChunks
	}
	if cfg.CollectionPrefix != "" {
		name = cfg.CollectionPrefix + "_" + name
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	return &Client{milvus: mc, collection: name, dimension: dim, cfg: cfg}
}

// Collection FAQ 分片集合的完整名称（含前缀）
func (c *Client) Collection() string {
	return c.collection
}

// Dimension 向量维度
func (c *Client) Dimension() int {
	return c.dimension
}

// Close 关闭连接
func (c *Client) Close() error {
	return c.milvus.Close()
}

// HealthCheck 连接可用且 FAQ 集合已创建才算健康
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.HealthCheck",
		trace.WithAttributes(attribute.String("collection", c.collection)))
	defer span.End()

	ok, err := c.milvus.HasCollection(ctx, c.collection)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("health check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("collection %s not created", c.collection)
	}
	return nil
}
