// Package wire 提供依赖注入配置
package wire

import (
	"context"

	einoembedding "github.com/cloudwego/eino/components/embedding"

	"faq-rag-api/internal/application/chat"
	"faq-rag-api/internal/application/rag"
	"faq-rag-api/internal/application/retrieval"
	"faq-rag-api/internal/config"
	infraembedding "faq-rag-api/internal/infrastructure/embedding"
	"faq-rag-api/internal/infrastructure/llm"
	"faq-rag-api/internal/infrastructure/messaging"
	"faq-rag-api/internal/infrastructure/persistence/milvus"
	"faq-rag-api/internal/infrastructure/persistence/postgres"
	"faq-rag-api/internal/infrastructure/persistence/redis"
	"faq-rag-api/internal/interfaces/http/handler"
	"faq-rag-api/internal/interfaces/http/middleware"
	"faq-rag-api/internal/workflow/chain"
	"faq-rag-api/pkg/logger"
)

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(ctx, &cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClientOptional faqctl 入库时 Redis 仅用于失效检索缓存，不可达时跳过
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func()) {
	client, err := redis.NewClient(ctx, &cfg.Cache.Redis)
	if err != nil {
		logger.Warn(ctx, "redis not available, search cache will not be invalidated", "error", err.Error())
		return nil, func() {}
	}
	return client, func() { _ = client.Close() }
}

// ProvideSearchCache Redis 不可用时返回 nil 接口
func ProvideSearchCache(client *redis.Client) retrieval.SearchCache {
	if client == nil {
		return nil
	}
	return redis.NewCache(client)
}

// ProvideRateLimiter 提供滑动窗口限流器
func ProvideRateLimiter(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideEventPublisher 关闭事件流时返回 nil 接口
func ProvideEventPublisher(cfg *config.Config, producer *messaging.Producer) chat.EventPublisher {
	if !cfg.Messaging.RedisStream.Enabled || producer == nil {
		return nil
	}
	return producer
}

// ProvideMilvusClient 提供 Milvus 客户端（入库必需）
func ProvideMilvusClient(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMilvusClientOptional API 网关中 Milvus 不可达时不阻塞启动，检索降级为拒答
func ProvideMilvusClientOptional(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Warn(ctx, "milvus not available, vector features disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

func ProvideMilvusRepositoryOptional(client *milvus.Client) *milvus.Repository {
	if client == nil {
		return nil
	}
	return milvus.NewRepository(client)
}

func ProvideRetrievalVectorRepositoryOptional(repo *milvus.Repository) retrieval.VectorRepository {
	if repo == nil {
		return nil
	}
	return milvus.NewRetrievalVectorRepository(repo)
}

// ProvideEmbedder 入库必需的 Embedder
func ProvideEmbedder(ctx context.Context, cfg *config.Config) (einoembedding.Embedder, error) {
	return infraembedding.NewEmbedder(ctx, &cfg.Embedding)
}

// ProvideEmbedderOptional 不可用时禁用向量检索
func ProvideEmbedderOptional(ctx context.Context, cfg *config.Config) einoembedding.Embedder {
	embedder, err := infraembedding.NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Warn(ctx, "embedding not available, vector features disabled", "error", err.Error())
		return nil
	}
	return embedder
}

// ProvideRetrievalEngine 提供检索引擎
func ProvideRetrievalEngine(cfg *config.Config, embedder einoembedding.Embedder, vectorRepo retrieval.VectorRepository, cache retrieval.SearchCache) *retrieval.Engine {
	return retrieval.NewEngine(embedder, vectorRepo, cache, retrieval.EngineConfig{
		Namespace: cfg.RAG.Namespace,
		MinScore:  cfg.RAG.MinScore,
		CacheTTL:  cfg.RAG.SearchCacheTTL,
	})
}

// ProvideRetrievalIndexer 提供入库器
func ProvideRetrievalIndexer(cfg *config.Config, embedder einoembedding.Embedder, vectorRepo retrieval.VectorRepository, cache retrieval.SearchCache) *retrieval.Indexer {
	return retrieval.NewIndexer(embedder, vectorRepo, cache, retrieval.IndexerConfig{
		Namespace:          cfg.RAG.Namespace,
		EmbeddingBatchSize: cfg.Embedding.BatchSize,
		ChunkSizeRunes:     cfg.Ingest.ChunkSizeRunes,
		ChunkOverlapRunes:  cfg.Ingest.ChunkOverlapRunes,
	})
}

// ProvideAnswerChain 使用默认提供商生成答案
func ProvideAnswerChain(factory *llm.EinoFactory) *chain.AnswerChain {
	return chain.NewAnswerChain(factory, "")
}

// ProvideIntentClassifier 关闭 LLM 兜底时只用启发式分类
func ProvideIntentClassifier(cfg *config.Config, factory *llm.EinoFactory) *rag.IntentClassifier {
	ic := cfg.RAG.Intent
	icfg := rag.DefaultIntentConfig()
	if ic.MinLength > 0 {
		icfg.MinLength = ic.MinLength
	}
	if ic.LLMThreshold > 0 {
		icfg.LLMThreshold = ic.LLMThreshold
	}
	if ic.HistoryBiasTurns > 0 {
		icfg.HistoryBiasTurns = ic.HistoryBiasTurns
	}
	icfg.LLMFallback = ic.LLMFallback

	var fallback rag.IntentLLM
	if ic.LLMFallback {
		fallback = chain.NewIntentChain(factory, ic.LLMProvider)
	}
	return rag.NewIntentClassifier(icfg, fallback)
}

// ProvideOrchestratorConfig 将配置映射为编排器参数
func ProvideOrchestratorConfig(cfg *config.Config, factory *llm.EinoFactory) rag.Config {
	rc := rag.DefaultConfig()
	if cfg.RAG.TopK > 0 {
		rc.TopK = cfg.RAG.TopK
	}
	rc.MinScore = cfg.RAG.MinScore
	if cfg.RAG.MaxContextChars > 0 {
		rc.MaxContextChars = cfg.RAG.MaxContextChars
	}
	if cfg.RAG.AbstainThreshold > 0 {
		rc.AbstainThreshold = cfg.RAG.AbstainThreshold
	}
	if cfg.RAG.Namespace != "" {
		rc.Namespace = cfg.RAG.Namespace
	}
	rc.IndexName = cfg.Vector.Milvus.Collection
	rc.EmbedModel = cfg.Embedding.Model
	rc.ModelProvider, rc.ModelName = factory.Resolve("")

	w := cfg.RAG.Ranking
	if w.ScoreWeight > 0 || w.LexicalWeight > 0 {
		rc.Ranking = rag.RankWeights{
			Score:               w.ScoreWeight,
			Lexical:             w.LexicalWeight,
			StrongCategoryBoost: w.StrongCategoryBoost,
			WeakCategoryBoost:   w.WeakCategoryBoost,
			StrongConfidence:    w.StrongConfidence,
			MaxSources:          w.MaxSources,
		}
	}
	return rc
}

// ProvideHealthHandler Milvus 未连接时传入 nil 接口，避免 typed nil
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, redisClient *redis.Client, milvusClient *milvus.Client) *handler.HealthHandler {
	var mv handler.HealthChecker
	if milvusClient != nil {
		mv = milvusClient
	}
	return handler.NewHealthHandler(cfg.App.Version, pg, redisClient, mv)
}
