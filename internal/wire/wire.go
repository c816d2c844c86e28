//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"faq-rag-api/internal/application/chat"
	"faq-rag-api/internal/application/events"
	"faq-rag-api/internal/application/rag"
	"faq-rag-api/internal/application/retrieval"
	"faq-rag-api/internal/config"
	"faq-rag-api/internal/domain/repository"
	"faq-rag-api/internal/infrastructure/llm"
	"faq-rag-api/internal/infrastructure/persistence/milvus"
	"faq-rag-api/internal/infrastructure/persistence/postgres"
	"faq-rag-api/internal/interfaces/http/handler"
	"faq-rag-api/internal/interfaces/http/router"
	"faq-rag-api/internal/workflow/chain"
)

// InitializeApp 初始化 API 网关（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		EmbeddingOptionalSet,
		MilvusOptionalSet,
		RetrievalSet,
		ChatSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeWorker 初始化 job-worker 依赖
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		EmbeddingOptionalSet,
		MilvusOptionalSet,
		RetrievalSet,
		chat.NewSessionSweeper,
		events.NewHandler,
		wire.Bind(new(events.MessageFlagger), new(*postgres.MessageRepository)),
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InitializeIngest 初始化 faqctl 入库依赖；Milvus 与 Embedding 必需
func InitializeIngest(ctx context.Context, cfg *config.Config) (*Ingest, func(), error) {
	wire.Build(
		ProvideRedisClientOptional,
		ProvideSearchCache,
		ProvideEmbedder,
		ProvideMilvusClient,
		milvus.NewRepository,
		ProvideRetrievalVectorRepositoryOptional,
		ProvideRetrievalIndexer,
		wire.Struct(new(Ingest), "*"),
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewChatSessionRepository,
	postgres.NewMessageRepository,
	postgres.NewAnalyticsRepository,
)

// RepoSet 具体实现与接口绑定
var RepoSet = wire.NewSet(
	PostgresSet,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.ChatSessionRepository), new(*postgres.ChatSessionRepository)),
	wire.Bind(new(repository.MessageRepository), new(*postgres.MessageRepository)),
	wire.Bind(new(repository.AnalyticsRepository), new(*postgres.AnalyticsRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideSearchCache,
	ProvideRateLimiter,
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	ProvideEventPublisher,
)

// MilvusOptionalSet 可选 Milvus（不可达时不阻塞启动）
var MilvusOptionalSet = wire.NewSet(
	ProvideMilvusClientOptional,
	ProvideMilvusRepositoryOptional,
	ProvideRetrievalVectorRepositoryOptional,
)

// EmbeddingOptionalSet 可选 Embedder（不可用时禁用向量检索/入库）
var EmbeddingOptionalSet = wire.NewSet(
	ProvideEmbedderOptional,
)

// RetrievalSet 检索与入库
var RetrievalSet = wire.NewSet(
	ProvideRetrievalEngine,
	ProvideRetrievalIndexer,
)

// ChatSet 意图分类、检索问答编排与对话服务
var ChatSet = wire.NewSet(
	llm.NewEinoFactory,
	ProvideAnswerChain,
	ProvideIntentClassifier,
	ProvideOrchestratorConfig,
	rag.NewOrchestrator,
	chat.NewMessageStore,
	chat.NewService,
	wire.Bind(new(rag.Searcher), new(*retrieval.Engine)),
	wire.Bind(new(rag.Generator), new(*chain.AnswerChain)),
	wire.Bind(new(rag.MessageStore), new(*chat.MessageStore)),
	wire.Bind(new(chat.Store), new(*chat.MessageStore)),
	wire.Bind(new(chat.Classifier), new(*rag.IntentClassifier)),
	wire.Bind(new(chat.TurnHandler), new(*rag.Orchestrator)),
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewChatHandler,
	handler.NewRetrievalHandler,
	wire.Bind(new(handler.ChatService), new(*chat.Service)),
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
