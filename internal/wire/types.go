package wire

import (
	"faq-rag-api/internal/application/chat"
	"faq-rag-api/internal/application/events"
	"faq-rag-api/internal/application/retrieval"
	"faq-rag-api/internal/infrastructure/persistence/milvus"
	"faq-rag-api/internal/infrastructure/persistence/redis"
)

// Worker job-worker 依赖容器
type Worker struct {
	Redis   *redis.Client
	Sweeper *chat.SessionSweeper
	Indexer *retrieval.Indexer
	Events  *events.Handler
}

// Ingest faqctl 入库依赖容器
type Ingest struct {
	Milvus  *milvus.Repository
	Indexer *retrieval.Indexer
}
