// Package main 后台任务入口（job-worker）：对话事件消费、空闲会话清理、FAQ 定时重建索引与目录监听
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"faq-rag-api/internal/application/retrieval"
	"faq-rag-api/internal/config"
	"faq-rag-api/internal/infrastructure/messaging"
	"faq-rag-api/internal/wire"
	"faq-rag-api/pkg/logger"
	"faq-rag-api/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	deps, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	var consumer *messaging.Consumer
	if cfg.Messaging.RedisStream.Enabled {
		consumer = newConsumer(cfg, deps)
		if err := consumer.Start(ctx); err != nil {
			logger.Fatal(ctx, "failed to start consumer", err)
		}
	}

	scheduler, err := newScheduler(ctx, cfg, deps)
	if err != nil {
		logger.Fatal(ctx, "failed to schedule jobs", err)
	}
	scheduler.Start()

	if cfg.Ingest.Watch && deps.Indexer.Enabled() && cfg.Ingest.Dir != "" {
		watcher := retrieval.NewWatcher(deps.Indexer, cfg.Ingest.Dir, cfg.Worker.WatchDebounce)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error(ctx, "faq watcher exited", err, "dir", cfg.Ingest.Dir)
			}
		}()
	}

	metricsSrv := startMetricsServer(ctx, cfg)

	logger.Info(ctx, "job-worker started",
		"events", consumer != nil,
		"vector_enabled", deps.Indexer.Enabled(),
		"faq_dir", cfg.Ingest.Dir,
	)

	<-ctx.Done()
	logger.Info(context.Background(), "job-worker shutting down")

	<-scheduler.Stop().Done()
	if consumer != nil {
		consumer.Stop()
	}
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

func newConsumer(cfg *config.Config, deps *wire.Worker) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	group := messaging.ConsumerGroupTurnMetrics
	if rs.ConsumerGroupPrefix != "" {
		group = messaging.ConsumerGroup(rs.ConsumerGroupPrefix + ":" + string(messaging.ConsumerGroupTurnMetrics))
	}

	consumer := messaging.NewConsumer(deps.Redis.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamChatEvents,
		Group:         group,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
	deps.Events.Register(consumer)
	return consumer
}

// newScheduler 注册定时任务；表达式为标准 5 段 cron
func newScheduler(ctx context.Context, cfg *config.Config, deps *wire.Worker) (*cron.Cron, error) {
	c := cron.New()

	if spec := cfg.Worker.SessionSweepSchedule; spec != "" {
		ttl := cfg.Worker.SessionIdleTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		if _, err := c.AddFunc(spec, func() {
			if _, err := deps.Sweeper.CloseIdle(ctx, ttl); err != nil {
				logger.Error(ctx, "failed to close idle sessions", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("session sweep schedule %q: %w", spec, err)
		}
	}

	if spec := cfg.Worker.ReindexSchedule; spec != "" && deps.Indexer.Enabled() && cfg.Ingest.Dir != "" {
		if _, err := c.AddFunc(spec, func() {
			stats, err := retrieval.SyncDir(ctx, deps.Indexer, cfg.Ingest.Dir)
			if err != nil {
				logger.Error(ctx, "scheduled faq reindex finished with errors", err, "sources", len(stats))
				return
			}
			logger.Info(ctx, "scheduled faq reindex finished", "sources", len(stats))
		}); err != nil {
			return nil, fmt.Errorf("reindex schedule %q: %w", spec, err)
		}
	}
	return c, nil
}

func startMetricsServer(ctx context.Context, cfg *config.Config) *http.Server {
	if !cfg.Observability.Metrics.Enabled || cfg.Worker.MetricsAddr == "" {
		return nil
	}
	path := cfg.Observability.Metrics.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	srv := &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "worker metrics server error", err, "addr", cfg.Worker.MetricsAddr)
		}
	}()
	return srv
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
