// Package main faqctl 运维命令行：数据库迁移、向量集合管理与 FAQ 入库
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"faq-rag-api/internal/config"
	"faq-rag-api/pkg/logger"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:           "faqctl",
	Short:         "faqctl - admin tool for the FAQ RAG service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding config.yaml (default $CONFIG_DIR or ./configs)")
	rootCmd.AddCommand(newMigrateCmd(), newCollectionCmd(), newIngestCmd(), newRemoveCmd())
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig 读取配置并初始化日志
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configDir != "" {
		cfg, err = config.LoadFrom(configDir)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Observability.Logging.Level, "text")
	return cfg, nil
}
