package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"faq-rag-api/internal/application/retrieval"
	"faq-rag-api/internal/wire"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [path]",
		Short: "Index a FAQ file or directory (default: ingest.dir)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := cfg.Ingest.Dir
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no path given and ingest.dir is empty")
			}

			deps, cleanup, err := wire.InitializeIngest(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if info.IsDir() {
				stats, err := retrieval.SyncDir(cmd.Context(), deps.Indexer, path)
				printStats(cmd.OutOrStdout(), stats)
				return err
			}

			if !retrieval.IsSupported(path) {
				return fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
			}
			docs, err := retrieval.LoadFile(path)
			if err != nil {
				return err
			}
			stats, err := deps.Indexer.IndexSource(cmd.Context(), sourceFor(cfg.Ingest.Dir, path), docs)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), []*retrieval.IndexStats{stats})
			return nil
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <source>",
		Short: "Delete every chunk indexed from a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			deps, cleanup, err := wire.InitializeIngest(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			source := sourceFor(cfg.Ingest.Dir, args[0])
			if err := deps.Indexer.RemoveSource(cmd.Context(), source); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", source)
			return nil
		},
	}
}

// sourceFor 与 job-worker 监听目录时使用相同的 source 命名
func sourceFor(root, path string) string {
	if root == "" {
		return filepath.ToSlash(filepath.Base(path))
	}
	if abs, err := filepath.Abs(path); err == nil {
		if absRoot, err := filepath.Abs(root); err == nil {
			return retrieval.SourceName(absRoot, abs)
		}
	}
	return retrieval.SourceName(root, path)
}

func printStats(w io.Writer, stats []*retrieval.IndexStats) {
	var docs, chunks, skipped int
	for _, s := range stats {
		if s == nil {
			continue
		}
		fmt.Fprintf(w, "%-40s documents=%d chunks=%d skipped=%d\n", s.Source, s.Documents, s.Chunks, s.Skipped)
		docs += s.Documents
		chunks += s.Chunks
		skipped += s.Skipped
	}
	fmt.Fprintf(w, "total: sources=%d documents=%d chunks=%d skipped=%d\n", len(stats), docs, chunks, skipped)
}
