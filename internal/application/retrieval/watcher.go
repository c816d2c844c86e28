package retrieval

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"faq-rag-api/pkg/logger"
)

const defaultDebounce = 2 * time.Second

// SourceIndexer 入库器的最小接口，便于 watcher 与同步任务复用
type SourceIndexer interface {
	IndexSource(ctx context.Context, source string, docs []FAQDocument) (*IndexStats, error)
	RemoveSource(ctx context.Context, source string) error
}

// SyncDir 全量同步目录（cron 与 faqctl 使用）
func SyncDir(ctx context.Context, indexer SourceIndexer, root string) ([]*IndexStats, error) {
	corpus, err := LoadDir(root)
	if err != nil {
		return nil, err
	}

	var (
		out  []*IndexStats
		errs []error
	)
	for _, source := range SortedSources(corpus) {
		stats, err := indexer.IndexSource(ctx, source, corpus[source])
		if err != nil {
			logger.Error(ctx, "failed to index faq source", err, "source", source)
			errs = append(errs, err)
			continue
		}
		out = append(out, stats)
	}
	return out, errors.Join(errs...)
}

// Watcher 监听 FAQ 目录，变更的文件在去抖后重新入库
type Watcher struct {
	indexer  SourceIndexer
	root     string
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]bool // path -> 是否已删除
}

// NewWatcher 创建目录监听器
func NewWatcher(indexer SourceIndexer, root string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		indexer:  indexer,
		root:     root,
		debounce: debounce,
		pending:  make(map[string]bool),
	}
}

// Run 阻塞直到 ctx 取消
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addRecursive(fw, w.root); err != nil {
		return err
	}
	logger.Info(ctx, "faq directory watcher started", "root", w.root)

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "faq directory watcher stopped")
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(fw, event.Name); err != nil {
						logger.Warn(ctx, "failed to watch new directory", "path", event.Name, "error", err.Error())
					}
					continue
				}
			}
			w.record(event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error(ctx, "faq directory watcher error", err)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) record(event fsnotify.Event) {
	if !IsSupported(event.Name) {
		return
	}
	var removed bool
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		removed = true
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		removed = false
	default:
		return
	}
	w.mu.Lock()
	w.pending[event.Name] = removed
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	for path, removed := range batch {
		source := SourceName(w.root, path)
		if removed {
			if err := w.indexer.RemoveSource(ctx, source); err != nil {
				logger.Error(ctx, "failed to remove faq source", err, "source", source)
			}
			continue
		}
		docs, err := LoadFile(path)
		if err != nil {
			logger.Error(ctx, "failed to load faq file", err, "path", path)
			continue
		}
		if _, err := w.indexer.IndexSource(ctx, source, docs); err != nil {
			logger.Error(ctx, "failed to reindex faq source", err, "source", source)
		}
	}
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}
