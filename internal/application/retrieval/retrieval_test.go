package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t)), 1}
	}
	return out, nil
}

type stubVectorRepo struct {
	results       []*VectorSearchResult
	searchErr     error
	lastSearch    *VectorSearchParams
	searches      int
	inserted      []*VectorChunk
	deletedSource []string
	deletedDocs   []string
}

func (s *stubVectorRepo) EnsureCollection(context.Context) error { return nil }

func (s *stubVectorRepo) SearchChunks(_ context.Context, p *VectorSearchParams) ([]*VectorSearchResult, error) {
	s.searches++
	s.lastSearch = p
	return s.results, s.searchErr
}

func (s *stubVectorRepo) DeleteChunksByDoc(_ context.Context, _ string, ids []string) error {
	s.deletedDocs = append(s.deletedDocs, ids...)
	return nil
}

func (s *stubVectorRepo) DeleteChunksBySource(_ context.Context, _ string, source string) error {
	s.deletedSource = append(s.deletedSource, source)
	return nil
}

func (s *stubVectorRepo) InsertChunks(_ context.Context, _ string, chunks []*VectorChunk) error {
	s.inserted = append(s.inserted, chunks...)
	return nil
}

type memCache struct {
	data        map[string][]byte
	err         error
	invalidated []string
}

func (m *memCache) SearchKey(namespace string, topK int, query string) string {
	return namespace + ":" + query
}

func (m *memCache) LoadThrough(ctx context.Context, key string, _ time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	v, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m.data[key] = b
	return b, nil
}

func (m *memCache) InvalidateSearch(_ context.Context, namespace string) error {
	m.invalidated = append(m.invalidated, namespace)
	return nil
}

func TestEngineSearchMapsHits(t *testing.T) {
	repo := &stubVectorRepo{results: []*VectorSearchResult{
		{ID: "c1", Score: 0.82, DocID: "d1", Category: "account", Question: "How do I verify?", Text: "Q: How do I verify?\nA: Upload ID."},
		{ID: "c2", Score: 0.1, DocID: "d2", Category: "cards", Text: "low"},
		nil,
	}}
	eng := NewEngine(&stubEmbedder{}, repo, nil, EngineConfig{Namespace: "faq", MinScore: 0.2})

	res, err := eng.Search(context.Background(), "  verify account ", 0)
	require.NoError(t, err)

	assert.Equal(t, defaultTopK, repo.lastSearch.TopK)
	assert.Equal(t, "faq", repo.lastSearch.Namespace)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "c1", res.Hits[0].ID)
	assert.Equal(t, "account", res.Hits[0].Category())
	assert.Contains(t, res.Hits[0].Text(), "Upload ID")
	assert.Equal(t, "d1", res.Hits[0].Fields["doc_id"])
	require.NotNil(t, res.BestScore)
	assert.InDelta(t, 0.82, *res.BestScore, 1e-6)
}

func TestEngineSearchNoPositiveScore(t *testing.T) {
	repo := &stubVectorRepo{results: []*VectorSearchResult{{ID: "c1", Score: 0}}}
	eng := NewEngine(&stubEmbedder{}, repo, nil, EngineConfig{})

	res, err := eng.Search(context.Background(), "q", 100)
	require.NoError(t, err)
	assert.Equal(t, maxTopK, repo.lastSearch.TopK)
	assert.Len(t, res.Hits, 1)
	assert.Nil(t, res.BestScore)
}

func TestEngineSearchErrors(t *testing.T) {
	_, err := NewEngine(nil, nil, nil, EngineConfig{}).Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, ErrVectorDisabled)

	boom := errors.New("milvus down")
	eng := NewEngine(&stubEmbedder{}, &stubVectorRepo{searchErr: boom}, nil, EngineConfig{})
	_, err = eng.Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, boom)

	res, err := eng.Search(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}

func TestEngineSearchUsesCache(t *testing.T) {
	repo := &stubVectorRepo{results: []*VectorSearchResult{{ID: "c1", Score: 0.7, Category: "cards", Text: "t"}}}
	cache := &memCache{data: map[string][]byte{}}
	eng := NewEngine(&stubEmbedder{}, repo, cache, EngineConfig{Namespace: "faq", CacheTTL: time.Minute})

	first, err := eng.Search(context.Background(), "card fees", 5)
	require.NoError(t, err)
	second, err := eng.Search(context.Background(), "card fees", 5)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.searches)
	require.Len(t, second.Hits, 1)
	assert.Equal(t, first.Hits[0].ID, second.Hits[0].ID)
	assert.Equal(t, "cards", second.Hits[0].Category())
	require.NotNil(t, second.BestScore)
	assert.InDelta(t, 0.7, *second.BestScore, 1e-6)
}

func TestEngineSearchCacheFailureFallsBack(t *testing.T) {
	repo := &stubVectorRepo{results: []*VectorSearchResult{{ID: "c1", Score: 0.5}}}
	cache := &memCache{err: fmt.Errorf("%w: redis down", ErrCacheUnavailable)}
	eng := NewEngine(&stubEmbedder{}, repo, cache, EngineConfig{CacheTTL: time.Minute})

	res, err := eng.Search(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Len(t, res.Hits, 1)
	assert.Equal(t, 1, repo.searches)
}

func TestEngineSearchLoaderErrorNotRetried(t *testing.T) {
	boom := errors.New("milvus down")
	repo := &stubVectorRepo{searchErr: boom}
	eng := NewEngine(&stubEmbedder{}, repo, &memCache{data: map[string][]byte{}}, EngineConfig{CacheTTL: time.Minute})

	_, err := eng.Search(context.Background(), "q", 5)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, repo.searches)
}

func TestIndexerIndexSource(t *testing.T) {
	repo := &stubVectorRepo{}
	cache := &memCache{data: map[string][]byte{}}
	idx := NewIndexer(&stubEmbedder{}, repo, cache, IndexerConfig{Namespace: "faq", EmbeddingBatchSize: 1})

	docs := []FAQDocument{
		{ID: "acct-1", Category: "account", Question: "How do I verify my account?", Answer: "Upload a government ID."},
		{Question: "What are card fees?", Answer: "No monthly fee."},
		{Question: "empty answer"},
		{ID: "acct-1", Question: "dup", Answer: "dup"},
	}
	stats, err := idx.IndexSource(context.Background(), "account.yaml", docs)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, []string{"account.yaml"}, repo.deletedSource)
	assert.Equal(t, []string{"faq"}, cache.invalidated)

	require.Len(t, repo.inserted, 2)
	first := repo.inserted[0]
	assert.Equal(t, "acct-1", first.DocID)
	assert.Equal(t, "Q: How do I verify my account?\nA: Upload a government ID.", first.Text)
	assert.Equal(t, "account.yaml", first.Source)
	assert.Equal(t, []float32{float32(len(first.Text)), 1}, first.Vector)

	second := repo.inserted[1]
	assert.Equal(t, "general", second.Category)
	assert.Equal(t, DocumentID("What are card fees?"), second.DocID)
	assert.True(t, strings.HasPrefix(second.DocID, "faq-"))
}

func TestIndexerDeterministicChunkIDs(t *testing.T) {
	docs := []FAQDocument{{ID: "d1", Question: "q", Answer: "a"}}

	r1, r2 := &stubVectorRepo{}, &stubVectorRepo{}
	_, err := NewIndexer(&stubEmbedder{}, r1, nil, IndexerConfig{}).IndexSource(context.Background(), "a.yaml", docs)
	require.NoError(t, err)
	_, err = NewIndexer(&stubEmbedder{}, r2, nil, IndexerConfig{}).IndexSource(context.Background(), "a.yaml", docs)
	require.NoError(t, err)

	assert.Equal(t, r1.inserted[0].ID, r2.inserted[0].ID)
	assert.Equal(t, DocumentID("What  is X?"), DocumentID("what is x?"))
}

func TestIndexerEmbedFailure(t *testing.T) {
	repo := &stubVectorRepo{}
	idx := NewIndexer(&stubEmbedder{err: errors.New("quota")}, repo, nil, IndexerConfig{})

	_, err := idx.IndexSource(context.Background(), "a.yaml", []FAQDocument{{Question: "q", Answer: "a"}})
	require.Error(t, err)
	assert.Empty(t, repo.inserted)
	assert.Empty(t, repo.deletedSource)

	_, err = idx.IndexSource(context.Background(), " ", nil)
	assert.Error(t, err)
}

func TestIndexerRemove(t *testing.T) {
	repo := &stubVectorRepo{}
	idx := NewIndexer(&stubEmbedder{}, repo, nil, IndexerConfig{})

	require.NoError(t, idx.RemoveSource(context.Background(), "old.yaml"))
	require.NoError(t, idx.RemoveDocuments(context.Background(), []string{"d1", "d2"}))
	require.NoError(t, idx.RemoveDocuments(context.Background(), nil))

	assert.Equal(t, []string{"old.yaml"}, repo.deletedSource)
	assert.Equal(t, []string{"d1", "d2"}, repo.deletedDocs)
}

func TestLoadYAML(t *testing.T) {
	list := `
- id: acct-1
  category: account
  question: How do I verify my account?
  answer: Upload a government ID.
- category: cards
  question: What are card fees?
  answer: No monthly fee.
`
	docs, err := LoadYAML(strings.NewReader(list))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "acct-1", docs[0].ID)
	assert.Equal(t, "cards", docs[1].Category)

	corpus := `
category: transfers
faqs:
  - question: How long do transfers take?
    answer: One business day.
  - question: Can I cancel?
    category: support
    answer: Within 30 minutes.
`
	docs, err = LoadYAML(strings.NewReader(corpus))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "transfers", docs[0].Category)
	assert.Equal(t, "support", docs[1].Category)

	docs, err = LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = LoadYAML(strings.NewReader("just a string"))
	assert.Error(t, err)
}

func TestLoadHTML(t *testing.T) {
	page := `<html><body data-category="security">
<h1>Security FAQ</h1>
<h2 id="sec-2fa">How do I enable   2FA?</h2>
<p>Open Settings.</p>
<ul><li>Choose Security</li><li>Enable 2FA</li></ul>
<h3>Orphan question</h3>
<h2 data-category="fraud">Report fraud?</h2>
<p>Call support.</p>
</body></html>`

	docs, err := LoadHTML(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "sec-2fa", docs[0].ID)
	assert.Equal(t, "How do I enable 2FA?", docs[0].Question)
	assert.Equal(t, "security", docs[0].Category)
	assert.Equal(t, "Open Settings.\nChoose SecurityEnable 2FA", docs[0].Answer)

	assert.Equal(t, "fraud", docs[1].Category)
	assert.Equal(t, "Call support.", docs[1].Answer)
}

type recordingIndexer struct {
	indexed map[string]int
	removed []string
}

func (r *recordingIndexer) IndexSource(_ context.Context, source string, docs []FAQDocument) (*IndexStats, error) {
	r.indexed[source] = len(docs)
	return &IndexStats{Source: source, Documents: len(docs)}, nil
}

func (r *recordingIndexer) RemoveSource(_ context.Context, source string) error {
	r.removed = append(r.removed, source)
	return nil
}

func TestSyncDirAndWatcherFlush(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cards"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "account.yaml"),
		[]byte("- question: q1\n  answer: a1\n- question: q2\n  answer: a2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "cards", "fees.html"),
		[]byte("<h2>Fees?</h2><p>None.</p>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("ignored"), 0o644))

	rec := &recordingIndexer{indexed: map[string]int{}}
	stats, err := SyncDir(context.Background(), rec, root)
	require.NoError(t, err)
	assert.Len(t, stats, 2)
	assert.Equal(t, map[string]int{"account.yaml": 2, "cards/fees.html": 1}, rec.indexed)

	rec = &recordingIndexer{indexed: map[string]int{}}
	w := NewWatcher(rec, root, 0)
	w.pending[filepath.Join(root, "account.yaml")] = false
	w.pending[filepath.Join(root, "gone.yaml")] = true
	w.flush(context.Background())

	assert.Equal(t, map[string]int{"account.yaml": 2}, rec.indexed)
	assert.Equal(t, []string{"gone.yaml"}, rec.removed)
	assert.Empty(t, w.pending)
}
