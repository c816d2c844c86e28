package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FAQ_TEST_HOST", "db.internal")

	assert.Equal(t, "host: db.internal", expandEnv("host: ${FAQ_TEST_HOST}"))
	assert.Equal(t, "port: 5432", expandEnv("port: ${FAQ_TEST_MISSING_PORT:5432}"))
	assert.Equal(t, "pw: ", expandEnv("pw: ${FAQ_TEST_MISSING_PW:}"))
	assert.Equal(t, "x: ${FAQ_TEST_UNDEFINED}", expandEnv("x: ${FAQ_TEST_UNDEFINED}"))
}

func TestLoadFromAppliesDefaultsAndEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
app:
  name: faq-rag-api
rag:
  top_k: ${FAQ_TEST_TOP_K:17}
  ranking:
    score_weight: 0.5
`)
	writeFile(t, dir, "config.staging.yaml", `
rag:
  abstain_threshold: 0.7
`)
	t.Setenv("APP_ENV", "staging")
	t.Setenv("FAQ_TEST_TOP_K", "12")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "faq-rag-api", cfg.App.Name)
	assert.Equal(t, 12, cfg.RAG.TopK)
	assert.Equal(t, 0.7, cfg.RAG.AbstainThreshold)
	assert.Equal(t, 0.5, cfg.RAG.Ranking.ScoreWeight)
	assert.Equal(t, 0.3, cfg.RAG.Ranking.LexicalWeight)
	assert.Equal(t, 6000, cfg.RAG.MaxContextChars)
	assert.Equal(t, 6, cfg.RAG.HistorySize)
	assert.Equal(t, 3, cfg.RAG.Intent.MinLength)
	assert.Equal(t, 10*time.Minute, cfg.RAG.SearchCacheTTL)
	assert.Equal(t, "faq_chunks", cfg.Vector.Milvus.Collection)
}

func TestLoadFromMissingBaseFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	require.Error(t, err)
}
