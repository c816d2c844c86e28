package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func hit(id string, score *float64, text, category string) Hit {
	fields := map[string]any{"text": text}
	if category != "" {
		fields["category"] = category
	}
	return Hit{ID: id, Score: score, Fields: fields}
}

func TestNormalizeRanksFollowInputOrder(t *testing.T) {
	hits := []Hit{
		hit("a", ptr(0.1), "alpha text", ""),
		hit("b", ptr(0.9), "beta text", ""),
		hit("c", nil, "gamma text", ""),
	}
	items := Normalize(hits, EvidenceMeta{IndexName: "faq"})
	require.Len(t, items, 3)
	for i, it := range items {
		assert.Equal(t, i+1, it.Rank)
		assert.Equal(t, hits[i].ID, it.ID)
		assert.Equal(t, "faq", it.IndexName)
		assert.Equal(t, DefaultNamespace, it.Namespace)
	}
}

func TestNormalizeClampsAndScales(t *testing.T) {
	items := Normalize([]Hit{
		hit("neg", ptr(-0.2), "negative", ""),
		hit("mid", ptr(0.3), "middle", ""),
		hit("top", ptr(0.8), "top", ""),
		hit("none", nil, "no score", ""),
	}, EvidenceMeta{})

	require.NotNil(t, items[0].Score)
	assert.Equal(t, 0.0, *items[0].Score)
	assert.InDelta(t, 0.0, *items[0].ScoreNorm, 1e-9)
	assert.Equal(t, "low", *items[0].ConfidenceBucket)

	assert.InDelta(t, 0.5, *items[1].ScoreNorm, 1e-9)
	assert.Equal(t, "medium", *items[1].ConfidenceBucket)

	assert.InDelta(t, 1.0, *items[2].ScoreNorm, 1e-9)
	assert.Equal(t, "high", *items[2].ConfidenceBucket)

	assert.Nil(t, items[3].Score)
	assert.Nil(t, items[3].ScoreNorm)
	assert.Nil(t, items[3].ConfidenceBucket)

	for _, it := range items {
		if it.Score != nil {
			assert.GreaterOrEqual(t, *it.Score, 0.0)
		}
	}
}

func TestNormalizeSingleScoreHasNoNorm(t *testing.T) {
	items := Normalize([]Hit{hit("a", ptr(0.4), "text", "")}, EvidenceMeta{})
	require.Len(t, items, 1)
	assert.Nil(t, items[0].ScoreNorm)
	assert.Nil(t, items[0].ConfidenceBucket)
}

func TestNormalizeMissingFields(t *testing.T) {
	items := Normalize([]Hit{{ID: "x"}}, EvidenceMeta{})
	require.Len(t, items, 1)
	assert.Equal(t, "Untitled FAQ", items[0].Title)
	assert.Empty(t, items[0].Preview)
	assert.Nil(t, items[0].ContentHash)
	assert.Nil(t, items[0].Category)
}

func TestNormalizeContentHashAndCategory(t *testing.T) {
	text := "How do I reset my password? Open settings and tap reset."
	items := Normalize([]Hit{hit("p", ptr(0.5), text, "security")}, EvidenceMeta{})
	sum := sha256.Sum256([]byte(text))
	require.NotNil(t, items[0].ContentHash)
	assert.Equal(t, hex.EncodeToString(sum[:]), *items[0].ContentHash)
	assert.Equal(t, "security", *items[0].Category)
}

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("abcd ", 30)
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "   ", "Untitled FAQ"},
		{"question", "How do I reset my password? Open settings.", "How do I reset my password?"},
		{"early question mark", "Hi? yes", "Hi? yes"},
		{"sentence", "Transfers settle quickly. Most arrive in minutes.", "Transfers settle quickly."},
		{"newline", "Card controls overview\nLock the card in app", "Card controls overview\n"},
		{"truncated", long, strings.TrimRight(long[:80], " ") + "…"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, deriveTitle(tc.in))
		})
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "one two three", preview("one  two\nthree", 12))
	words := "a b c d e f g h i j k l m n"
	assert.Equal(t, "a b c d e f g h i j k l…", preview(words, 12))
}
