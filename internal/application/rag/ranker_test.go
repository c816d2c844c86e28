package rag

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexicalOverlap(t *testing.T) {
	assert.InDelta(t, 0.75, LexicalOverlap("transfer fee limits", "Transfer fee and limits explained"), 1e-9)
	assert.InDelta(t, 0.0, LexicalOverlap("", "anything"), 1e-9)
	assert.InDelta(t, 1.0, LexicalOverlap("a b c d e", "a b c d e f"), 1e-9)
	assert.InDelta(t, 0.25, LexicalOverlap("fee", "fee"), 1e-9)
}

func TestRerankCombinesSignals(t *testing.T) {
	hits := []Hit{
		hit("a", ptr(0.5), "Open an account in minutes", "account"),
		hit("b", ptr(0.4), "Transfer fee and limits explained", "Payments"),
	}
	items := Normalize(hits, EvidenceMeta{})
	r := NewRanker(DefaultRankWeights())

	ranked := r.Rerank("transfer fee limits", hits, items, "payments", 0.9)
	require.Len(t, ranked, 2)
	assert.Equal(t, "b", ranked[0].ID)
	assert.Equal(t, 2, ranked[0].Rank, "rerank must not renumber citations")
}

func TestRerankWeakBoostBreaksTie(t *testing.T) {
	hits := []Hit{
		hit("a", ptr(0.5), "alpha", "security"),
		hit("b", ptr(0.5), "beta", "payments"),
	}
	items := Normalize(hits, EvidenceMeta{})
	r := NewRanker(DefaultRankWeights())

	ranked := r.Rerank("zzz", hits, items, "payments", 0.5)
	assert.Equal(t, []string{"b", "a"}, ids(ranked))

	noHint := r.Rerank("zzz", hits, items, "", 0.9)
	assert.Equal(t, []string{"a", "b"}, ids(noHint), "ties keep input order")
}

func TestRerankMissingScoreCountsAsZero(t *testing.T) {
	hits := []Hit{
		hit("nil", nil, "alpha", ""),
		hit("low", ptr(0.1), "beta", ""),
	}
	items := Normalize(hits, EvidenceMeta{})
	ranked := NewRanker(DefaultRankWeights()).Rerank("zzz", hits, items, "", 0)
	assert.Equal(t, []string{"low", "nil"}, ids(ranked))
}

func TestDiversifyDropsDuplicates(t *testing.T) {
	hits := []Hit{
		hit("a", ptr(0.9), "same text", ""),
		hit("b", ptr(0.8), "same text", ""),
		hit("c", ptr(0.7), "other text", ""),
	}
	items := Normalize(hits, EvidenceMeta{})
	r := NewRanker(DefaultRankWeights())

	out := r.Diversify(items, r.TopN(len(items)))
	assert.Equal(t, []string{"a", "c"}, ids(out))
}

func TestDiversifyFallsBackToTitle(t *testing.T) {
	items := []EvidenceItem{
		{ID: "a", Title: "Untitled FAQ", Rank: 1},
		{ID: "b", Title: "Untitled FAQ", Rank: 2},
	}
	out := NewRanker(DefaultRankWeights()).Diversify(items, 2)
	assert.Equal(t, []string{"a"}, ids(out))
}

func TestDiversifyBound(t *testing.T) {
	var hits []Hit
	for i := 0; i < 15; i++ {
		hits = append(hits, hit(fmt.Sprintf("h%d", i), ptr(float64(i)/15), fmt.Sprintf("unique text %d", i), ""))
	}
	items := Normalize(hits, EvidenceMeta{})
	r := NewRanker(DefaultRankWeights())

	out := r.Diversify(items, r.TopN(len(items)))
	assert.Len(t, out, 10)
	seen := map[string]bool{}
	for _, it := range out {
		require.NotNil(t, it.ContentHash)
		assert.False(t, seen[*it.ContentHash])
		seen[*it.ContentHash] = true
	}

	assert.Len(t, r.Diversify(items[:3], r.TopN(3)), 3)
	assert.Empty(t, r.Diversify(nil, r.TopN(0)))
}

func ids(items []EvidenceItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
