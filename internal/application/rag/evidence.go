package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// DefaultNamespace 向量库默认命名空间
const DefaultNamespace = "__default__"

const (
	untitledFAQ      = "Untitled FAQ"
	previewWords     = 12
	titleFallback    = 80
	titleMinQuestion = 5
	titleMinSentence = 10
	titleMaxPos      = 140
	ellipsis         = "…"
)

// EvidenceMeta 每条证据附带的检索来源信息
type EvidenceMeta struct {
	IndexName string
	Namespace string
	ModelName string
}

// Normalize 将原始命中转换为带排名、标题、预览与相对置信度的证据
func Normalize(hits []Hit, meta EvidenceMeta) []EvidenceItem {
	if len(hits) == 0 {
		return nil
	}
	if meta.Namespace == "" {
		meta.Namespace = DefaultNamespace
	}

	smin, smax, anyScore := 0.0, 0.0, false
	for _, h := range hits {
		if h.Score == nil {
			continue
		}
		v := *h.Score
		if !anyScore {
			smin, smax, anyScore = v, v, true
			continue
		}
		smin = min(smin, v)
		smax = max(smax, v)
	}

	out := make([]EvidenceItem, 0, len(hits))
	for i, h := range hits {
		text := h.Text()
		item := EvidenceItem{
			ID:        h.ID,
			Title:     deriveTitle(text),
			Preview:   preview(text, previewWords),
			Rank:      i + 1,
			IndexName: meta.IndexName,
			Namespace: meta.Namespace,
			ModelName: meta.ModelName,
		}
		if c := h.Category(); c != "" {
			item.Category = &c
		}
		if text != "" {
			sum := sha256.Sum256([]byte(text))
			hash := hex.EncodeToString(sum[:])
			item.ContentHash = &hash
		}
		if h.Score != nil {
			clamped := max(*h.Score, 0)
			item.Score = &clamped
			if smax > smin {
				norm := (*h.Score - smin) / (smax - smin)
				bucket := confidenceBucket(norm)
				item.ScoreNorm = &norm
				item.ConfidenceBucket = &bucket
			}
		}
		out = append(out, item)
	}
	return out
}

func confidenceBucket(norm float64) string {
	switch {
	case norm >= 0.66:
		return "high"
	case norm >= 0.33:
		return "medium"
	default:
		return "low"
	}
}

// deriveTitle 优先取问句，其次取首句，否则截断；位置按字符计
func deriveTitle(text string) string {
	s := []rune(strings.TrimSpace(text))
	if len(s) == 0 {
		return untitledFAQ
	}
	if q := runeIndex(s, '?'); q >= titleMinQuestion && q <= titleMaxPos {
		return string(s[:q+1])
	}
	for _, sep := range []rune{'.', '!', '\n'} {
		if p := runeIndex(s, sep); p >= titleMinSentence && p <= titleMaxPos {
			return string(s[:p+1])
		}
	}
	if len(s) <= titleFallback {
		return strings.TrimRightFunc(string(s), unicode.IsSpace)
	}
	return strings.TrimRightFunc(string(s[:titleFallback]), unicode.IsSpace) + ellipsis
}

func preview(text string, words int) string {
	parts := strings.Fields(text)
	if len(parts) <= words {
		return strings.Join(parts, " ")
	}
	return strings.Join(parts[:words], " ") + ellipsis
}

func runeIndex(s []rune, r rune) int {
	for i, c := range s {
		if c == r {
			return i
		}
	}
	return -1
}
