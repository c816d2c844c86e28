package rag

import (
	"regexp"
	"sort"
	"strings"
)

var alnumToken = regexp.MustCompile(`[a-zA-Z0-9]+`)

// RankWeights 重排打分权重
type RankWeights struct {
	Score               float64
	Lexical             float64
	StrongCategoryBoost float64
	WeakCategoryBoost   float64
	StrongConfidence    float64
	MaxSources          int
}

// DefaultRankWeights 返回默认权重
func DefaultRankWeights() RankWeights {
	return RankWeights{
		Score:               0.6,
		Lexical:             0.3,
		StrongCategoryBoost: 0.12,
		WeakCategoryBoost:   0.06,
		StrongConfidence:    0.75,
		MaxSources:          10,
	}
}

// Ranker 结合向量分、词汇重叠与类别提示重排证据
type Ranker struct {
	w RankWeights
}

// NewRanker 创建重排器
func NewRanker(w RankWeights) *Ranker {
	if w.MaxSources <= 0 {
		w.MaxSources = 10
	}
	return &Ranker{w: w}
}

// Rerank 按综合分降序稳定排序；hits 提供正文与分类
func (r *Ranker) Rerank(query string, hits []Hit, items []EvidenceItem, categoryHint string, intentConfidence float64) []EvidenceItem {
	byID := make(map[string]Hit, len(hits))
	for _, h := range hits {
		byID[h.ID] = h
	}

	type scored struct {
		score float64
		item  EvidenceItem
	}
	ranked := make([]scored, 0, len(items))
	for _, it := range items {
		h := byID[it.ID]
		base := 0.0
		if it.Score != nil {
			base = *it.Score
		}
		s := r.w.Score*base + r.w.Lexical*LexicalOverlap(query, h.Text()) + r.categoryBoost(h, categoryHint, intentConfidence)
		ranked = append(ranked, scored{score: s, item: it})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]EvidenceItem, len(ranked))
	for i, s := range ranked {
		out[i] = s.item
	}
	return out
}

func (r *Ranker) categoryBoost(h Hit, hint string, confidence float64) float64 {
	if hint == "" {
		return 0
	}
	cat, ok := h.Fields["category"].(string)
	if !ok || strings.ToLower(cat) != hint {
		return 0
	}
	if confidence >= r.w.StrongConfidence {
		return r.w.StrongCategoryBoost
	}
	return r.w.WeakCategoryBoost
}

// Diversify 按内容哈希（缺失时用标题）去重，保留前 topN 条
func (r *Ranker) Diversify(ranked []EvidenceItem, topN int) []EvidenceItem {
	if topN <= 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ranked))
	out := make([]EvidenceItem, 0, min(topN, len(ranked)))
	for _, it := range ranked {
		key := it.Title
		if it.ContentHash != nil {
			key = *it.ContentHash
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
		if len(out) >= topN {
			break
		}
	}
	return out
}

// TopN 去重时保留的来源数上限
func (r *Ranker) TopN(n int) int {
	return min(r.w.MaxSources, n)
}

// LexicalOverlap 查询与文本的字母数字词集合重叠度，上限 1
func LexicalOverlap(query, text string) float64 {
	q := tokenSet(query, 0)
	t := tokenSet(text, 0)
	if len(q) == 0 || len(t) == 0 {
		return 0
	}
	inter := 0
	for w := range q {
		if _, ok := t[w]; ok {
			inter++
		}
	}
	return min(1.0, float64(inter)/float64(max(4, len(q))))
}

// tokenSet 小写后的词集合，只保留长度大于 minLen 的词
func tokenSet(s string, minLen int) map[string]struct{} {
	words := alnumToken.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) > minLen {
			set[w] = struct{}{}
		}
	}
	return set
}
