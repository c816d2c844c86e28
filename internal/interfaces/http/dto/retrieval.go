package dto

import "faq-rag-api/internal/application/rag"

// SearchRequest 检索调试请求
type SearchRequest struct {
	Query string `json:"query" binding:"required,max=4000"`
	TopK  int    `json:"top_k,omitempty" binding:"omitempty,min=1,max=50"`
}

// SearchHit 检索命中
type SearchHit struct {
	ID       string   `json:"id"`
	Score    *float64 `json:"score,omitempty"`
	Category string   `json:"category"`
	Question string   `json:"question,omitempty"`
	DocID    string   `json:"doc_id,omitempty"`
	Source   string   `json:"source,omitempty"`
	Text     string   `json:"text"`
}

// SearchResponse 检索调试响应
type SearchResponse struct {
	Query     string       `json:"query"`
	TopK      int          `json:"top_k"`
	BestScore *float64     `json:"best_score,omitempty"`
	Hits      []*SearchHit `json:"hits"`
}

// ToSearchResponse 转换检索结果
func ToSearchResponse(query string, topK int, res *rag.SearchResult) *SearchResponse {
	resp := &SearchResponse{Query: query, TopK: topK, Hits: make([]*SearchHit, 0)}
	if res == nil {
		return resp
	}
	resp.BestScore = res.BestScore
	for _, h := range res.Hits {
		resp.Hits = append(resp.Hits, &SearchHit{
			ID:       h.ID,
			Score:    h.Score,
			Category: h.Category(),
			Question: stringField(h.Fields, "question"),
			DocID:    stringField(h.Fields, "doc_id"),
			Source:   stringField(h.Fields, "source"),
			Text:     h.Text(),
		})
	}
	return resp
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
