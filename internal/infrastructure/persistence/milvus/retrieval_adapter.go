package milvus

import (
	"context"

	"faq-rag-api/internal/application/retrieval"
)

// RetrievalVectorRepository 将 Repository 适配为检索层的向量端口
type RetrievalVectorRepository struct {
	repo *Repository
}

func NewRetrievalVectorRepository(repo *Repository) *RetrievalVectorRepository {
	return &RetrievalVectorRepository{repo: repo}
}

var _ retrieval.VectorRepository = (*RetrievalVectorRepository)(nil)

func (r *RetrievalVectorRepository) EnsureCollection(ctx context.Context) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return r.repo.EnsureCollection(ctx)
}

func (r *RetrievalVectorRepository) SearchChunks(ctx context.Context, params *retrieval.VectorSearchParams) ([]*retrieval.VectorSearchResult, error) {
	if r == nil || r.repo == nil {
		return nil, retrieval.ErrVectorDisabled
	}
	if params == nil {
		return nil, nil
	}

	out, err := r.repo.SearchChunks(ctx, &SearchParams{
		Namespace:   params.Namespace,
		QueryVector: params.QueryVector,
		TopK:        params.TopK,
		Category:    params.Category,
	})
	if err != nil {
		return nil, err
	}

	results := make([]*retrieval.VectorSearchResult, 0, len(out))
	for _, v := range out {
		if v == nil {
			continue
		}
		results = append(results, &retrieval.VectorSearchResult{
			ID:       v.ID,
			Score:    v.Score,
			DocID:    v.DocID,
			Category: v.Category,
			Question: v.Question,
			Text:     v.Text,
			Source:   v.Source,
		})
	}
	return results, nil
}

func (r *RetrievalVectorRepository) DeleteChunksByDoc(ctx context.Context, namespace string, docIDs []string) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return r.repo.DeleteChunksByDoc(ctx, namespace, docIDs)
}

func (r *RetrievalVectorRepository) DeleteChunksBySource(ctx context.Context, namespace, source string) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	return r.repo.DeleteChunksBySource(ctx, namespace, source)
}

func (r *RetrievalVectorRepository) InsertChunks(ctx context.Context, namespace string, chunks []*retrieval.VectorChunk) error {
	if r == nil || r.repo == nil {
		return retrieval.ErrVectorDisabled
	}
	if len(chunks) == 0 {
		return nil
	}

	out := make([]*FAQChunk, 0, len(chunks))
	for _, c := range chunks {
		if c == nil {
			continue
		}
		out = append(out, &FAQChunk{
			ID:       c.ID,
			Vector:   c.Vector,
			DocID:    c.DocID,
			Category: c.Category,
			Question: c.Question,
			Text:     c.Text,
			Source:   c.Source,
		})
	}
	return r.repo.InsertChunks(ctx, namespace, out)
}
