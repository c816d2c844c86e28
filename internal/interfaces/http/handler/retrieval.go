package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"faq-rag-api/internal/application/rag"
	"faq-rag-api/internal/interfaces/http/dto"
	apperrors "faq-rag-api/pkg/errors"
)

const defaultSearchTopK = 5

// RetrievalHandler 检索调试处理器
type RetrievalHandler struct {
	searcher rag.Searcher
}

// NewRetrievalHandler 创建检索处理器
func NewRetrievalHandler(searcher rag.Searcher) *RetrievalHandler {
	return &RetrievalHandler{searcher: searcher}
}

// Search 直接检索 FAQ 分片（不经过意图分类与生成）
// @Summary 检索调试
// @Tags Retrieval
// @Accept json
// @Produce json
// @Param body body dto.SearchRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.SearchResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/retrieval/search [post]
func (h *RetrievalHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		dto.BadRequest(c, "query is required")
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = defaultSearchTopK
	}

	res, err := h.searcher.Search(ctx, query, topK)
	if err != nil {
		err = apperrors.ErrRetrievalFailed.WithError(err)
		logFailure(ctx, "retrieval search failed", err)
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.ToSearchResponse(query, topK, res))
}
