package retrieval

import "errors"

var (
	// ErrVectorDisabled Milvus 或 Embedder 未就绪
	ErrVectorDisabled = errors.New("vector retrieval is disabled")
	// ErrCacheUnavailable 检索缓存读写失败，调用方应直接查询向量库
	ErrCacheUnavailable = errors.New("search cache unavailable")
)

// FAQDocument 一条 FAQ 问答
type FAQDocument struct {
	ID       string `yaml:"id" json:"id"`
	Category string `yaml:"category" json:"category"`
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`

	// Source 来源文件（相对入库根目录），用于按文件替换
	Source string `yaml:"-" json:"source"`
}

// IndexStats 一次入库的统计
type IndexStats struct {
	Source    string `json:"source"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
	Skipped   int    `json:"skipped"`
}
