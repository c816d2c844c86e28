// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionFAQChunks FAQ 分片集合
	CollectionFAQChunks = "faq_chunks"

	// DefaultVectorDimension 默认向量维度
	DefaultVectorDimension = 1024

	fieldID       = "id"
	fieldVector   = "vector"
	fieldDocID    = "doc_id"
	fieldCategory = "category"
	fieldQuestion = "question"
	fieldText     = "text"
	fieldSource   = "source"
)

// outputFields 检索时返回的标量字段
var outputFields = []string{fieldID, fieldDocID, fieldCategory, fieldQuestion, fieldText, fieldSource}

// FAQChunksSchema FAQ 分片 Collection Schema
func FAQChunksSchema(name string, dim int) *entity.Schema {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	return &entity.Schema{
		CollectionName: name,
		Description:    "FAQ question/answer chunks for semantic search",
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     fieldVector,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			{
				Name:     fieldDocID,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     fieldCategory,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     fieldQuestion,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     fieldText,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     fieldSource,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
		},
	}
}

// FAQChunk FAQ 分片数据结构
type FAQChunk struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"vector"`
	DocID    string    `json:"doc_id"`
	Category string    `json:"category"`
	Question string    `json:"question"`
	Text     string    `json:"text"`
	Source   string    `json:"source"`
}

// PartitionName 每个 namespace 对应一个分区
func PartitionName(namespace string) string {
	var b strings.Builder
	b.WriteString("ns_")
	for _, r := range namespace {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// quote 转义过滤表达式中的字符串字面量
func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
