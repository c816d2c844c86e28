// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"faq-rag-api/internal/domain/repository"
)

const (
	// SessionIDHeader 反馈接口用于校验归属的会话头
	SessionIDHeader = "X-Session-Id"
)

// PageRequest 分页请求参数
type PageRequest struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"page_size" json:"page_size"`
}

// Normalize 规范化分页参数
func (r *PageRequest) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = 20
	}
	if r.PageSize > 100 {
		r.PageSize = 100
	}
}

// ToPagination 转换为仓储分页参数
func (r PageRequest) ToPagination() repository.Pagination {
	return repository.NewPagination(r.Page, r.PageSize)
}

// BindPage 从 Gin Context 绑定分页参数
func BindPage(c *gin.Context) PageRequest {
	req := PageRequest{
		Page:     ParseInt(c.Query("page"), 1),
		PageSize: ParseInt(c.Query("page_size"), 20),
	}
	req.Normalize()
	return req
}

// BindSessionID 从 URI 绑定会话 ID
func BindSessionID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

// BindMessageID 从 URI 绑定消息 ID
func BindMessageID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

// BindBool 解析布尔查询参数，失败时返回默认值
func BindBool(c *gin.Context, key string, defaultVal bool) bool {
	s := c.Query(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// ParseInt 解析整数，失败时返回默认值
func ParseInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
