package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(0, 0)
	assert.Equal(t, Pagination{Page: 1, PageSize: 20}, p)
	assert.Equal(t, 0, p.Offset())

	p = NewPagination(3, 500)
	assert.Equal(t, 100, p.Limit())
	assert.Equal(t, 200, p.Offset())
}

func TestNewPagedResultPages(t *testing.T) {
	p := NewPagination(1, 20)
	assert.Equal(t, 0, NewPagedResult([]int{}, 0, p).TotalPages)
	assert.Equal(t, 1, NewPagedResult([]int{1}, 20, p).TotalPages)
	assert.Equal(t, 2, NewPagedResult([]int{1}, 21, p).TotalPages)
}
