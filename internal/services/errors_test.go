package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(1, 20, 95)

	assert.Equal(t, 1, p.CurrentPage)
	assert.Equal(t, 20, p.PerPage)
	assert.Equal(t, int64(95), p.TotalItems)
	assert.Equal(t, 5, p.TotalPages)
	assert.True(t, p.HasNextPage)
	assert.False(t, p.HasPreviousPage)
}

func TestNewPaginationLastPage(t *testing.T) {
	p := NewPagination(5, 20, 95)

	assert.False(t, p.HasNextPage)
	assert.True(t, p.HasPreviousPage)
}

func TestNewPaginationEmpty(t *testing.T) {
	p := NewPagination(1, 20, 0)

	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNextPage)
	assert.False(t, p.HasPreviousPage)
}

func TestNormalizePage(t *testing.T) {
	page, perPage := NormalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, perPage)

	page, perPage = NormalizePage(-5, 500)
	assert.Equal(t, 1, page)
	assert.Equal(t, 100, perPage)

	page, perPage = NormalizePage(3, 50)
	assert.Equal(t, 3, page)
	assert.Equal(t, 50, perPage)
}
