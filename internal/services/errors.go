package services

import (
	"math"

	"github.com/pkg/errors"
)

// Service error categories. Handlers map these onto HTTP status codes.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("resource conflict")
	ErrValidation = errors.New("validation failed")
)

// Pagination describes one page of a listing
type Pagination struct {
	CurrentPage     int   `json:"currentPage"`
	PerPage         int   `json:"perPage"`
	TotalItems      int64 `json:"totalItems"`
	TotalPages      int   `json:"totalPages"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

// NewPagination builds the pagination envelope for a listing
func NewPagination(page, perPage int, total int64) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))

	return Pagination{
		CurrentPage:     page,
		PerPage:         perPage,
		TotalItems:      total,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}

// NormalizePage clamps page and per-page values to sane bounds
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}
