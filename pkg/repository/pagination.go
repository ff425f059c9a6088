// Package repository holds the pagination contract shared by the document repositories.
package repository

// Pagination limits.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Pagination specifies page-based pagination parameters
type Pagination struct {
	Page     int
	PageSize int
}

// NewPagination clamps page to >= 1 and size to [1, MaxPageSize], defaulting to DefaultPageSize.
func NewPagination(page, size int) Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Pagination{Page: page, PageSize: size}
}

// Offset calculates the offset for database queries
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Limit returns the page size for database queries
func (p Pagination) Limit() int {
	return p.PageSize
}

// PageInfo describes one page of a result set.
type PageInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// Info builds the PageInfo for total matching items.
func (p Pagination) Info(total int64) PageInfo {
	pages := 0
	if p.PageSize > 0 && total > 0 {
		pages = int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	}
	return PageInfo{Page: p.Page, Limit: p.PageSize, Total: total, TotalPages: pages}
}
