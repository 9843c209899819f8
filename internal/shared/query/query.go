// Package query holds the pagination and sorting primitives shared by list
// endpoints. Sort fields always go through a whitelist that maps the public
// name to a SQL expression, so user input never reaches ORDER BY directly.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

type Pagination struct {
	Page     int
	PageSize int
}

type Sort struct {
	Field string
	Order string
}

// NewPagination clamps page and page size into their valid ranges.
func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// TotalPages returns ceil(total / page size).
func (p Pagination) TotalPages(total int64) int {
	if p.PageSize <= 0 {
		return 0
	}
	return int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
}

// NewSort normalizes the order; an empty field falls back to defaultField.
func NewSort(field, order, defaultField string) Sort {
	field = strings.TrimSpace(field)
	if field == "" {
		field = defaultField
	}
	order = strings.ToLower(strings.TrimSpace(order))
	if order != OrderAsc && order != OrderDesc {
		order = OrderDesc
	}
	return Sort{Field: field, Order: order}
}

// ParsePagination reads page and page_size from the query string.
func ParsePagination(c *gin.Context) Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(DefaultPageSize)))
	return NewPagination(page, pageSize)
}

// ParseSort reads sort and order from the query string.
func ParseSort(c *gin.Context, defaultField string) Sort {
	return NewSort(c.Query("sort"), c.Query("order"), defaultField)
}

// ApplySort orders by the whitelisted column for s.Field. Unknown fields
// return an error so the caller can answer 400 instead of silently reordering.
func ApplySort(db *gorm.DB, s Sort, allowed map[string]string) (*gorm.DB, error) {
	column, ok := allowed[s.Field]
	if !ok {
		return db, fmt.Errorf("unsupported sort field %q", s.Field)
	}
	return db.Order(fmt.Sprintf("%s %s", column, strings.ToUpper(s.Order))), nil
}

func ApplyPagination(db *gorm.DB, p Pagination) *gorm.DB {
	return db.Offset(p.Offset()).Limit(p.PageSize)
}
