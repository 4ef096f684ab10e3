package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination holds pagination parameters.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// ParsePagination reads page and limit query params. limit is capped at 100.
func ParsePagination(c *fiber.Ctx) Pagination {
	page := QueryInt(c, "page", 1)
	limit := QueryInt(c, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page <= 0 {
		page = 1
	}

	return Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// QueryInt parses an integer query param, returning fallback when absent or malformed.
func QueryInt(c *fiber.Ctx, key string, fallback int) int {
	if parsed, err := strconv.Atoi(c.Query(key)); err == nil {
		return parsed
	}
	return fallback
}
