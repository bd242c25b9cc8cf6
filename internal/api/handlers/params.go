package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaginationParams holds parsed pagination parameters
type PaginationParams struct {
	Page  int
	Limit int
}

// DateRangeParams holds parsed date range parameters
type DateRangeParams struct {
	From time.Time
	To   time.Time
}

// QueryParamParser parses request parameters, keeping the first error
type QueryParamParser struct {
	c   *gin.Context
	err error
}

// NewQueryParamParser creates a new query parameter parser
func NewQueryParamParser(c *gin.Context) *QueryParamParser {
	return &QueryParamParser{c: c}
}

// Error returns any parsing error that occurred
func (p *QueryParamParser) Error() error {
	return p.err
}

// Pagination parses and validates pagination parameters
func (p *QueryParamParser) Pagination(defaultLimit int) PaginationParams {
	if p.err != nil {
		return PaginationParams{Page: 1, Limit: defaultLimit}
	}

	page := p.integer("page", 1)
	limit := p.integer("limit", defaultLimit)
	if p.err != nil {
		return PaginationParams{Page: 1, Limit: defaultLimit}
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}

	return PaginationParams{Page: page, Limit: limit}
}

func (p *QueryParamParser) integer(key string, def int) int {
	raw := p.c.Query(key)
	if raw == "" || p.err != nil {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.err = fmt.Errorf("invalid '%s' parameter: must be a number", key)
		return def
	}
	return v
}

// DateRange parses and validates date range parameters
func (p *QueryParamParser) DateRange(fromKey, toKey string) DateRangeParams {
	if p.err != nil {
		return DateRangeParams{}
	}

	var result DateRangeParams

	if fromStr := p.c.Query(fromKey); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			p.err = fmt.Errorf("invalid '%s' date format: use RFC3339 format (e.g., 2024-01-15T00:00:00Z)", fromKey)
			return DateRangeParams{}
		}
		result.From = parsed
	}

	if toStr := p.c.Query(toKey); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			p.err = fmt.Errorf("invalid '%s' date format: use RFC3339 format (e.g., 2024-01-15T23:59:59Z)", toKey)
			return DateRangeParams{}
		}
		result.To = parsed
	}

	if !result.From.IsZero() && !result.To.IsZero() && result.From.After(result.To) {
		p.err = fmt.Errorf("'%s' must be before or equal to '%s'", fromKey, toKey)
		return DateRangeParams{}
	}

	return result
}

// Bool parses a boolean flag; absent means false
func (p *QueryParamParser) Bool(key string) bool {
	raw := p.c.Query(key)
	if raw == "" || p.err != nil {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.err = fmt.Errorf("invalid '%s' parameter: must be true or false", key)
		return false
	}
	return v
}

// String gets a string parameter with optional default
func (p *QueryParamParser) String(key, defaultValue string) string {
	if p.err != nil {
		return defaultValue
	}

	value := strings.TrimSpace(p.c.Query(key))
	if value == "" {
		return defaultValue
	}
	return value
}

// UUIDParam parses a path parameter as an item ID
func (p *QueryParamParser) UUIDParam(key string) uuid.UUID {
	if p.err != nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(p.c.Param(key))
	if err != nil {
		p.err = fmt.Errorf("invalid '%s': must be a UUID", key)
		return uuid.Nil
	}
	return id
}
