// Package utils holds small parsing helpers used by the HTTP handlers.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as a base-10 int, ignoring surrounding spaces. A blank
// or malformed s yields def.
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// PageBounds limits list paging.
type PageBounds struct {
	DefaultSize int
	MaxSize     int
}

// ParsePage reads a 1-based page number and a page size. Missing or
// malformed values fall back to page 1 and b.DefaultSize; results are
// clamped to page >= 1 and 1 <= size <= b.MaxSize.
func ParsePage(pageStr, sizeStr string, b PageBounds) (page, size int) {
	page = AtoiDefault(pageStr, 1)
	if page < 1 {
		page = 1
	}
	size = AtoiDefault(sizeStr, b.DefaultSize)
	if b.MaxSize > 0 && size > b.MaxSize {
		size = b.MaxSize
	}
	if size < 1 {
		size = 1
	}
	return page, size
}
