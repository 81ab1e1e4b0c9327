// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Chunk splits items into consecutive groups of at most n, preserving order.
// The last group may be shorter. n < 1 is treated as 1.
//
//	utils.Chunk([]string{"a", "b", "c"}, 2) // [[a b] [c]]
func Chunk[T any](items []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	out := make([][]T, 0, (len(items)+n-1)/n)
	for i := 0; i < len(items); i += n {
		end := i + n
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end:end])
	}
	return out
}

// Page normalizes 1-based page/size query values and returns the SQL offset
// and limit. Size is clamped to [1, maxSize].
func Page(page, size, maxSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	return (page - 1) * size, size
}
