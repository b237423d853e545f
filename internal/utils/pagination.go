// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Window returns the half-open bounds [lo, hi) of page within a list of n
// items split into pages of size, together with the page count. Pages are
// 1-based. A page past the end yields lo == hi == n.
//
//	lo, hi, pages := utils.Window(45, 3, 20) // 40, 45, 3
func Window(n, page, size int) (lo, hi, pages int) {
	if size < 1 {
		size = 1
	}
	if page < 1 {
		page = 1
	}
	if n < 0 {
		n = 0
	}
	pages = (n + size - 1) / size
	lo = (page - 1) * size
	if lo > n {
		lo = n
	}
	hi = lo + size
	if hi > n {
		hi = n
	}
	return lo, hi, pages
}
