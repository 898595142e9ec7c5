package utils

import (
	"strconv"
)

// StringToInt converts s to int, returning def when s is empty or malformed.
func StringToInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

// ParseID parses a positive numeric path id.
func ParseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// ParseBool returns nil for an empty or malformed value.
func ParseBool(s string) *bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil
	}
	return &b
}
