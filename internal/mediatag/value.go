package mediatag

import (
	"strconv"
	"strings"
)

// ParseLength parses a tag value as a non-negative byte length. List-valued
// vendor tags ("static_len, video_len") carry the video length in the last
// element; observed vendor output, not a guaranteed mapping.
func ParseLength(value string) (int64, bool) {
	parts := strings.Split(value, ",")
	last := strings.TrimSpace(parts[len(parts)-1])
	if last == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(last, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseTimestampUs parses a tag value as non-negative microseconds.
func ParseTimestampUs(value string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseCount parses a tag value as a positive integer count.
func ParseCount(value string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
