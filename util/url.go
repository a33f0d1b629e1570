package util

import "strings"

// StripQuery drops everything from the first '?' onwards.
func StripQuery(s string) string {
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i]
	}
	return s
}

// TrailingSegment returns the final '/'-delimited segment of s once any query string is removed. It never fails: a
// string ending in '/' yields "", and a string without '/' is returned as-is.
func TrailingSegment(s string) string {
	s = StripQuery(s)
	return s[strings.LastIndexByte(s, '/')+1:]
}
