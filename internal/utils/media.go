package utils

import "strings"

// MediaURL resolves a stored image reference against the media base URL.
// Absolute references are returned unchanged.
func MediaURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ref, "/")
}
