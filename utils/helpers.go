package utils

import (
	"net/url"
	"strings"
)

// UniqueStrings returns a new slice with duplicate and empty entries removed,
// keeping the first occurrence order.
func UniqueStrings(slice []string) []string {
	keys := make(map[string]bool)
	uniqueSlice := []string{}
	for _, entry := range slice {
		if entry == "" {
			continue
		}
		if _, value := keys[entry]; !value {
			keys[entry] = true
			uniqueSlice = append(uniqueSlice, entry)
		}
	}
	return uniqueSlice
}

// ListingIDFromURL derives a stable listing identifier from a detail URL.
// "/dp/<id>/" paths yield the segment after "dp"; otherwise the last
// non-empty path segment is used.
func ListingIDFromURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	segments := []string{}
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return ""
	}

	for i, s := range segments {
		if s == "dp" && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return segments[len(segments)-1]
}
