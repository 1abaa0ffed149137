package parser

import (
	"fmt"
	"strings"
)

// CoverBaseURL is the Open Library covers host.
const CoverBaseURL = "https://covers.openlibrary.org"

// CoverSize selects one of the cover renditions.
type CoverSize string

const (
	CoverSmall  CoverSize = "S"
	CoverMedium CoverSize = "M"
	CoverLarge  CoverSize = "L"
)

// ParseCoverSize accepts s, m or l in either case.
func ParseCoverSize(s string) (CoverSize, error) {
	switch CoverSize(strings.ToUpper(strings.TrimSpace(s))) {
	case CoverSmall:
		return CoverSmall, nil
	case CoverMedium, "":
		return CoverMedium, nil
	case CoverLarge:
		return CoverLarge, nil
	default:
		return "", fmt.Errorf("cover size must be S, M or L, got %q", s)
	}
}

// CoverImageURL builds the cover URL for a cover id. It reports false when there
// is no usable id so callers can render a placeholder.
func CoverImageURL(coverID *int, size CoverSize) (string, bool) {
	return coverImageURL(CoverBaseURL, coverID, size)
}

func coverImageURL(base string, coverID *int, size CoverSize) (string, bool) {
	if coverID == nil || *coverID == 0 {
		return "", false
	}
	if size == "" {
		size = CoverMedium
	}
	return fmt.Sprintf("%s/b/id/%d-%s.jpg", strings.TrimSuffix(base, "/"), *coverID, size), true
}

// CoverResolver builds cover URLs against a configurable covers host.
type CoverResolver struct {
	BaseURL string
}

// URL returns the cover URL for coverID, or false when there is none.
func (r CoverResolver) URL(coverID *int, size CoverSize) (string, bool) {
	base := r.BaseURL
	if base == "" {
		base = CoverBaseURL
	}
	return coverImageURL(base, coverID, size)
}
