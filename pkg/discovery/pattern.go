package discovery

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects files by glob patterns against their slash-separated path
// relative to the search root.
type Filter struct {
	includes []string
	excludes []string
}

// NewFilter validates the patterns. Excludes take precedence over includes;
// with no includes every non-excluded file matches.
func NewFilter(includes, excludes []string) (*Filter, error) {
	for _, pattern := range append(append([]string{}, includes...), excludes...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
	}
	return &Filter{includes: includes, excludes: excludes}, nil
}

func (f *Filter) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)

	if matchAny(f.excludes, relPath) {
		return false
	}
	if len(f.includes) == 0 {
		return true
	}
	return matchAny(f.includes, relPath)
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		// patterns were validated in NewFilter
		if doublestar.MatchUnvalidated(pattern, path) {
			return true
		}
	}
	return false
}
