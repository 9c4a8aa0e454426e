package transfer

import "github.com/bmatcuk/doublestar/v4"

// matchesAny reports whether relPath matches any of patterns. relPath must
// use forward slashes (workspace-relative, not OS-native), matching
// doublestar's expectation.
func matchesAny(patterns []string, relPath string) bool {
	for _, pattern := range patterns {
		ok, err := doublestar.Match(pattern, relPath)
		if err == nil && ok {
			return true
		}
	}
	return false
}
