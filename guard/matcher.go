package guard

import "strings"

// Matcher reports whether a path is excluded from guard evaluation.
// Each entry excludes itself and everything below it,
// so "/api" excludes "/api" and "/api/auth/login" but not "/apiary"
type Matcher struct {
	prefixes []string
}

// NewMatcher creates a new Matcher from a list of path prefixes
func NewMatcher(prefixes []string) *Matcher {
	m := &Matcher{}
	for _, prefix := range prefixes {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			continue
		}
		prefix = Normalize(prefix)
		if prefix == "/" {
			// Excluding the root would exclude everything
			continue
		}
		m.prefixes = append(m.prefixes, prefix)
	}
	return m
}

// Excluded reports whether p falls under one of the exclusion prefixes
func (m *Matcher) Excluded(p string) bool {
	p = Normalize(p)
	for _, prefix := range m.prefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}
