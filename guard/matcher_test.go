package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcher_Excluded(t *testing.T) {
	m := NewMatcher([]string{"/api", "/static/", " /favicon.ico ", "", "/"})

	excluded := []string{"/api", "/api/", "/api/auth/login", "/static/app.js", "/favicon.ico"}
	for _, p := range excluded {
		assert.True(t, m.Excluded(p), p)
	}

	guarded := []string{"/", "/apiary", "/settings", "/statics", "/favicon.ico.bak", "/courses/api"}
	for _, p := range guarded {
		assert.False(t, m.Excluded(p), p)
	}
}

func TestMatcher_Empty(t *testing.T) {
	m := NewMatcher(nil)
	assert.False(t, m.Excluded("/api"))
}
