package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"buche.app", "*.buche.app", "localhost:*"}

	cases := []struct {
		origin string
		want   bool
	}{
		{"https://buche.app", true},
		{"https://reader.buche.app", true},
		{"http://localhost:5173", true},
		{"http://localhost:3000", true},
		{"https://evil.example", false},
		{"https://buche.app.evil.example", false},
		// No scheme, compared as a bare host.
		{"buche.app", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, originAllowed(patterns, tc.origin), tc.origin)
	}
}

func TestOriginAllowedNoPatterns(t *testing.T) {
	assert.False(t, originAllowed(nil, "https://buche.app"))
}
