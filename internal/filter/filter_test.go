package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for wildcard filters:
// - Empty filter matches everything
// - '*' and '?' semantics over fully qualified names
// - Multiple patterns are OR'd
// - Malformed patterns fail compilation

func TestCompileAndMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		patterns []string
		matches  []string
		misses   []string
	}{
		{
			name:    "empty matches all",
			matches: []string{"MyApp.Services.UserService", ""},
		},
		{
			name:     "prefix wildcard",
			patterns: []string{"MyApp.Services.*"},
			matches:  []string{"MyApp.Services.UserService", "MyApp.Services.Nested.Impl"},
			misses:   []string{"MyApp.Models.User"},
		},
		{
			name:     "suffix wildcard",
			patterns: []string{"*Controller"},
			matches:  []string{"MyApp.Web.HomeController"},
			misses:   []string{"MyApp.Web.HomeControllerBase"},
		},
		{
			name:     "single character",
			patterns: []string{"Item?"},
			matches:  []string{"Item1", "ItemX"},
			misses:   []string{"Item", "Item12"},
		},
		{
			name:     "multiple patterns or",
			patterns: []string{"*Service", "*Repository"},
			matches:  []string{"UserService", "UserRepository"},
			misses:   []string{"UserController"},
		},
		{
			name:     "blank patterns ignored",
			patterns: []string{"", "*Service"},
			matches:  []string{"UserService"},
			misses:   []string{"UserController"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.patterns)
			require.NoError(t, err)
			for _, name := range tt.matches {
				assert.True(t, f.Match(name), "expected %q to match", name)
			}
			for _, name := range tt.misses {
				assert.False(t, f.Match(name), "expected %q not to match", name)
			}
		})
	}
}

func TestCompile_Malformed(t *testing.T) {
	t.Parallel()

	_, err := Compile([]string{"[unclosed"})
	assert.Error(t, err)
}
