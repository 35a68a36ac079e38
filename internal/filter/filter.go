// Package filter matches names against wildcard patterns (* and ?).
package filter

import (
	"fmt"

	"github.com/gobwas/glob"
)

// NameFilter matches a name against a set of compiled wildcard patterns.
// An empty filter matches everything.
type NameFilter struct {
	patterns []glob.Glob
}

// Compile builds a NameFilter from wildcard patterns. A malformed pattern
// fails compilation rather than silently matching nothing.
func Compile(patterns []string) (*NameFilter, error) {
	f := &NameFilter{}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("filter: pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, g)
	}
	return f, nil
}

// Match reports whether the name matches any pattern (or the filter is
// empty).
func (f *NameFilter) Match(name string) bool {
	if len(f.patterns) == 0 {
		return true
	}
	for _, g := range f.patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}
