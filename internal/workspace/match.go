package workspace

import (
	"fmt"
	"path"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher selects documents by slash-separated path relative to the root.
type Matcher struct {
	include []string
	exclude []string
}

func NewMatcher(include, exclude []string) (*Matcher, error) {
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("glob %q: %w", p, doublestar.ErrBadPattern)
		}
	}
	if len(include) == 0 {
		include = []string{"**/*.md"}
	}
	return &Matcher{include: include, exclude: exclude}, nil
}

func (m *Matcher) Match(rel string) bool {
	return matchAny(m.include, rel) && !matchAny(m.exclude, rel)
}

// SkipDir reports whether the walk can skip rel: the directory itself or
// any file directly inside it is excluded.
func (m *Matcher) SkipDir(rel string) bool {
	return matchAny(m.exclude, rel) || matchAny(m.exclude, path.Join(rel, "_"))
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
