// Package urlmatch matches URLs against the patterns used by URL and
// response waits.
//
// A pattern is one of:
//
//	re:^https://.*/api/v1/machines$   regular expression
//	**/console/dashboard              glob; * stops at '/', ** does not
//	/api/                             no wildcard: substring match
package urlmatch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// ErrEmptyPattern is returned for an empty pattern.
var ErrEmptyPattern = errors.New("url pattern is empty")

// Pattern is a compiled URL pattern.
type Pattern struct {
	raw   string
	match func(string) bool
}

// Compile compiles a pattern.
func Compile(pattern string) (*Pattern, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, ErrEmptyPattern
	}

	if expr, ok := strings.CutPrefix(pattern, "re:"); ok {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid url regexp %q: %w", expr, err)
		}
		return &Pattern{raw: pattern, match: re.MatchString}, nil
	}

	if !strings.ContainsAny(pattern, "*?[{") {
		return &Pattern{raw: pattern, match: func(u string) bool {
			return strings.Contains(u, pattern)
		}}, nil
	}

	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid url glob %q: %w", pattern, err)
	}
	return &Pattern{raw: pattern, match: g.Match}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether url matches the pattern.
func (p *Pattern) Match(url string) bool {
	return p.match(url)
}

// String returns the pattern as written.
func (p *Pattern) String() string {
	return p.raw
}
