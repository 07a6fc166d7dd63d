// Package whitelist holds the domains that must never be blocked.
//
// A whitelist file has one rule per line: an exact domain, or "*.suffix",
// which matches suffix itself and every strict subdomain. Blank lines and
// lines starting with '#' are ignored. Malformed rules are skipped and
// reported through Set.Rejected.
package whitelist

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/phrazzld/yaha/internal/domain"
	"github.com/phrazzld/yaha/internal/normalize"
)

const wildcardPrefix = "*."

// Set is an immutable collection of whitelist rules.
// The zero value and a nil *Set match nothing.
type Set struct {
	exact    map[string]struct{}
	wildcard *node
	rules    int
	rejected []Rejected
}

// Rejected is a rule line that could not be used.
type Rejected struct {
	Line int
	Rule string
	Err  error
}

// Empty returns a Set with no rules.
func Empty() *Set {
	return &Set{exact: map[string]struct{}{}, wildcard: newNode()}
}

// Load reads whitelist rules from r. Only a failed read is an error.
func Load(r io.Reader) (*Set, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading whitelist: %w", domain.ErrConfig, err)
	}
	return Parse(lines), nil
}

// Parse builds a Set from rule lines. Malformed rules, such as a bare TLD
// or a pattern with an inner '*', are left out and listed by Rejected.
func Parse(lines []string) *Set {
	s := Empty()
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		wild := strings.HasPrefix(line, wildcardPrefix)
		name := strings.TrimPrefix(line, wildcardPrefix)
		if strings.Contains(name, "*") {
			s.reject(i+1, line, fmt.Errorf("%w: unsupported pattern", domain.ErrInvalidHostname))
			continue
		}

		host, err := normalize.CanonicalHost(name)
		if err != nil {
			s.reject(i+1, line, err)
			continue
		}

		if wild {
			s.wildcard.insert(host)
		} else {
			s.exact[host] = struct{}{}
		}
		s.rules++
	}
	return s
}

func (s *Set) reject(line int, rule string, err error) {
	s.rejected = append(s.rejected, Rejected{Line: line, Rule: rule, Err: err})
}

// Match reports whether d is whitelisted. d must already be canonical
// (lowercase ASCII).
func (s *Set) Match(d string) bool {
	if s == nil {
		return false
	}
	if _, ok := s.exact[d]; ok {
		return true
	}
	return s.wildcard != nil && s.wildcard.covers(d)
}

// Len returns the number of rules in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return s.rules
}

// Rejected returns the skipped rule lines in file order.
func (s *Set) Rejected() []Rejected {
	if s == nil {
		return nil
	}
	return s.rejected
}
