// Package psl loads Public Suffix List snapshots.
//
// A List is an immutable value loaded explicitly for one run and handed to
// the normalizer; there is no package-level list, so concurrent or sequential
// runs using different snapshots never observe each other's rules.
package psl

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/phrazzld/yaha/internal/domain"
	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// RuleCounts breaks down a snapshot by rule kind.
type RuleCounts struct {
	Normal    int
	Wildcard  int
	Exception int
}

// Total returns the number of rules in the snapshot.
func (c RuleCounts) Total() int {
	return c.Normal + c.Wildcard + c.Exception
}

// List is a parsed, immutable Public Suffix List snapshot.
type List struct {
	rules   *publicsuffix.List
	version string
	counts  RuleCounts
}

// findOptions includes private-section rules (github.io, blogspot.com, ...)
// and falls back to the implicit "*" rule for unknown TLDs.
var findOptions = &publicsuffix.FindOptions{
	IgnorePrivate: false,
	DefaultRule:   publicsuffix.DefaultRule,
}

// Parse builds a List from raw PSL data. Rules are ASCII-encoded so that
// internationalized suffixes match punycoded hostnames.
func Parse(data []byte) (*List, error) {
	list := publicsuffix.NewList()
	rules, err := list.Load(bytes.NewReader(data), &publicsuffix.ParserOption{
		PrivateDomains: true,
		ASCIIEncoded:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: parse public suffix list: %w", domain.ErrConfig, err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: public suffix list contains no rules", domain.ErrConfig)
	}

	var counts RuleCounts
	for _, r := range rules {
		switch r.Type {
		case publicsuffix.WildcardType:
			counts.Wildcard++
		case publicsuffix.ExceptionType:
			counts.Exception++
		default:
			counts.Normal++
		}
	}

	sum := sha256.Sum256(data)
	return &List{
		rules:   list,
		version: hex.EncodeToString(sum[:]),
		counts:  counts,
	}, nil
}

// Load reads and parses a PSL snapshot from r.
func Load(r io.Reader) (*List, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read public suffix list: %w", domain.ErrConfig, err)
	}
	return Parse(data)
}

// LoadFile reads and parses the PSL snapshot stored at path.
func LoadFile(path string) (*List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read public suffix list: %w", domain.ErrConfig, err)
	}
	return Parse(data)
}

// Version identifies the snapshot by the SHA-256 of its source bytes.
func (l *List) Version() string {
	return l.version
}

// Counts returns the number of rules of each kind.
func (l *List) Counts() RuleCounts {
	return l.counts
}

// Split separates an ASCII, lowercase hostname into the labels left of its
// public suffix and the suffix itself, applying the longest matching rule
// (wildcards match one label, exception rules override). When the hostname
// is itself a public suffix, prefix is empty.
func (l *List) Split(host string) (prefix, suffix string) {
	rule := l.rules.Find(host, findOptions)
	if rule == nil {
		return "", ""
	}
	parts := rule.Decompose(host)
	return parts[0], parts[1]
}
