// Package normalize validates candidate hostnames and reduces them to their
// registrable domain (eTLD+1) using a Public Suffix List snapshot.
package normalize

import (
	"fmt"
	"net/netip"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"

	"github.com/phrazzld/yaha/internal/domain"
	"github.com/phrazzld/yaha/internal/psl"
)

const (
	maxHostLength  = 253
	maxLabelLength = 63
)

// Normalizer maps candidate hostnames to registrable domains.
// It performs no I/O and is safe for concurrent use.
type Normalizer struct {
	list *psl.List
}

// New returns a Normalizer bound to one PSL snapshot.
func New(list *psl.List) *Normalizer {
	return &Normalizer{list: list}
}

// Registrable returns the registrable domain for candidate: the matched
// public suffix plus the one label immediately to its left.
//
// Errors wrap domain.ErrInvalidHostname for malformed input and
// domain.ErrPublicSuffix when the hostname is itself a public suffix.
func (n *Normalizer) Registrable(candidate string) (string, error) {
	host, err := CanonicalHost(candidate)
	if err != nil {
		return "", err
	}

	prefix, suffix := n.list.Split(host)
	if prefix == "" || suffix == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrPublicSuffix, host)
	}

	label := prefix
	if i := strings.LastIndexByte(prefix, '.'); i != -1 {
		label = prefix[i+1:]
	}
	return label + "." + suffix, nil
}

// CanonicalHost lowercases, IDNA-encodes and validates a bare hostname.
// IP literals are rejected: a blocklist entry must name a domain.
func CanonicalHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("%w: empty host", domain.ErrInvalidHostname)
	}

	if _, err := netip.ParseAddr(host); err == nil {
		return "", fmt.Errorf("%w: ip literal %s", domain.ErrInvalidHostname, host)
	}

	if isASCII(host) {
		host = lowerASCII(host)
	} else {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return "", fmt.Errorf("%w: idna: %w", domain.ErrInvalidHostname, err)
		}
		host = strings.ToLower(ascii)
	}

	if err := validateHost(host); err != nil {
		return "", err
	}
	return host, nil
}

func validateHost(host string) error {
	if len(host) > maxHostLength {
		return fmt.Errorf("%w: %d characters exceeds %d", domain.ErrInvalidHostname, len(host), maxHostLength)
	}

	labels := 0
	for label := range strings.SplitSeq(host, ".") {
		labels++
		if label == "" {
			return fmt.Errorf("%w: empty label in %s", domain.ErrInvalidHostname, host)
		}
		if len(label) > maxLabelLength {
			return fmt.Errorf("%w: label exceeds %d characters in %s", domain.ErrInvalidHostname, maxLabelLength, host)
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return fmt.Errorf("%w: label %q starts or ends with a hyphen", domain.ErrInvalidHostname, label)
		}
		for i := 0; i < len(label); i++ {
			if !isHostByte(label[i]) {
				return fmt.Errorf("%w: invalid character %q in %s", domain.ErrInvalidHostname, label[i], host)
			}
		}
	}
	if labels < 2 {
		return fmt.Errorf("%w: single-label host %s", domain.ErrInvalidHostname, host)
	}
	return nil
}

// isHostByte accepts LDH characters plus underscore, which real blocklists
// carry in service-style labels (_dmarc, tracking_pixel).
func isHostByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func lowerASCII(s string) string {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if b[j] >= 'A' && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}
