package parser

import (
	"net/netip"
	"strings"
	"unicode/utf8"
)

// localHosts are the loopback aliases every hosts file declares; they are
// never blocklist entries.
var localHosts = map[string]struct{}{
	"localhost":             {},
	"localhost.localdomain": {},
	"local":                 {},
	"broadcasthost":         {},
	"ip6-localhost":         {},
	"ip6-loopback":          {},
	"ip6-localnet":          {},
	"ip6-mcastprefix":       {},
	"ip6-allnodes":          {},
	"ip6-allrouters":        {},
	"ip6-allhosts":          {},
	"0.0.0.0":               {},
}

// isSkippable reports blank lines and comment lines. '!' and '[' are
// Adblock comment and header markers.
func isSkippable(line string) bool {
	if line == "" {
		return true
	}
	switch line[0] {
	case '#', '!', '[':
		return true
	}
	return false
}

func stripInlineComment(line string) string {
	if i := strings.IndexByte(line, '#'); i != -1 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// hostsEntries parses "<ip> <host> [<host>...]".
func hostsEntries(line string) ([]string, bool) {
	fields := strings.Fields(stripInlineComment(line))
	if len(fields) < 2 {
		return nil, false
	}
	if _, err := netip.ParseAddr(fields[0]); err != nil {
		return nil, false
	}
	hosts := fields[1:]
	out := hosts[:0]
	for _, h := range hosts {
		if _, local := localHosts[strings.ToLower(h)]; local {
			continue
		}
		out = append(out, h)
	}
	return out, true
}

// adblockEntry parses "||host^" with optional trailing options.
func adblockEntry(line string) (string, bool) {
	if !strings.HasPrefix(line, "||") {
		return "", false
	}
	rest := line[2:]
	end := strings.IndexByte(rest, '^')
	if end <= 0 {
		return "", false
	}
	host := rest[:end]
	if !looksLikeHost(host) {
		return "", false
	}
	return host, true
}

// rawEntry parses a bare host, tolerating a leading "*." or "." as written by
// wildcard-style domain lists.
func rawEntry(line string) (string, bool) {
	line = stripInlineComment(line)
	if line == "" || strings.ContainsAny(line, " \t") {
		return "", false
	}
	line = strings.TrimPrefix(line, "*.")
	line = strings.TrimPrefix(line, ".")
	if !looksLikeHost(line) {
		return "", false
	}
	if _, err := netip.ParseAddr(line); err == nil {
		return "", false
	}
	return line, true
}

// looksLikeHost is a cheap structural check used for classification; full
// validation happens in the normalizer.
func looksLikeHost(s string) bool {
	if s == "" || !strings.Contains(s, ".") {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= utf8.RuneSelf:
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '_':
		default:
			return false
		}
	}
	return true
}
