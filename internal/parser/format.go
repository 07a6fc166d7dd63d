// Package parser turns raw blocklist text into candidate hostnames.
//
// Three publication formats are understood: hosts files ("0.0.0.0 host"),
// raw one-host-per-line lists, and Adblock-style network rules ("||host^").
// The format is either declared by the source configuration or detected from
// a sample of the content.
package parser

import (
	"fmt"
	"strings"

	"github.com/phrazzld/yaha/internal/domain"
)

// Format identifies the syntax of a blocklist.
type Format uint8

// Supported formats. FormatAuto requests detection.
const (
	FormatAuto Format = iota
	FormatHosts
	FormatRaw
	FormatAdblock
)

// ErrUnknownFormat is returned when content matches no known format or a
// format name cannot be parsed.
var ErrUnknownFormat = fmt.Errorf("%w: unknown format", domain.ErrSourceParse)

// String returns the configuration spelling of the format.
func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatHosts:
		return "hosts"
	case FormatRaw:
		return "raw"
	case FormatAdblock:
		return "adblock"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// ParseFormat converts a configuration value into a Format.
// An empty value means FormatAuto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "hosts":
		return FormatHosts, nil
	case "raw", "domains":
		return FormatRaw, nil
	case "adblock", "abp":
		return FormatAdblock, nil
	default:
		return FormatAuto, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}
