package parser

import (
	"bytes"
	"iter"
	"strings"
)

// DefaultSampleLines is how many content lines Detect inspects.
const DefaultSampleLines = 200

// Detect classifies content by the dominant pattern among the first
// sampleLines non-comment, non-blank lines. Ties prefer hosts, then
// Adblock, then raw. Content in which no sampled line matches any pattern
// yields ErrUnknownFormat.
func Detect(content []byte, sampleLines int) (Format, error) {
	if sampleLines <= 0 {
		sampleLines = DefaultSampleLines
	}

	var hosts, adblock, raw, seen int
	for l := range bytes.Lines(content) {
		line := strings.TrimSpace(string(l))
		if isSkippable(line) {
			continue
		}
		seen++
		switch {
		case isHostsLine(line):
			hosts++
		case isAdblockLine(line):
			adblock++
		case isRawLine(line):
			raw++
		}
		if seen >= sampleLines {
			break
		}
	}

	switch {
	case hosts == 0 && adblock == 0 && raw == 0:
		return FormatAuto, ErrUnknownFormat
	case hosts >= adblock && hosts >= raw:
		return FormatHosts, nil
	case adblock >= raw:
		return FormatAdblock, nil
	default:
		return FormatRaw, nil
	}
}

func isHostsLine(line string) bool {
	_, ok := hostsEntries(line)
	return ok
}

func isAdblockLine(line string) bool {
	_, ok := adblockEntry(line)
	return ok
}

func isRawLine(line string) bool {
	_, ok := rawEntry(line)
	return ok
}

// Hostnames returns the candidate hostnames in content for format f.
// The sequence is lazy and restartable: each iteration rescans content.
// Lines that do not match the format are skipped.
// FormatAuto is resolved with Detect; undetectable content yields nothing.
func Hostnames(content []byte, f Format) iter.Seq[string] {
	return func(yield func(string) bool) {
		format := f
		if format == FormatAuto {
			detected, err := Detect(content, DefaultSampleLines)
			if err != nil {
				return
			}
			format = detected
		}

		for l := range bytes.Lines(content) {
			line := strings.TrimSpace(string(l))
			if isSkippable(line) {
				continue
			}
			switch format {
			case FormatHosts:
				hosts, ok := hostsEntries(line)
				if !ok {
					continue
				}
				for _, h := range hosts {
					if !yield(h) {
						return
					}
				}
			case FormatAdblock:
				if h, ok := adblockEntry(line); ok {
					if !yield(h) {
						return
					}
				}
			case FormatRaw:
				if h, ok := rawEntry(line); ok {
					if !yield(h) {
						return
					}
				}
			}
		}
	}
}

// Resolve settles the format for content: a declared format is returned as
// is, FormatAuto is detected from a sample of sampleLines lines.
func Resolve(content []byte, declared Format, sampleLines int) (Format, error) {
	if declared != FormatAuto {
		return declared, nil
	}
	return Detect(content, sampleLines)
}
