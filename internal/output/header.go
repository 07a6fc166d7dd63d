package output

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/phrazzld/yaha/internal/domain"
)

// TimestampLayout formats the "Last Updated" header line.
const TimestampLayout = "2006-01-02 15:04:05 UTC"

// Header titles for the two outputs.
const (
	GeneralTitle    = "GENERAL - No Restricted"
	RestrictedTitle = "INCLUDING RESTRICTED"
)

// Header builds the comment block written at the top of a hosts file.
// totals maps source names to the number of domains each contributed.
func Header(title string, total int, sources []domain.SourceDescriptor, totals map[string]int, ts time.Time) []string {
	lines := []string{
		"# YAHA - Yet Another Host Aggregator",
		fmt.Sprintf("# Compiled blocklist from multiple sources (%s)", title),
		"#",
		"# Last Updated: " + ts.UTC().Format(TimestampLayout),
		"# Total Domains: " + humanize.Comma(int64(total)),
		"#",
		"# Source Lists:",
	}

	for _, s := range sources {
		flag := ""
		if s.Category == domain.CategoryRestricted {
			flag = " [RESTRICTED]"
		}
		lines = append(lines,
			fmt.Sprintf("#   - %s%s: %s domains", s.Name, flag, humanize.Comma(int64(totals[s.Name]))),
			"#     "+s.URL,
		)
	}

	return append(lines,
		"#",
		"# Usage: Add this URL to your blocklist subscriptions",
		"#",
	)
}

// HostsLine renders one blocked domain.
func HostsLine(d string) string {
	return "0.0.0.0 " + d
}
