// Package report rewrites the generated sections of the project README:
// the per-source statistics tables and the maintainer acknowledgements.
package report

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/phrazzld/yaha/internal/domain"
)

// README markers delimiting generated sections.
const (
	StatsStart = "<!-- STATS_START -->"
	StatsEnd   = "<!-- STATS_END -->"
	AckStart   = "<!-- ACKNOWLEDGMENTS_START -->"
	AckEnd     = "<!-- ACKNOWLEDGMENTS_END -->"
)

var (
	// ErrReadmeNotFound is returned when the README does not exist.
	ErrReadmeNotFound = errors.New("readme not found")
	// ErrMissingMarkers is returned when the README lacks the stats markers.
	// The file is left untouched.
	ErrMissingMarkers = errors.New("readme missing stats markers")
)

// Report is the data rendered into the README.
type Report struct {
	Sources         []domain.SourceDescriptor
	Stats           map[string]domain.ContributionStat
	GeneralCount    int
	RestrictedCount int
	UpdatedAt       time.Time
}

var (
	generalSummary    = regexp.MustCompile("(Use `hosts` for general protection \\(~)[^)]+(\\))")
	restrictedSummary = regexp.MustCompile("(Use `hosts_restricted` for all the same domains in `hosts` \\*\\*\\*plus\\*\\*\\* restricted content \\(\\*\\*~)[^)]+(\\*\\*\\))")
)

// FormatCount renders n in millions with one decimal, e.g. "4.4M".
func FormatCount(n int) string {
	return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
}

// UpdateReadme regenerates the statistics and acknowledgement sections of
// the README at path. The acknowledgements section is optional; the stats
// markers are not.
func UpdateReadme(path string, r Report) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrReadmeNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("reading readme: %w", err)
	}

	content, err := Render(string(data), r)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading readme: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing readme: %w", err)
	}
	return nil
}

// Render returns content with its generated sections replaced.
func Render(content string, r Report) (string, error) {
	content = generalSummary.ReplaceAllString(content, "${1}"+FormatCount(r.GeneralCount)+" domains${2}")
	content = restrictedSummary.ReplaceAllString(content, "${1}"+FormatCount(r.RestrictedCount)+" domains${2}")

	content, ok := replaceBetween(content, StatsStart, StatsEnd, statsSection(r))
	if !ok {
		return "", ErrMissingMarkers
	}

	content, _ = replaceBetween(content, AckStart, AckEnd, ackSection(r.Sources))
	return content, nil
}

// replaceBetween swaps everything from start through end (inclusive) for
// section. It reports false when either marker is missing.
func replaceBetween(content, start, end, section string) (string, bool) {
	i := strings.Index(content, start)
	j := strings.Index(content, end)
	if i == -1 || j == -1 || j < i {
		return content, false
	}
	return content[:i] + section + content[j+len(end):], true
}

func statsSection(r Report) string {
	var general, restricted []domain.SourceDescriptor
	for _, s := range r.Sources {
		if s.Category == domain.CategoryRestricted {
			restricted = append(restricted, s)
		} else {
			general = append(general, s)
		}
	}

	generalTable := table(general, r.Stats, func(c domain.ContributionStat) int { return c.GeneralUnique })
	restrictedTable := table(restricted, r.Stats, func(c domain.ContributionStat) int { return c.Unique })

	var b strings.Builder
	b.WriteString(StatsStart + "\n\n## Latest Run\n\n<div align=\"center\">\n\n")
	fmt.Fprintf(&b, "![General Domains](https://img.shields.io/badge/General_Domains-%s-8be9fd?style=for-the-badge&labelColor=6272a4)\n",
		humanize.Comma(int64(r.GeneralCount)))
	fmt.Fprintf(&b, "![Total Domains](https://img.shields.io/badge/Total_Domains_(with_restricted)-%s-ff79c6?style=for-the-badge&labelColor=6272a4)\n",
		humanize.Comma(int64(r.RestrictedCount)))
	fmt.Fprintf(&b, "![Last Updated](https://img.shields.io/badge/Last_Updated-%s-50fa7b?style=for-the-badge&labelColor=6272a4)\n\n",
		badgeDate(r.UpdatedAt))
	b.WriteString("### General Protection Lists\n\n" + generalTable + "\n\n")
	b.WriteString("### Restricted Blocking Lists\n\n" + restrictedTable + "\n\n")
	b.WriteString("</div>\n\n")
	b.WriteString("> [!NOTE]\n")
	b.WriteString("> **Unique Contribution** shows how many domains would disappear if that source were removed.\n")
	b.WriteString("> Sources with low unique counts (~50 or less) provide minimal value.\n\n")
	b.WriteString(StatsEnd)
	return b.String()
}

// badgeDate escapes a timestamp for a shields.io badge, where '-' must be doubled.
func badgeDate(t time.Time) string {
	return strings.NewReplacer("-", "--", " ", "_").Replace(t.UTC().Format("2006-01-02 15:04:05 UTC"))
}

// table renders sources sorted by unique contribution, largest first, then by name.
func table(sources []domain.SourceDescriptor, stats map[string]domain.ContributionStat, unique func(domain.ContributionStat) int) string {
	sorted := slices.Clone(sources)
	slices.SortStableFunc(sorted, func(a, b domain.SourceDescriptor) int {
		if c := cmp.Compare(unique(stats[b.Name]), unique(stats[a.Name])); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	rows := make([]string, 0, len(sorted))
	for _, s := range sorted {
		st := stats[s.Name]
		rows = append(rows, fmt.Sprintf("<tr><td><a href='%s'>%s</a></td><td>%s</td><td>%s</td></tr>",
			s.URL, s.Name, humanize.Comma(int64(st.Total)), humanize.Comma(int64(unique(st)))))
	}

	return "<table align=\"center\">\n<thead>\n<tr>\n<th>Source List</th>\n<th>Total Domains</th>\n<th>Unique Contribution</th>\n</tr>\n</thead>\n<tbody>\n" +
		strings.Join(rows, "\n") +
		"\n</tbody>\n</table>"
}

func ackSection(sources []domain.SourceDescriptor) string {
	seen := map[string]domain.Maintainer{}
	for _, s := range sources {
		if !s.Maintainer.Complete() {
			continue
		}
		if _, ok := seen[s.Maintainer.Name]; !ok {
			seen[s.Maintainer.Name] = s.Maintainer
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)

	body := "No maintainer information available."
	if len(names) > 0 {
		lines := make([]string, len(names))
		for i, name := range names {
			m := seen[name]
			lines[i] = fmt.Sprintf("- [%s](%s) - %s", m.Name, m.URL, m.Description)
		}
		body = strings.Join(lines, "\n")
	}

	return AckStart + "\n\nThanks to the maintainers of all source blocklists:\n\n" + body + "\n\n" + AckEnd
}
