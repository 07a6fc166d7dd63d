package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/yaha/internal/domain"
)

const readme = "# yaha\n\n" +
	"Use `hosts` for general protection (~1.0M domains).\n" +
	"Use `hosts_restricted` for all the same domains in `hosts` ***plus*** restricted content (**~2.0M domains**).\n\n" +
	"<!-- STATS_START -->\nold stats\n<!-- STATS_END -->\n\n" +
	"## Thanks\n\n<!-- ACKNOWLEDGMENTS_START -->\nold thanks\n<!-- ACKNOWLEDGMENTS_END -->\n"

func testReport() Report {
	return Report{
		Sources: []domain.SourceDescriptor{
			{Name: "beta", URL: "https://b.example", Category: domain.CategoryGeneral,
				Maintainer: domain.Maintainer{Name: "Zed", URL: "https://zed.example", Description: "lists"}},
			{Name: "alpha", URL: "https://a.example", Category: domain.CategoryGeneral,
				Maintainer: domain.Maintainer{Name: "Ann", URL: "https://ann.example", Description: "ads"}},
			{Name: "gamma", URL: "https://g.example", Category: domain.CategoryGeneral},
			{Name: "adult", URL: "https://x.example", Category: domain.CategoryRestricted,
				Maintainer: domain.Maintainer{Name: "Ann", URL: "https://ann.example", Description: "dup"}},
		},
		Stats: map[string]domain.ContributionStat{
			"alpha": {Total: 1000, Unique: 10, GeneralUnique: 50},
			"beta":  {Total: 2000, Unique: 10, GeneralUnique: 50},
			"gamma": {Total: 3000, Unique: 900, GeneralUnique: 900},
			"adult": {Total: 4500000, Unique: 4400000},
		},
		GeneralCount:    4_400_000,
		RestrictedCount: 6_100_000,
		UpdatedAt:       time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
	}
}

func TestFormatCount(t *testing.T) {
	testCases := map[int]string{
		4_400_000:  "4.4M",
		0:          "0.0M",
		12_345_678: "12.3M",
	}
	for n, want := range testCases {
		assert.Equal(t, want, FormatCount(n))
	}
}

func TestRender(t *testing.T) {
	out, err := Render(readme, testReport())
	require.NoError(t, err)

	assert.Contains(t, out, "Use `hosts` for general protection (~4.4M domains).")
	assert.Contains(t, out, "(**~6.1M domains**)")
	assert.NotContains(t, out, "old stats")
	assert.NotContains(t, out, "old thanks")
	assert.Contains(t, out, "General_Domains-4,400,000-")
	assert.Contains(t, out, "Last_Updated-2025--02--03_04:05:06_UTC-")
	assert.Contains(t, out, "<tr><td><a href='https://x.example'>adult</a></td><td>4,500,000</td><td>4,400,000</td></tr>")

	gamma := strings.Index(out, ">gamma<")
	alpha := strings.Index(out, ">alpha<")
	beta := strings.Index(out, ">beta<")
	assert.True(t, gamma < alpha && alpha < beta, "sorted by unique desc then name")

	assert.Contains(t, out, "- [Ann](https://ann.example) - ads\n- [Zed](https://zed.example) - lists")
	assert.NotContains(t, out, "dup")
	assert.True(t, strings.HasSuffix(out, "<!-- ACKNOWLEDGMENTS_END -->\n"))
}

func TestRender_MissingMarkers(t *testing.T) {
	_, err := Render("# no markers\n", testReport())
	assert.ErrorIs(t, err, ErrMissingMarkers)
}

func TestRender_NoMaintainers(t *testing.T) {
	r := testReport()
	for i := range r.Sources {
		r.Sources[i].Maintainer = domain.Maintainer{}
	}
	out, err := Render(readme, r)
	require.NoError(t, err)
	assert.Contains(t, out, "No maintainer information available.")
}

func TestUpdateReadme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README.md")
	require.NoError(t, os.WriteFile(path, []byte(readme), 0o644))

	require.NoError(t, UpdateReadme(path, testReport()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Latest Run")

	t.Run("missing file", func(t *testing.T) {
		err := UpdateReadme(filepath.Join(t.TempDir(), "nope.md"), testReport())
		assert.ErrorIs(t, err, ErrReadmeNotFound)
	})

	t.Run("missing markers leaves file untouched", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "README.md")
		require.NoError(t, os.WriteFile(p, []byte("plain\n"), 0o644))
		assert.ErrorIs(t, UpdateReadme(p, testReport()), ErrMissingMarkers)
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "plain\n", string(data))
	})
}
