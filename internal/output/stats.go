package output

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/phrazzld/yaha/internal/domain"
	"github.com/phrazzld/yaha/internal/pipeline"
)

// SourceStats is the per-source entry of stats.json.
type SourceStats struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	Category      string `json:"category"`
	Total         int    `json:"total"`
	Unique        int    `json:"unique"`
	GeneralUnique int    `json:"general_unique"`
	Rejected      int    `json:"rejected,omitempty"`
	Duplicates    int    `json:"duplicates,omitempty"`
}

// Stats is the document written to stats.json after each compilation.
type Stats struct {
	RunID            string        `json:"run_id"`
	GeneratedAt      time.Time     `json:"generated_at"`
	GeneralCount     int           `json:"general_count"`
	RestrictedCount  int           `json:"restricted_count"`
	WhitelistedCount int           `json:"whitelisted_count"`
	Records          int           `json:"records"`
	SpilledRuns      int           `json:"spilled_runs"`
	Sources          []SourceStats `json:"sources"`
	// ParseFailures lists sources excluded because their content matched no
	// known format.
	ParseFailures []string `json:"parse_failures,omitempty"`
}

// BuildStats summarises res for the sources of the run, in source order.
func BuildStats(res *pipeline.Result, sources []domain.SourceDescriptor, generatedAt time.Time) Stats {
	st := Stats{
		RunID:            res.RunID.String(),
		GeneratedAt:      generatedAt.UTC(),
		GeneralCount:     res.GeneralCount,
		RestrictedCount:  res.RestrictedCount,
		WhitelistedCount: res.Diagnostics.WhitelistedCount,
		Records:          res.Records,
		SpilledRuns:      res.Runs,
		Sources:          make([]SourceStats, 0, len(sources)),
	}
	for _, s := range sources {
		c := res.Stats[s.Name]
		st.Sources = append(st.Sources, SourceStats{
			Name:          s.Name,
			URL:           s.URL,
			Category:      s.Category.String(),
			Total:         c.Total,
			Unique:        c.Unique,
			GeneralUnique: c.GeneralUnique,
			Rejected:      res.Diagnostics.RejectedBySource[s.Name],
			Duplicates:    res.Diagnostics.Duplicates[s.Name],
		})
	}
	for name := range res.Diagnostics.ParseFailures {
		st.ParseFailures = append(st.ParseFailures, name)
	}
	slices.Sort(st.ParseFailures)
	return st
}

// Encode renders the document as indented JSON with a trailing newline.
func (s Stats) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding stats: %w", err)
	}
	return append(data, '\n'), nil
}
