package pipeline

import (
	"github.com/google/uuid"

	"github.com/phrazzld/yaha/internal/domain"
	"github.com/phrazzld/yaha/internal/parser"
	"github.com/phrazzld/yaha/internal/psl"
	"github.com/phrazzld/yaha/internal/whitelist"
)

// Config holds the tunables of a run. It is an immutable value.
type Config struct {
	// Workers bounds concurrent parse and normalize work.
	Workers int
	// SpillThreshold is the number of records buffered before a sorted run
	// is spilled to disk.
	SpillThreshold int
	// TempDir is the parent directory for spill files.
	TempDir string
	// SampleLines is how many lines format detection inspects.
	SampleLines int
	// RejectionSamples caps the diagnostic samples: each input keeps at most
	// this many rejected candidates, the merged rejection list is cut to the
	// same limit overall, and so is the whitelisted domain list. Counts are
	// always complete.
	RejectionSamples int
}

// DefaultConfig returns the settings used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		Workers:          4,
		SpillThreshold:   1_000_000,
		SampleLines:      parser.DefaultSampleLines,
		RejectionSamples: 100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.SpillThreshold <= 0 {
		c.SpillThreshold = d.SpillThreshold
	}
	if c.SampleLines <= 0 {
		c.SampleLines = d.SampleLines
	}
	if c.RejectionSamples < 0 {
		c.RejectionSamples = 0
	} else if c.RejectionSamples == 0 {
		c.RejectionSamples = d.RejectionSamples
	}
	return c
}

// Snapshot is the immutable reference data of a run.
type Snapshot struct {
	Sources   []domain.SourceDescriptor
	Whitelist *whitelist.Set
	PSL       *psl.List
}

// Input is the fetched content of one source. A source may have several
// inputs, e.g. the same list published in more than one format.
type Input struct {
	Source  string
	Content []byte
	Format  parser.Format
}

// Sink receives the two output sets. Domains arrive in sorted order.
// Nothing is visible to consumers until Commit; Abort discards everything.
type Sink interface {
	General(domain string) error
	Restricted(domain string) error
	Commit() error
	Abort() error
}

// Summarizer is implemented by sinks that render run statistics into their
// output, such as hosts file headers. Summarize is called once, after every
// domain has been written and before Commit.
type Summarizer interface {
	Summarize(res *Result)
}

// Rejection records one candidate dropped during normalization.
type Rejection struct {
	Source    string `json:"source"`
	Candidate string `json:"candidate"`
	Reason    string `json:"reason"`
	Err       error  `json:"-"`
}

// Diagnostics describes what a run dropped and why.
type Diagnostics struct {
	// Rejected holds a bounded, sorted sample of rejected candidates.
	Rejected []Rejection `json:"rejected,omitempty"`
	// RejectedBySource counts every rejected candidate.
	RejectedBySource map[string]int `json:"rejected_by_source,omitempty"`
	Whitelisted      []string       `json:"whitelisted,omitempty"`
	WhitelistedCount int            `json:"whitelisted_count"`
	// Duplicates counts records repeating a (domain, source) pair.
	Duplicates map[string]int `json:"duplicates,omitempty"`
	// ParseFailures lists the sources excluded because their content
	// matched no known format.
	ParseFailures map[string]error `json:"-"`
}

// Result summarises a successful run.
type Result struct {
	RunID           uuid.UUID                          `json:"run_id"`
	GeneralCount    int                                `json:"general_count"`
	RestrictedCount int                                `json:"restricted_count"`
	Stats           map[string]domain.ContributionStat `json:"stats"`
	Diagnostics     Diagnostics                        `json:"diagnostics"`
	// Records is the number of annotated records ingested.
	Records int `json:"records"`
	// Runs is the number of sorted runs spilled to disk.
	Runs int `json:"runs"`
}
