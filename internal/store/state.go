package store

import (
	"context"
	"time"
)

// SourceState is the change-tracking record kept for one source between runs.
type SourceState struct {
	Name        string
	URL         string
	ContentHash string
	// LastFetched is when the source was last retrieved successfully.
	LastFetched time.Time
	// LastChanged is when the content hash last differed from the stored
	// one. A zero value means the date is unknown; staleness checks never
	// purge such a source.
	LastChanged time.Time
	FetchCount  int
	ChangeCount int
}

// CompilationState is everything persisted between runs.
type CompilationState struct {
	Sources map[string]*SourceState
	// LastCompilation is zero until the first successful compilation.
	LastCompilation     time.Time
	CompilationCount    int
	SkippedCompilations int
}

// NewCompilationState returns an empty state, as seen on a first run.
func NewCompilationState() *CompilationState {
	return &CompilationState{Sources: map[string]*SourceState{}}
}

// StateStore persists CompilationState.
//
// Load returns an empty state, never ErrNotFound, when nothing has been
// saved yet. Save replaces the stored state as a whole: sources missing from
// st are deleted.
type StateStore interface {
	Load(ctx context.Context) (*CompilationState, error)
	Save(ctx context.Context, st *CompilationState) error
}
