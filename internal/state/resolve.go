package state

import (
	"errors"
	"fmt"

	"github.com/phrazzld/yaha/internal/domain"
)

// Status is the resolution state of one source within a run.
type Status uint8

const (
	// NeedsFetch is the initial state: no content has been obtained yet.
	NeedsFetch Status = iota
	// Cached means usable content is held, fetched in this run or loaded
	// from the content cache.
	Cached
	// Failed means no content could be obtained. Failed sources contribute
	// nothing to the run.
	Failed
	// Excluded means the source was removed from the run on purpose, e.g.
	// its content matched no known format.
	Excluded
)

var statusNames = [...]string{
	NeedsFetch: "needs_fetch",
	Cached:     "cached",
	Failed:     "failed",
	Excluded:   "excluded",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// ErrInvalidTransition is returned when a Resolution is moved out of a
// state that does not allow it.
var ErrInvalidTransition = errors.New("invalid source state transition")

// Resolution tracks one source through a run. The zero value is not
// usable; start from NewResolution.
//
// Allowed transitions:
//
//	NeedsFetch -> Cached    (Fetched, or FetchFailed with a cached copy)
//	NeedsFetch -> Failed    (FetchFailed without a cached copy)
//	any        -> Excluded  (Exclude)
type Resolution struct {
	Source domain.SourceDescriptor
	Status Status
	// Content and Hash are set once the source is Cached.
	Content []byte
	Hash    string
	// Fresh is true when Content was fetched in this run rather than read
	// from the cache.
	Fresh bool
	// Err holds the fetch error for Failed sources, and for Cached sources
	// that fell back to the cache.
	Err error
}

// NewResolution starts src in NeedsFetch.
func NewResolution(src domain.SourceDescriptor) *Resolution {
	return &Resolution{Source: src, Status: NeedsFetch}
}

// Fetched records freshly fetched content.
func (r *Resolution) Fetched(content []byte, hash string) error {
	if r.Status != NeedsFetch {
		return r.invalid(Cached)
	}
	r.Status = Cached
	r.Content = content
	r.Hash = hash
	r.Fresh = true
	return nil
}

// FromCache records content loaded from the cache without a fetch attempt,
// as in compile-only runs.
func (r *Resolution) FromCache(content []byte, hash string) error {
	if r.Status != NeedsFetch {
		return r.invalid(Cached)
	}
	r.Status = Cached
	r.Content = content
	r.Hash = hash
	return nil
}

// FetchFailed records a failed fetch. When fallback holds a cached copy the
// source stays usable; otherwise it becomes Failed.
func (r *Resolution) FetchFailed(err error, fallback []byte, fallbackHash string, haveFallback bool) error {
	if r.Status != NeedsFetch {
		return r.invalid(Failed)
	}
	r.Err = err
	if haveFallback {
		r.Status = Cached
		r.Content = fallback
		r.Hash = fallbackHash
		return nil
	}
	r.Status = Failed
	return nil
}

// Exclude removes the source from the run and drops any content held.
func (r *Resolution) Exclude(reason error) {
	r.Status = Excluded
	r.Content = nil
	r.Fresh = false
	if reason != nil {
		r.Err = reason
	}
}

// Usable reports whether the source's content may be handed to the pipeline.
func (r *Resolution) Usable() bool {
	return r.Status == Cached
}

func (r *Resolution) invalid(to Status) error {
	return fmt.Errorf("%w: %s: %s -> %s", ErrInvalidTransition, r.Source.Name, r.Status, to)
}

// Tally counts resolutions by status.
func Tally(rs []*Resolution) map[Status]int {
	out := make(map[Status]int, 4)
	for _, r := range rs {
		out[r.Status]++
	}
	return out
}
