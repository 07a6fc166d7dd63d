// Package state applies the between-run rules to compilation state: stale
// source purging, the forced compilation schedule, content change detection,
// and the per-source resolution state machine that decides which content
// reaches the pipeline.
package state

import (
	"time"

	"github.com/phrazzld/yaha/internal/domain"
	"github.com/phrazzld/yaha/internal/store"
)

// Defaults used when configuration leaves a value unset.
const (
	DefaultStaleDays     = 180
	DefaultForceInterval = 7 * 24 * time.Hour
)

// CheckStale drops sources whose content has not changed for more than
// thresholdDays whole days, deleting their entries from st. Sources marked
// Preserve are always kept, as are sources with no recorded change date.
// The returned names are in source order.
func CheckStale(
	st *store.CompilationState,
	sources []domain.SourceDescriptor,
	now time.Time,
	thresholdDays int,
) (active []domain.SourceDescriptor, purged []string) {
	if thresholdDays <= 0 {
		thresholdDays = DefaultStaleDays
	}

	active = make([]domain.SourceDescriptor, 0, len(sources))
	for _, src := range sources {
		if src.Preserve {
			active = append(active, src)
			continue
		}

		ss, ok := st.Sources[src.Name]
		if ok && ss != nil && !ss.LastChanged.IsZero() {
			if staleDays(ss.LastChanged, now) > thresholdDays {
				delete(st.Sources, src.Name)
				purged = append(purged, src.Name)
				continue
			}
		}
		active = append(active, src)
	}
	return active, purged
}

func staleDays(lastChanged, now time.Time) int {
	return int(now.Sub(lastChanged) / (24 * time.Hour))
}

// ShouldForceCompile reports whether a compilation must run even when no
// source changed: on the first run, once interval has elapsed since the
// last compilation, and during the weekly window of Sunday 00:00-00:59 UTC.
func ShouldForceCompile(st *store.CompilationState, now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		interval = DefaultForceInterval
	}
	if st == nil || st.LastCompilation.IsZero() {
		return true
	}
	if now.Sub(st.LastCompilation) >= interval {
		return true
	}
	utc := now.UTC()
	return utc.Weekday() == time.Sunday && utc.Hour() == 0
}

// UpdateSource records a successful fetch of src with content hash and
// reports whether the content differs from the previous fetch. A source seen
// for the first time counts as changed.
func UpdateSource(st *store.CompilationState, src domain.SourceDescriptor, hash string, now time.Time) bool {
	now = now.UTC()
	if st.Sources == nil {
		st.Sources = map[string]*store.SourceState{}
	}

	ss, ok := st.Sources[src.Name]
	if !ok || ss == nil {
		st.Sources[src.Name] = &store.SourceState{
			Name:        src.Name,
			URL:         src.URL,
			ContentHash: hash,
			LastFetched: now,
			LastChanged: now,
			FetchCount:  1,
			ChangeCount: 1,
		}
		return true
	}

	ss.URL = src.URL
	ss.LastFetched = now
	ss.FetchCount++
	if ss.ContentHash == hash {
		return false
	}
	ss.ContentHash = hash
	ss.LastChanged = now
	ss.ChangeCount++
	return true
}
