// Package aggregate turns a sorted stream of domain records into the two
// output sets and per-source contribution statistics in a single pass.
package aggregate

import (
	"errors"
	"fmt"

	"github.com/phrazzld/yaha/internal/domain"
	"github.com/phrazzld/yaha/internal/whitelist"
)

// ErrUnsorted is returned when the record stream is not ordered by
// (domain, source id).
var ErrUnsorted = errors.New("record stream is not sorted")

// Records is a sorted record stream, as produced by extsort.Iterator.
type Records interface {
	Next() bool
	Record() domain.DomainRecord
	Err() error
}

// Emitter receives surviving domains in sorted order.
type Emitter interface {
	General(domain string) error
	Restricted(domain string) error
}

// Summary is the outcome of one aggregation pass. Per-source slices are
// indexed by domain.SourceID.
type Summary struct {
	// Domains is the number of distinct domains seen, whitelisted included.
	Domains         int
	GeneralCount    int
	RestrictedCount int

	Stats []domain.ContributionStat

	// Duplicates counts records that repeated a (domain, source) pair.
	Duplicates []int

	// Whitelisted samples the skipped domains in sorted order, at most the
	// configured limit. WhitelistedCount is always complete.
	Whitelisted      []string
	WhitelistedCount int
}

// DefaultWhitelistSamples is the number of whitelisted domains kept in
// Summary.Whitelisted unless WithWhitelistSamples says otherwise.
const DefaultWhitelistSamples = 100

type options struct {
	whitelistSamples int
}

// Option adjusts an aggregation pass.
type Option func(*options)

// WithWhitelistSamples caps Summary.Whitelisted at n entries. Zero keeps
// none.
func WithWhitelistSamples(n int) Option {
	return func(o *options) { o.whitelistSamples = max(n, 0) }
}

type group struct {
	domain     string
	sources    []domain.SourceID
	generalIDs []domain.SourceID
}

func (g *group) reset(d string) {
	g.domain = d
	g.sources = g.sources[:0]
	g.generalIDs = g.generalIDs[:0]
}

// Aggregate consumes it, which must be ordered by (domain, source id).
//
// Each distinct domain is checked against wl first; whitelisted domains are
// counted and skipped. A surviving domain goes to the general output when any
// General source lists it, and always to the restricted output, so the
// restricted set is a superset of the general one. For every distinct source
// of a surviving domain Total is incremented; Unique when it is the only
// source; GeneralUnique when it is the only General source of a general
// domain.
func Aggregate(it Records, wl *whitelist.Set, sources []domain.SourceDescriptor, out Emitter, opts ...Option) (Summary, error) {
	o := options{whitelistSamples: DefaultWhitelistSamples}
	for _, opt := range opts {
		opt(&o)
	}

	sum := Summary{
		Stats:      make([]domain.ContributionStat, len(sources)),
		Duplicates: make([]int, len(sources)),
	}

	var g group
	flush := func() error {
		if g.domain == "" {
			return nil
		}
		sum.Domains++

		if wl.Match(g.domain) {
			if len(sum.Whitelisted) < o.whitelistSamples {
				sum.Whitelisted = append(sum.Whitelisted, g.domain)
			}
			sum.WhitelistedCount++
			return nil
		}

		general := len(g.generalIDs) > 0
		if general {
			if err := out.General(g.domain); err != nil {
				return fmt.Errorf("emitting general %s: %w", g.domain, err)
			}
			sum.GeneralCount++
		}
		if err := out.Restricted(g.domain); err != nil {
			return fmt.Errorf("emitting restricted %s: %w", g.domain, err)
		}
		sum.RestrictedCount++

		for _, id := range g.sources {
			sum.Stats[id].Total++
		}
		if len(g.sources) == 1 {
			sum.Stats[g.sources[0]].Unique++
		}
		if len(g.generalIDs) == 1 {
			sum.Stats[g.generalIDs[0]].GeneralUnique++
		}
		return nil
	}

	for it.Next() {
		rec := it.Record()
		if int(rec.Source) >= len(sources) {
			return sum, fmt.Errorf("%w: id %d for %s", domain.ErrUnknownSource, rec.Source, rec.Domain)
		}
		if rec.Domain == "" {
			return sum, fmt.Errorf("%w: empty domain from source %d", domain.ErrInvalidHostname, rec.Source)
		}

		if rec.Domain != g.domain {
			if rec.Domain < g.domain {
				return sum, fmt.Errorf("%w: %s after %s", ErrUnsorted, rec.Domain, g.domain)
			}
			if err := flush(); err != nil {
				return sum, err
			}
			g.reset(rec.Domain)
		} else if last := g.sources[len(g.sources)-1]; last == rec.Source {
			sum.Duplicates[rec.Source]++
			continue
		} else if rec.Source < last {
			return sum, fmt.Errorf("%w: %s source %d after %d", ErrUnsorted, rec.Domain, rec.Source, last)
		}

		g.sources = append(g.sources, rec.Source)
		if rec.Category == domain.CategoryGeneral {
			g.generalIDs = append(g.generalIDs, rec.Source)
		}
	}
	if err := it.Err(); err != nil {
		return sum, fmt.Errorf("reading sorted records: %w", err)
	}
	if err := flush(); err != nil {
		return sum, err
	}
	return sum, nil
}
