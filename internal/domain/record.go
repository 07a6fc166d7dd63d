package domain

// SourceID is the dense index of a source within a run's descriptor snapshot.
// Ids are assigned in descriptor order so that ordering by id is stable across
// runs with the same configuration.
type SourceID uint32

// DomainRecord is one registrable domain contributed by one source.
type DomainRecord struct {
	Domain   string
	Source   SourceID
	Category Category
}

// Less orders records by domain, then by source id.
func (r DomainRecord) Less(o DomainRecord) bool {
	if r.Domain != o.Domain {
		return r.Domain < o.Domain
	}
	return r.Source < o.Source
}

// ContributionStat summarises what a single source adds to the final result.
type ContributionStat struct {
	// Total is the number of distinct domains the source contributes after
	// normalization and whitelist filtering.
	Total int `json:"total"`

	// Unique is the number of domains for which this source is the sole
	// contributor in the final result.
	Unique int `json:"unique"`

	// GeneralUnique is the number of general-output domains for which this
	// source is the only General-category contributor. Always zero for
	// Restricted sources.
	GeneralUnique int `json:"general_unique"`
}
