// Package extsort sorts domain records that may not fit in memory.
//
// Records are buffered up to a configured threshold, then sorted and spilled
// to immutable, s2-compressed run files in a private temporary directory.
// Finish performs a k-way merge over every run plus the in-memory remainder,
// yielding records ordered by (domain, source id). Memory held at any time is
// bounded by the threshold plus one record per run.
package extsort
