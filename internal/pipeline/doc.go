// Package pipeline runs one compilation: it parses every fetched source,
// reduces candidate hostnames to registrable domains, sorts the annotated
// records with bounded memory and streams them through deduplication,
// whitelist filtering and contribution accounting into a Sink.
//
// The package performs no network I/O and keeps no state between runs.
// Every tunable is carried by Config; the PSL, whitelist and source list are
// carried by Snapshot.
package pipeline
