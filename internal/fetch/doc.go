// Package fetch downloads blocklist sources.
//
// Client performs a single rate-limited GET with retries and exponential
// backoff; Collector fans a source list out over a task.Pool and
// returns one Outcome per source. A failed source never fails the run: its
// Outcome carries an error wrapping domain.ErrSourceFetch.
package fetch
