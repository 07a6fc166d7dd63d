// Package output publishes a compilation: the general and restricted hosts
// files and the stats.json summary. All files become visible together when
// the FileSink commits; an aborted run leaves the previous outputs in place.
package output
