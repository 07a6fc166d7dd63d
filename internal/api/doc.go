// Package api serves the published outputs over HTTP: both hosts files, the
// stats.json summary of the last compilation, a health probe and Prometheus
// metrics. Files are read from the output directory on every request, so a
// compile running alongside is picked up as soon as it commits.
package api
