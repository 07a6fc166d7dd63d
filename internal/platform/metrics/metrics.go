// Package metrics records compilation metrics in a Prometheus registry.
//
// Each compile gets its own registry so that the textfile written at the end
// of a run describes that run only. The serve command exposes the same
// registry type over HTTP.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/phrazzld/yaha/internal/pipeline"
)

const namespace = "yaha"

// Metrics holds the collectors of one compilation.
type Metrics struct {
	registry *prometheus.Registry

	RecordsIngested    prometheus.Counter
	RecordsRejected    *prometheus.CounterVec
	DomainsWhitelisted prometheus.Counter
	Duplicates         *prometheus.CounterVec
	SpilledRuns        prometheus.Counter
	FetchFailures      *prometheus.CounterVec
	ParseFailures      *prometheus.CounterVec
	OutputDomains      *prometheus.GaugeVec
	SourceDomains      *prometheus.GaugeVec
	SourceUnique       *prometheus.GaugeVec
	CompileDuration    prometheus.Histogram
	LastCompile        prometheus.Gauge
	CompileSkipped     prometheus.Gauge
}

// New creates a Metrics instance registered in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RecordsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "Annotated domain records ingested by the pipeline",
		}),
		RecordsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Candidates dropped during normalization, by source",
		}, []string{"source"}),
		DomainsWhitelisted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domains_whitelisted_total",
			Help:      "Domains removed from the outputs by the whitelist",
		}),
		Duplicates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_records_total",
			Help:      "Records repeating a domain already listed by the same source",
		}, []string{"source"}),
		SpilledRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spilled_runs_total",
			Help:      "Sorted runs spilled to disk",
		}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Sources that could not be fetched",
		}, []string{"source"}),
		ParseFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Sources excluded because their content matched no known format",
		}, []string{"source"}),
		OutputDomains: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "output_domains",
			Help:      "Domains in each published output",
		}, []string{"output"}),
		SourceDomains: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_domains",
			Help:      "Distinct domains contributed by each source",
		}, []string{"source", "category"}),
		SourceUnique: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_unique_domains",
			Help:      "Domains contributed by no other source",
		}, []string{"source", "category"}),
		CompileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Duration of the pipeline run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		LastCompile: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_compile_timestamp_seconds",
			Help:      "Unix time of the last compilation attempt",
		}),
		CompileSkipped: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "compile_skipped",
			Help:      "1 when the last run skipped compilation because nothing changed",
		}),
	}
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Category resolves a source name to its category label.
type Category func(source string) string

// ObserveResult records a completed pipeline run.
func (m *Metrics) ObserveResult(res *pipeline.Result, category Category, started time.Time) {
	m.RecordsIngested.Add(float64(res.Records))
	m.SpilledRuns.Add(float64(res.Runs))
	m.DomainsWhitelisted.Add(float64(res.Diagnostics.WhitelistedCount))
	m.OutputDomains.WithLabelValues("general").Set(float64(res.GeneralCount))
	m.OutputDomains.WithLabelValues("restricted").Set(float64(res.RestrictedCount))

	for name, n := range res.Diagnostics.RejectedBySource {
		m.RecordsRejected.WithLabelValues(name).Add(float64(n))
	}
	for name, n := range res.Diagnostics.Duplicates {
		m.Duplicates.WithLabelValues(name).Add(float64(n))
	}
	for name := range res.Diagnostics.ParseFailures {
		m.ParseFailures.WithLabelValues(name).Inc()
	}
	for name, st := range res.Stats {
		cat := category(name)
		m.SourceDomains.WithLabelValues(name, cat).Set(float64(st.Total))
		m.SourceUnique.WithLabelValues(name, cat).Set(float64(st.Unique))
	}

	m.CompileDuration.Observe(time.Since(started).Seconds())
	m.CompileSkipped.Set(0)
}

// ObserveFetchFailure counts a source that could not be fetched.
func (m *Metrics) ObserveFetchFailure(source string) {
	m.FetchFailures.WithLabelValues(source).Inc()
}

// ObserveSkipped records a run that found nothing to compile.
func (m *Metrics) ObserveSkipped() {
	m.CompileSkipped.Set(1)
}

// MarkCompile stamps the time of this compilation attempt.
func (m *Metrics) MarkCompile(at time.Time) {
	m.LastCompile.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in the Prometheus text format for the
// node_exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
