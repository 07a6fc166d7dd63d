package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/yaha/internal/aggregate"
	"github.com/phrazzld/yaha/internal/domain"
	"github.com/phrazzld/yaha/internal/extsort"
	"github.com/phrazzld/yaha/internal/normalize"
	"github.com/phrazzld/yaha/internal/parser"
	"github.com/phrazzld/yaha/internal/platform/logger"
)

const (
	tracerName = "github.com/phrazzld/yaha/internal/pipeline"
	batchSize  = 1024
)

// job is one input bound to its source for the ingest stage.
type job struct {
	input  Input
	id     domain.SourceID
	source domain.SourceDescriptor
	format parser.Format
}

// ingestStats accumulates per-input diagnostics from concurrent workers.
type ingestStats struct {
	mu               sync.Mutex
	rejected         []Rejection
	rejectedBySource map[string]int
}

func (s *ingestStats) add(source string, count int, samples []Rejection) {
	if count == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectedBySource[source] += count
	s.rejected = append(s.rejected, samples...)
}

// Run compiles inputs into sink.
//
// Configuration problems (invalid descriptors, an input naming an unknown
// source, a missing PSL) fail the run with an error wrapping
// domain.ErrConfig before anything is processed. A source whose content
// matches no known format is excluded and reported in
// Result.Diagnostics.ParseFailures. Invalid candidates are dropped and
// counted. On any error sink.Abort is called; on success sink.Commit
// publishes both outputs together.
func Run(ctx context.Context, cfg Config, snap Snapshot, inputs []Input, sink Sink) (res *Result, err error) {
	cfg = cfg.withDefaults()
	runID := uuid.New()
	log := logger.FromContext(ctx).With("run_id", runID.String())

	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.Run",
		trace.WithAttributes(
			attribute.String("run_id", runID.String()),
			attribute.Int("sources", len(snap.Sources)),
			attribute.Int("inputs", len(inputs)),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if abortErr := sink.Abort(); abortErr != nil {
				log.Error("failed to abort sink", "error", abortErr)
			}
		}
		span.End()
	}()

	started := time.Now()

	jobs, parseFailures, err := plan(cfg, snap, inputs, log)
	if err != nil {
		return nil, err
	}

	sorter := extsort.New(extsort.Config{MaxRecords: cfg.SpillThreshold, TempDir: cfg.TempDir})
	defer func() { _ = sorter.Close() }()

	stats, err := ingest(ctx, cfg, snap, jobs, sorter, log)
	if err != nil {
		return nil, err
	}

	res = &Result{
		RunID:   runID,
		Records: sorter.Len(),
		Runs:    sorter.Runs(),
	}
	log.Info("ingest complete",
		"records", res.Records,
		"spilled_runs", res.Runs,
		"rejected", sumCounts(stats.rejectedBySource),
		"duration_ms", time.Since(started).Milliseconds())

	_, mergeSpan := otel.Tracer(tracerName).Start(ctx, "pipeline.aggregate")
	it, err := sorter.Finish()
	if err != nil {
		mergeSpan.End()
		return nil, fmt.Errorf("merging sorted runs: %w", err)
	}
	sum, err := aggregate.Aggregate(it, snap.Whitelist, snap.Sources, sink,
		aggregate.WithWhitelistSamples(cfg.RejectionSamples))
	closeErr := it.Close()
	mergeSpan.SetAttributes(
		attribute.Int("domains", sum.Domains),
		attribute.Int("general", sum.GeneralCount),
		attribute.Int("restricted", sum.RestrictedCount),
	)
	mergeSpan.End()
	if err != nil {
		return nil, fmt.Errorf("aggregating: %w", err)
	}
	if closeErr != nil {
		log.Warn("failed to remove spill files", "error", closeErr)
	}

	res.GeneralCount = sum.GeneralCount
	res.RestrictedCount = sum.RestrictedCount
	res.Stats = make(map[string]domain.ContributionStat, len(snap.Sources))
	res.Diagnostics = Diagnostics{
		Rejected:         sortedSamples(stats.rejected, cfg.RejectionSamples),
		RejectedBySource: stats.rejectedBySource,
		Whitelisted:      sum.Whitelisted,
		WhitelistedCount: sum.WhitelistedCount,
		Duplicates:       map[string]int{},
		ParseFailures:    parseFailures,
	}
	for id, s := range snap.Sources {
		res.Stats[s.Name] = sum.Stats[id]
		if n := sum.Duplicates[id]; n > 0 {
			res.Diagnostics.Duplicates[s.Name] = n
		}
	}

	if s, ok := sink.(Summarizer); ok {
		s.Summarize(res)
	}
	if err := sink.Commit(); err != nil {
		return nil, fmt.Errorf("committing outputs: %w", err)
	}

	log.Info("compilation complete",
		"general", res.GeneralCount,
		"restricted", res.RestrictedCount,
		"whitelisted", res.Diagnostics.WhitelistedCount,
		"parse_failures", len(parseFailures),
		"duration_ms", time.Since(started).Milliseconds())
	return res, nil
}

// plan validates the snapshot, binds inputs to source ids and settles each
// input's format. Sources with undetectable content are excluded entirely.
func plan(cfg Config, snap Snapshot, inputs []Input, log *slog.Logger) ([]job, map[string]error, error) {
	if snap.PSL == nil {
		return nil, nil, fmt.Errorf("%w: no public suffix list", domain.ErrConfig)
	}
	if err := domain.ValidateSources(snap.Sources); err != nil {
		return nil, nil, err
	}

	ids := make(map[string]domain.SourceID, len(snap.Sources))
	for i, s := range snap.Sources {
		ids[s.Name] = domain.SourceID(i)
	}

	jobs := make([]job, 0, len(inputs))
	for i, in := range inputs {
		id, ok := ids[in.Source]
		if !ok {
			return nil, nil, fmt.Errorf("%w: input %d: %w: %q", domain.ErrConfig, i+1, domain.ErrUnknownSource, in.Source)
		}
		jobs = append(jobs, job{input: in, id: id, source: snap.Sources[id]})
	}

	failures := map[string]error{}
	for i := range jobs {
		j := &jobs[i]
		f, err := parser.Resolve(j.input.Content, j.input.Format, cfg.SampleLines)
		if err != nil {
			if _, seen := failures[j.source.Name]; !seen {
				failures[j.source.Name] = fmt.Errorf("source %s: %w", j.source.Name, err)
				log.Warn("excluding source with unrecognised content",
					"source", j.source.Name,
					"bytes", len(j.input.Content),
					"error", err)
			}
			continue
		}
		j.format = f
	}

	kept := jobs[:0]
	for _, j := range jobs {
		if _, failed := failures[j.source.Name]; !failed {
			kept = append(kept, j)
		}
	}
	return kept, failures, nil
}

// ingest normalizes every job concurrently and feeds the single sorter
// writer. It returns once every record is in the sorter.
func ingest(ctx context.Context, cfg Config, snap Snapshot, jobs []job, sorter *extsort.Sorter, log *slog.Logger) (*ingestStats, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.ingest")
	defer span.End()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stats := &ingestStats{rejectedBySource: map[string]int{}}
	batches := make(chan []domain.DomainRecord, cfg.Workers)

	consumed := make(chan error, 1)
	go func() {
		var addErr error
		for batch := range batches {
			if addErr != nil {
				continue
			}
			for _, r := range batch {
				if addErr = sorter.Add(r); addErr != nil {
					cancel(addErr)
					break
				}
			}
		}
		consumed <- addErr
	}()

	norm := normalize.New(snap.PSL)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, j := range jobs {
		g.Go(func() error {
			return ingestOne(gctx, cfg, norm, j, batches, stats, log)
		})
	}

	werr := g.Wait()
	close(batches)
	cerr := <-consumed

	switch {
	case cerr != nil:
		return nil, fmt.Errorf("buffering records: %w", cerr)
	case werr != nil:
		return nil, werr
	case ctx.Err() != nil:
		return nil, context.Cause(ctx)
	}
	span.SetAttributes(attribute.Int("records", sorter.Len()))
	return stats, nil
}

func ingestOne(
	ctx context.Context,
	cfg Config,
	norm *normalize.Normalizer,
	j job,
	out chan<- []domain.DomainRecord,
	stats *ingestStats,
	log *slog.Logger,
) error {
	var (
		batch    = make([]domain.DomainRecord, 0, batchSize)
		rejected int
		samples  []Rejection
		emitted  int
	)

	send := func() error {
		if len(batch) == 0 {
			return nil
		}
		select {
		case out <- batch:
			batch = make([]domain.DomainRecord, 0, batchSize)
			return nil
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}

	for candidate := range parser.Hostnames(j.input.Content, j.format) {
		d, err := norm.Registrable(candidate)
		if err != nil {
			rejected++
			if len(samples) < cfg.RejectionSamples {
				samples = append(samples, Rejection{
					Source:    j.source.Name,
					Candidate: candidate,
					Reason:    rejectionReason(err),
					Err:       err,
				})
			}
			continue
		}

		batch = append(batch, domain.DomainRecord{Domain: d, Source: j.id, Category: j.source.Category})
		emitted++
		if len(batch) == batchSize {
			if err := send(); err != nil {
				return err
			}
		}
	}
	if err := send(); err != nil {
		return err
	}

	stats.add(j.source.Name, rejected, samples)
	log.Debug("source ingested",
		"source", j.source.Name,
		"format", j.format.String(),
		"records", emitted,
		"rejected", rejected)
	return nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrPublicSuffix):
		return "public_suffix"
	case errors.Is(err, domain.ErrInvalidHostname):
		return "invalid_hostname"
	default:
		return "other"
	}
}

func sortedSamples(samples []Rejection, limit int) []Rejection {
	slices.SortFunc(samples, func(a, b Rejection) int {
		if c := cmp.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		return cmp.Compare(a.Candidate, b.Candidate)
	})
	if len(samples) > limit {
		samples = samples[:limit]
	}
	return samples
}

func sumCounts(m map[string]int) int {
	var n int
	for _, v := range m {
		n += v
	}
	return n
}
