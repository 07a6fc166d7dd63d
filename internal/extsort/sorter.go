package extsort

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/klauspost/compress/s2"

	"github.com/phrazzld/yaha/internal/domain"
)

// DefaultMaxRecords is the spill threshold used when Config.MaxRecords is unset.
const DefaultMaxRecords = 1 << 20

// ErrFinished is returned by Add after Finish or Close.
var ErrFinished = errors.New("sorter already finished")

// Config controls buffering and spill location.
type Config struct {
	// MaxRecords is the number of records buffered before a run is spilled.
	MaxRecords int

	// TempDir is the parent directory for run files; empty means os.TempDir.
	TempDir string
}

// Sorter accumulates records and produces a sorted Iterator.
// Add must be called from a single goroutine.
type Sorter struct {
	cfg      Config
	buf      []domain.DomainRecord
	dir      string
	runs     []string
	added    int
	finished bool
}

// New creates a Sorter. No files are created until the first spill.
func New(cfg Config) *Sorter {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}
	return &Sorter{
		cfg: cfg,
		buf: make([]domain.DomainRecord, 0, min(cfg.MaxRecords, 4096)),
	}
}

// Add buffers r, spilling a sorted run when the buffer is full.
func (s *Sorter) Add(r domain.DomainRecord) error {
	if s.finished {
		return ErrFinished
	}
	s.buf = append(s.buf, r)
	s.added++
	if len(s.buf) >= s.cfg.MaxRecords {
		return s.spill()
	}
	return nil
}

// Len returns the number of records added so far.
func (s *Sorter) Len() int { return s.added }

// Runs returns the number of run files spilled so far.
func (s *Sorter) Runs() int { return len(s.runs) }

// Finish closes the sorter for writing and returns an Iterator over all
// records in (domain, source id) order. The Iterator owns the run files and
// removes them on Close.
func (s *Sorter) Finish() (*Iterator, error) {
	if s.finished {
		return nil, ErrFinished
	}
	s.finished = true

	slices.SortFunc(s.buf, compareRecords)
	srcs := make([]source, 0, len(s.runs)+1)

	it := &Iterator{dir: s.dir}
	for _, path := range s.runs {
		rr, err := openRun(path)
		if err != nil {
			_ = it.Close()
			return nil, err
		}
		it.closers = append(it.closers, rr)
		srcs = append(srcs, rr)
	}
	if len(s.buf) > 0 {
		srcs = append(srcs, &sliceSource{records: s.buf})
	}
	s.buf = nil
	s.dir = ""

	if err := it.init(srcs); err != nil {
		_ = it.Close()
		return nil, err
	}
	return it, nil
}

// Close discards buffered records and removes any spilled runs. It is a
// no-op once Finish has handed the runs to an Iterator.
func (s *Sorter) Close() error {
	s.finished = true
	s.buf = nil
	if s.dir == "" {
		return nil
	}
	dir := s.dir
	s.dir = ""
	return os.RemoveAll(dir)
}

func (s *Sorter) spill() error {
	if s.dir == "" {
		dir, err := os.MkdirTemp(s.cfg.TempDir, "yaha-sort-*")
		if err != nil {
			return fmt.Errorf("creating spill directory: %w", err)
		}
		s.dir = dir
	}

	slices.SortFunc(s.buf, compareRecords)

	path := filepath.Join(s.dir, fmt.Sprintf("run-%06d.s2", len(s.runs)))
	if err := writeRun(path, s.buf); err != nil {
		return err
	}
	s.runs = append(s.runs, path)
	s.buf = s.buf[:0]
	return nil
}

func writeRun(path string, records []domain.DomainRecord) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("creating run %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing run %s: %w", path, cerr)
		}
	}()

	zw := s2.NewWriter(f)
	bw := bufio.NewWriterSize(zw, 64<<10)
	var scratch []byte
	for _, r := range records {
		scratch = appendRecord(scratch[:0], r)
		if _, err := bw.Write(scratch); err != nil {
			return fmt.Errorf("writing run %s: %w", path, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing run %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compressing run %s: %w", path, err)
	}
	return nil
}

func compareRecords(a, b domain.DomainRecord) int {
	if c := cmp.Compare(a.Domain, b.Domain); c != 0 {
		return c
	}
	return cmp.Compare(a.Source, b.Source)
}
