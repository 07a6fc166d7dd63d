package extsort

import (
	"bufio"
	"container/heap"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/s2"

	"github.com/phrazzld/yaha/internal/domain"
)

// source yields records in sorted order.
type source interface {
	next() (domain.DomainRecord, error)
}

type sliceSource struct {
	records []domain.DomainRecord
	pos     int
}

func (s *sliceSource) next() (domain.DomainRecord, error) {
	if s.pos >= len(s.records) {
		return domain.DomainRecord{}, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

type runReader struct {
	path string
	f    *os.File
	br   *bufio.Reader
}

func openRun(path string) (*runReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening run %s: %w", path, err)
	}
	return &runReader{
		path: path,
		f:    f,
		br:   bufio.NewReaderSize(s2.NewReader(f), 64<<10),
	}, nil
}

func (r *runReader) next() (domain.DomainRecord, error) {
	rec, err := readRecord(r.br)
	if err != nil && !errors.Is(err, io.EOF) {
		return rec, fmt.Errorf("reading run %s: %w", r.path, err)
	}
	return rec, err
}

func (r *runReader) Close() error {
	return r.f.Close()
}

type cursor struct {
	rec domain.DomainRecord
	src source
	idx int
}

// mergeHeap orders cursors by record, then by source index so that the merge
// is deterministic.
type mergeHeap []*cursor

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if c := compareRecords(h[i].rec, h[j].rec); c != 0 {
		return c < 0
	}
	return h[i].idx < h[j].idx
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(*cursor)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

// Iterator yields merged records. It is not safe for concurrent use.
type Iterator struct {
	h       mergeHeap
	cur     domain.DomainRecord
	err     error
	closers []io.Closer
	dir     string
	closed  bool
}

func (it *Iterator) init(srcs []source) error {
	for i, src := range srcs {
		rec, err := src.next()
		if errors.Is(err, io.EOF) {
			continue
		}
		if err != nil {
			return err
		}
		it.h = append(it.h, &cursor{rec: rec, src: src, idx: i})
	}
	heap.Init(&it.h)
	return nil
}

// Next advances to the next record. It returns false when the records are
// exhausted or an error occurred; check Err.
func (it *Iterator) Next() bool {
	if it.err != nil || it.closed || len(it.h) == 0 {
		return false
	}

	top := it.h[0]
	it.cur = top.rec

	rec, err := top.src.next()
	switch {
	case errors.Is(err, io.EOF):
		heap.Pop(&it.h)
	case err != nil:
		it.err = err
		return false
	default:
		top.rec = rec
		heap.Fix(&it.h, 0)
	}
	return true
}

// Record returns the record at the current position.
func (it *Iterator) Record() domain.DomainRecord { return it.cur }

// Err returns the first error encountered while merging.
func (it *Iterator) Err() error { return it.err }

// Close releases run files and removes the spill directory.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.h = nil

	var errs []error
	for _, c := range it.closers {
		errs = append(errs, c.Close())
	}
	if it.dir != "" {
		errs = append(errs, os.RemoveAll(it.dir))
	}
	return errors.Join(errs...)
}
