package pipeline

import (
	"errors"
	"slices"
	"sync"
)

// ErrSinkClosed is returned by a sink used after Commit or Abort.
var ErrSinkClosed = errors.New("sink already closed")

// MemorySink keeps both outputs in memory. Staged domains become visible
// through General/Restricted accessors only after Commit.
type MemorySink struct {
	mu         sync.RWMutex
	general    []string
	restricted []string

	stagedGeneral    []string
	stagedRestricted []string
	closed           bool
	aborted          bool
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// General stages d for the general output.
func (s *MemorySink) General(d string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.stagedGeneral = append(s.stagedGeneral, d)
	return nil
}

// Restricted stages d for the restricted output.
func (s *MemorySink) Restricted(d string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.stagedRestricted = append(s.stagedRestricted, d)
	return nil
}

// Commit publishes both staged outputs together.
func (s *MemorySink) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.general, s.restricted = s.stagedGeneral, s.stagedRestricted
	s.stagedGeneral, s.stagedRestricted = nil, nil
	s.closed = true
	return nil
}

// Abort discards staged output. It is safe to call more than once.
func (s *MemorySink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.aborted = true
	}
	s.stagedGeneral, s.stagedRestricted = nil, nil
	s.closed = true
	return nil
}

// GeneralDomains returns a copy of the committed general output.
func (s *MemorySink) GeneralDomains() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.general)
}

// RestrictedDomains returns a copy of the committed restricted output.
func (s *MemorySink) RestrictedDomains() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.restricted)
}

// Aborted reports whether the sink was aborted before any commit.
func (s *MemorySink) Aborted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aborted
}
