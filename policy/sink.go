package policy

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/pithecene-io/rdint/types"
)

// Sink abstracts persistence for policies.
// Implementations write to a trace file, an archive dataset, a database,
// or stub for testing.
//
// Writes are batch-oriented to serve both strict (batch of 1) and
// buffered policies.
type Sink interface {
	// WriteRecords persists a batch of records.
	// Must preserve ordering within the batch.
	WriteRecords(ctx context.Context, records []*types.TraceRecord) error

	// Close releases any resources held by the sink.
	Close() error
}

// StubSink is a test sink that accepts writes without persisting.
// Tracks write statistics for test assertions.
type StubSink struct {
	mu sync.Mutex

	// RecordsWritten is the total count of records written.
	RecordsWritten int64
	// Batches is the number of WriteRecords calls.
	Batches int64
	// Closed indicates whether Close was called.
	Closed bool

	// Written stores all written records for inspection.
	Written []*types.TraceRecord

	// ErrorOnWrite, if non-nil, is returned by WriteRecords.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{Written: make([]*types.TraceRecord, 0)}
}

// WriteRecords records the batch without persisting.
func (s *StubSink) WriteRecords(_ context.Context, records []*types.TraceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	s.Batches++
	s.RecordsWritten += int64(len(records))
	s.Written = append(s.Written, records...)
	return nil
}

// SetError changes the error returned by subsequent writes.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	s.ErrorOnWrite = err
	s.mu.Unlock()
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		RecordsWritten: s.RecordsWritten,
		Batches:        s.Batches,
		Closed:         s.Closed,
	}
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	RecordsWritten int64
	Batches        int64
	Closed         bool
}

// MultiSink fans each batch out to several sinks in order.
// The first failing sink aborts the batch.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. Nil entries are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of combined sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

// WriteRecords writes the batch to every sink.
func (m *MultiSink) WriteRecords(ctx context.Context, records []*types.TraceRecord) error {
	for _, s := range m.sinks {
		if err := s.WriteRecords(ctx, records); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and aggregates failures.
func (m *MultiSink) Close() error {
	var result *multierror.Error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
