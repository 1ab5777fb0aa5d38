package policy

import (
	"context"

	"github.com/pithecene-io/rdint/types"
)

// StrictPolicy implements synchronous, unbuffered persistence.
//   - No buffering: each record is written immediately
//   - No drops: all records are persisted
//   - Backpressure: the replay blocks on sink latency
//   - Sink errors fail the run
type StrictPolicy struct {
	sink  Sink
	stats *statsRecorder
}

// NewStrictPolicy creates a new strict policy writing to the given sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{sink: sink, stats: newStatsRecorder()}
}

// IngestRecord writes the record immediately to the sink.
func (p *StrictPolicy) IngestRecord(ctx context.Context, record *types.TraceRecord) error {
	p.stats.incTotal()

	if err := p.sink.WriteRecords(ctx, []*types.TraceRecord{record}); err != nil {
		p.stats.incErrors()
		return err
	}

	p.stats.incPersisted(1)
	return nil
}

// Flush is a no-op for strict policy (nothing is buffered).
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close closes the underlying sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*StrictPolicy)(nil)
