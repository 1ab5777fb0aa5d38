package policy

import (
	"context"

	"github.com/pithecene-io/rdint/types"
)

// NoopPolicy accepts records without persisting them.
// Used when no trace output is configured.
//
// Stats keep droppable semantics: droppable records count as dropped,
// everything else counts as persisted.
type NoopPolicy struct {
	stats *statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{stats: newStatsRecorder()}
}

// IngestRecord accepts the record but does not persist it.
func (p *NoopPolicy) IngestRecord(_ context.Context, record *types.TraceRecord) error {
	p.stats.mu.Lock()
	defer p.stats.mu.Unlock()

	p.stats.incTotalLocked()
	if IsDroppable(record.Category) {
		p.stats.incDroppedLocked(record.Category)
	} else {
		p.stats.incPersistedLocked(1)
	}
	return nil
}

// Flush is a no-op.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*NoopPolicy)(nil)
