// Package policy defines how trace records are ingested into a sink.
//
// Records are produced by the replay pass, one per executed instruction.
// Policies control buffering, dropping and batching:
//   - May drop: records of the empty category (no instruction bytes)
//   - Must NOT drop: good, incomplete and unknown records
//   - Policies must not alter records
//   - Policy failure terminates the run
package policy

import (
	"context"
	"sync"

	"github.com/pithecene-io/rdint/types"
)

// Policy defines the ingestion policy interface.
type Policy interface {
	// IngestRecord handles one trace record.
	// May drop droppable records; must return an error instead of dropping
	// any other category.
	IngestRecord(ctx context.Context, record *types.TraceRecord) error

	// Flush flushes any buffered records.
	// Called at the end of the replay pass and on termination.
	Flush(ctx context.Context) error

	// Close flushes best-effort and releases the sink.
	Close() error

	// Stats returns a consistent snapshot of policy counters.
	Stats() Stats
}

// Stats represents policy observability counters.
type Stats struct {
	// TotalRecords is the total number of records received.
	TotalRecords int64
	// RecordsPersisted is the number of records written to the sink.
	RecordsPersisted int64
	// RecordsDropped is the total number of records dropped.
	RecordsDropped int64
	// DroppedByCategory maps record categories to drop counts.
	DroppedByCategory map[string]int64
	// BufferSize is the current buffer size in bytes (if buffered).
	BufferSize int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the count of sink errors encountered.
	Errors int64
}

// droppableCategories defines which record categories may be dropped.
var droppableCategories = map[string]bool{
	"empty": true,
}

// IsDroppable returns true if records of the category may be dropped.
func IsDroppable(category string) bool {
	return droppableCategories[category]
}

// statsRecorder is an internal helper for thread-safe stats management.
// Policies call explicit methods to record mutations; the recorder does not
// infer any policy decisions.
//
// Lock discipline:
//   - StrictPolicy uses the locking methods (incTotal, snapshot, etc.)
//   - BufferedPolicy and StreamingPolicy use the Locked methods only while
//     holding their own mu, keeping buffer state and counters atomic.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		stats: Stats{
			DroppedByCategory: make(map[string]int64),
		},
	}
}

func (r *statsRecorder) incTotal() {
	r.mu.Lock()
	r.stats.TotalRecords++
	r.mu.Unlock()
}

func (r *statsRecorder) incPersisted(n int64) {
	r.mu.Lock()
	r.stats.RecordsPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(r.stats.BufferSize)
}

// --- Locked methods ---
// Caller must hold the owning policy's mu.

func (r *statsRecorder) incTotalLocked() {
	r.stats.TotalRecords++
}

func (r *statsRecorder) incPersistedLocked(n int64) {
	r.stats.RecordsPersisted += n
}

func (r *statsRecorder) incDroppedLocked(category string) {
	r.stats.RecordsDropped++
	r.stats.DroppedByCategory[category]++
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

func (r *statsRecorder) setBufferSizeLocked(bytes int64) {
	r.stats.BufferSize = bytes
}

// snapshotLocked returns a snapshot of stats with the given bufferSize.
func (r *statsRecorder) snapshotLocked(bufferSize int64) Stats {
	s := r.stats
	s.BufferSize = bufferSize
	s.DroppedByCategory = make(map[string]int64, len(r.stats.DroppedByCategory))
	for k, v := range r.stats.DroppedByCategory {
		s.DroppedByCategory[k] = v
	}
	return s
}
