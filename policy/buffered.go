package policy

import (
	"context"
	"errors"
	"sync"

	"github.com/pithecene-io/rdint/log"
	"github.com/pithecene-io/rdint/types"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferRecords is the maximum number of records to buffer.
	// Zero means no limit (use MaxBufferBytes instead).
	MaxBufferRecords int

	// MaxBufferBytes is the maximum buffer size in bytes (estimated).
	// Zero means no limit (use MaxBufferRecords instead).
	// At least one limit must be set.
	MaxBufferBytes int64

	// Logger is an optional logger for policy observability.
	// If nil, no logging is emitted.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		MaxBufferRecords: 4096,
		MaxBufferBytes:   8 * 1024 * 1024, // 8 MB
	}
}

// ErrBufferFull is returned when the buffer is full and the record is non-droppable.
var ErrBufferFull = errors.New("buffer full: cannot accept non-droppable record")

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid config: at least one of MaxBufferRecords or MaxBufferBytes must be set")

// BufferedPolicy implements buffered persistence with drop rules.
//   - Bounded buffer with explicit limits
//   - May drop: empty records
//   - Batch writes on flush
//   - Buffer preserved on flush failure (at-least-once)
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu          sync.Mutex // guards buffer state only
	buffer      []*types.TraceRecord
	bufferBytes int64
	stats       *statsRecorder
}

// NewBufferedPolicy creates a new buffered policy.
// Returns error if config is invalid.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferRecords <= 0 && config.MaxBufferBytes <= 0 {
		return nil, ErrInvalidConfig
	}

	return &BufferedPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]*types.TraceRecord, 0, min(max(config.MaxBufferRecords, 100), 4096)),
		stats:  newStatsRecorder(),
	}, nil
}

// IngestRecord buffers the record, applying drop rules if the buffer is full.
//
// Drop strategy when full:
//   - If the incoming record is droppable: drop it, record in stats
//   - If it is non-droppable and the buffer holds droppable records: drop the oldest
//   - Otherwise: return ErrBufferFull (fail run)
func (p *BufferedPolicy) IngestRecord(_ context.Context, record *types.TraceRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incTotalLocked()
	size := record.EstimatedSize()

	if p.hasRoomForRecord(size) {
		p.append(record, size)
		return nil
	}

	if IsDroppable(record.Category) {
		p.stats.incDroppedLocked(record.Category)
		p.logDrop(record, "buffer_full")
		return nil
	}

	if p.dropOldestDroppable() && p.hasRoomForRecord(size) {
		p.append(record, size)
		return nil
	}

	p.stats.incErrorsLocked()
	p.logBufferOverflow(record)
	return ErrBufferFull
}

// append adds a record to the buffer. Caller must hold mu.
func (p *BufferedPolicy) append(record *types.TraceRecord, size int64) {
	p.buffer = append(p.buffer, record)
	p.bufferBytes += size
	p.stats.setBufferSizeLocked(p.bufferBytes)
}

// Flush writes all buffered records to the sink in one batch.
// On failure the buffer is kept intact; a retry may duplicate records but
// never loses them.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	p.mu.Lock()
	p.stats.incFlushLocked()
	records := p.buffer
	p.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	if err := p.sink.WriteRecords(ctx, records); err != nil {
		p.mu.Lock()
		p.stats.incErrorsLocked()
		p.mu.Unlock()
		p.logFlushFailure(len(records), err)
		return err
	}

	p.mu.Lock()
	p.stats.incPersistedLocked(int64(len(records)))
	// Records ingested during the write stay buffered.
	rest := p.buffer[min(len(records), len(p.buffer)):]
	p.buffer = append(make([]*types.TraceRecord, 0, cap(p.buffer)), rest...)
	p.recalculateBufferBytes()
	p.mu.Unlock()

	return nil
}

// recalculateBufferBytes recalculates bufferBytes. Caller must hold mu.
func (p *BufferedPolicy) recalculateBufferBytes() {
	var total int64
	for _, r := range p.buffer {
		total += r.EstimatedSize()
	}
	p.bufferBytes = total
	p.stats.setBufferSizeLocked(p.bufferBytes)
}

// Close flushes remaining records and closes the sink.
func (p *BufferedPolicy) Close() error {
	// Best-effort flush on close
	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns an atomic snapshot of policy statistics.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(p.bufferBytes)
}

// hasRoomForRecord checks both limits. Caller must hold mu.
func (p *BufferedPolicy) hasRoomForRecord(size int64) bool {
	if p.config.MaxBufferRecords > 0 && len(p.buffer) >= p.config.MaxBufferRecords {
		return false
	}
	if p.config.MaxBufferBytes > 0 && p.bufferBytes+size > p.config.MaxBufferBytes {
		return false
	}
	return true
}

// dropOldestDroppable evicts the oldest droppable record.
// Returns false if none exists. Caller must hold mu.
func (p *BufferedPolicy) dropOldestDroppable() bool {
	for i, r := range p.buffer {
		if IsDroppable(r.Category) {
			p.buffer = append(p.buffer[:i], p.buffer[i+1:]...)
			p.bufferBytes -= r.EstimatedSize()
			p.stats.setBufferSizeLocked(p.bufferBytes)
			p.stats.incDroppedLocked(r.Category)
			p.logDrop(r, "evicted_for_non_droppable")
			return true
		}
	}
	return false
}

// --- Logging helpers ---

func (p *BufferedPolicy) logDrop(record *types.TraceRecord, reason string) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("record dropped", map[string]any{
		"category": record.Category,
		"offset":   record.Offset,
		"reason":   reason,
		"policy":   "buffered",
	})
}

func (p *BufferedPolicy) logBufferOverflow(record *types.TraceRecord) {
	if p.logger == nil {
		return
	}
	p.logger.Error("buffer overflow", map[string]any{
		"category": record.Category,
		"offset":   record.Offset,
		"policy":   "buffered",
	})
}

func (p *BufferedPolicy) logFlushFailure(n int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("flush failed", map[string]any{
		"records": n,
		"error":   err.Error(),
		"policy":  "buffered",
	})
}

var _ Policy = (*BufferedPolicy)(nil)
