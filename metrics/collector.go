// Package metrics provides per-run counters and toolpath statistics.
//
// The Collector accumulates counters during a single run. It is a leaf package
// with no internal dependencies. Ingestion policy metrics are absorbed from
// policy.Stats at run completion rather than recorded live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64
	RunsCompleted int64
	RunsInvalid   int64
	RunsQuit      int64
	RunsFailed    int64

	// Decoding
	Instructions      int64
	DecodedGood       int64
	DecodedEmpty      int64
	DecodedIncomplete int64
	DecodedUnknown    int64
	StreamInvalidated int64
	DebuggerPauses    int64

	// Ingestion (absorbed from policy.Stats at run completion)
	RecordsReceived   int64
	RecordsPersisted  int64
	RecordsDropped    int64
	DroppedByCategory map[string]int64
	FlushTriggers     map[string]int64

	// Storage
	StorageWriteSuccess int64
	StorageWriteFailure int64

	// Dimensions (informational, set at construction)
	Policy         string
	StorageBackend string
	RunID          string
	Input          string
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	runsStarted   int64
	runsCompleted int64
	runsInvalid   int64
	runsQuit      int64
	runsFailed    int64

	instructions      int64
	decodedGood       int64
	decodedEmpty      int64
	decodedIncomplete int64
	decodedUnknown    int64
	streamInvalidated int64
	debuggerPauses    int64

	storageWriteSuccess int64
	storageWriteFailure int64

	// Ingestion (set once via AbsorbPolicyStats)
	recordsReceived   int64
	recordsPersisted  int64
	recordsDropped    int64
	droppedByCategory map[string]int64
	flushTriggers     map[string]int64

	policy         string
	storageBackend string
	runID          string
	input          string
}

// NewCollector creates a Collector with dimension labels.
// runID and input are optional dimensions.
func NewCollector(policy, storageBackend, runID, input string) *Collector {
	return &Collector{
		droppedByCategory: make(map[string]int64),
		policy:            policy,
		storageBackend:    storageBackend,
		runID:             runID,
		input:             input,
	}
}

func (c *Collector) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// --- Run lifecycle ---

// IncRunStarted records a run start.
func (c *Collector) IncRunStarted() {
	if c == nil {
		return
	}
	c.inc(&c.runsStarted)
}

// IncRunCompleted records a run that replayed to end of stream.
func (c *Collector) IncRunCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.runsCompleted)
}

// IncRunInvalid records a run ended by stream invalidation.
func (c *Collector) IncRunInvalid() {
	if c == nil {
		return
	}
	c.inc(&c.runsInvalid)
}

// IncRunQuit records a run ended by the operator or a signal.
func (c *Collector) IncRunQuit() {
	if c == nil {
		return
	}
	c.inc(&c.runsQuit)
}

// IncRunFailed records a run ended by an ingestion policy failure.
func (c *Collector) IncRunFailed() {
	if c == nil {
		return
	}
	c.inc(&c.runsFailed)
}

// --- Decoding ---

// IncDecoded records one decoded instruction under its category name
// (good, empty, incomplete, unknown). Unrecognized names only count
// toward the instruction total.
func (c *Collector) IncDecoded(category string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.instructions++
	switch category {
	case "good":
		c.decodedGood++
	case "empty":
		c.decodedEmpty++
	case "incomplete":
		c.decodedIncomplete++
	case "unknown":
		c.decodedUnknown++
	}
}

// IncStreamInvalidated records a framer invalidation.
func (c *Collector) IncStreamInvalidated() {
	if c == nil {
		return
	}
	c.inc(&c.streamInvalidated)
}

// IncDebuggerPause records one park of the execution side.
func (c *Collector) IncDebuggerPause() {
	if c == nil {
		return
	}
	c.inc(&c.debuggerPauses)
}

// --- Storage ---
// Storage counters are per-call, not per-record. A single WriteRecords call
// with N records counts as 1 success.

// IncStorageWriteSuccess records a successful storage write operation.
func (c *Collector) IncStorageWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.storageWriteSuccess)
}

// IncStorageWriteFailure records a failed storage write operation.
func (c *Collector) IncStorageWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.storageWriteFailure)
}

// --- Ingestion (absorbed from policy.Stats) ---

// AbsorbPolicyStats copies ingestion counters from policy.Stats into the collector.
// Called once after run completion with the final policy stats snapshot.
// Category keys are plain strings to keep this package free of internal imports.
func (c *Collector) AbsorbPolicyStats(total, persisted, dropped int64, droppedByCategory, flushTriggers map[string]int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recordsReceived = total
	c.recordsPersisted = persisted
	c.recordsDropped = dropped
	c.droppedByCategory = copyCounts(droppedByCategory)
	if c.droppedByCategory == nil {
		c.droppedByCategory = make(map[string]int64)
	}
	c.flushTriggers = copyCounts(flushTriggers)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		RunsStarted:   c.runsStarted,
		RunsCompleted: c.runsCompleted,
		RunsInvalid:   c.runsInvalid,
		RunsQuit:      c.runsQuit,
		RunsFailed:    c.runsFailed,

		Instructions:      c.instructions,
		DecodedGood:       c.decodedGood,
		DecodedEmpty:      c.decodedEmpty,
		DecodedIncomplete: c.decodedIncomplete,
		DecodedUnknown:    c.decodedUnknown,
		StreamInvalidated: c.streamInvalidated,
		DebuggerPauses:    c.debuggerPauses,

		RecordsReceived:   c.recordsReceived,
		RecordsPersisted:  c.recordsPersisted,
		RecordsDropped:    c.recordsDropped,
		DroppedByCategory: copyCounts(c.droppedByCategory),
		FlushTriggers:     copyCounts(c.flushTriggers),

		StorageWriteSuccess: c.storageWriteSuccess,
		StorageWriteFailure: c.storageWriteFailure,

		Policy:         c.policy,
		StorageBackend: c.storageBackend,
		RunID:          c.runID,
		Input:          c.input,
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	if m == nil {
		return nil
	}
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
