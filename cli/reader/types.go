// Package reader provides the read-side data access layer for the rdint CLI.
//
// This package isolates all read operations from runtime internals. The
// inspect and stats commands build their payloads here and hand them to
// the renderer or the TUI.
package reader

import (
	"time"

	"github.com/pithecene-io/rdint/metrics"
	"github.com/pithecene-io/rdint/types"
)

// TraceRow is one decoded instruction as shown by inspect.
type TraceRow struct {
	Seq      int64  `json:"seq"`
	Offset   string `json:"offset"`
	Category string `json:"category"`
	Text     string `json:"text"`
	X        int64  `json:"x"`
	Y        int64  `json:"y"`
	Layer    int    `json:"layer"`
}

// TraceView summarizes a trace file.
type TraceView struct {
	Path       string           `json:"path"`
	Codec      string           `json:"codec"`
	Format     string           `json:"format"`
	RunID      string           `json:"run_id"`
	Input      string           `json:"input"`
	Source     string           `json:"source,omitempty"`
	Version    string           `json:"version"`
	CreatedAt  time.Time        `json:"created_at"`
	Records    int64            `json:"records"`
	Categories map[string]int64 `json:"categories"`
	Rows       []TraceRow       `json:"rows,omitempty"`
}

// DBView summarizes one run held in a trace database.
type DBView struct {
	Path       string           `json:"path"`
	RunID      string           `json:"run_id"`
	Records    int64            `json:"records"`
	Categories map[string]int64 `json:"categories"`
	Rows       []TraceRow       `json:"rows,omitempty"`
}

// ReportView is a run report read back from the archive.
type ReportView struct {
	RunID          string           `json:"run_id"`
	Input          string           `json:"input"`
	Source         string           `json:"source,omitempty"`
	Day            string           `json:"day,omitempty"`
	Status         string           `json:"status"`
	Message        string           `json:"message,omitempty"`
	CompletedAt    string           `json:"completed_at"`
	Policy         string           `json:"policy"`
	StorageBackend string           `json:"storage_backend"`
	Backlog        []string         `json:"backlog,omitempty"`
	Counters       ReportCounters   `json:"counters"`
	DroppedByCat   map[string]int64 `json:"dropped_by_category,omitempty"`
}

// ReportCounters holds the numeric totals of a run report.
type ReportCounters struct {
	Instructions        int64 `json:"instructions"`
	DecodedGood         int64 `json:"decoded_good"`
	DecodedEmpty        int64 `json:"decoded_empty"`
	DecodedIncomplete   int64 `json:"decoded_incomplete"`
	DecodedUnknown      int64 `json:"decoded_unknown"`
	StreamInvalidated   int64 `json:"stream_invalidated"`
	DebuggerPauses      int64 `json:"debugger_pauses"`
	RecordsReceived     int64 `json:"records_received"`
	RecordsPersisted    int64 `json:"records_persisted"`
	RecordsDropped      int64 `json:"records_dropped"`
	StorageWriteSuccess int64 `json:"storage_write_success"`
	StorageWriteFailure int64 `json:"storage_write_failure"`
}

// StatsView is the per-file statistics payload.
type StatsView struct {
	Input        string               `json:"input"`
	RunID        string               `json:"run_id"`
	Outcome      string               `json:"outcome"`
	Message      string               `json:"message,omitempty"`
	Unit         metrics.Unit         `json:"unit"`
	Instructions int64                `json:"instructions"`
	Limits       types.BoundingBox    `json:"limits"`
	Decoded      map[string]int64     `json:"decoded"`
	Slots        []metrics.SlotReport `json:"slots"`
}

// BatchView aggregates statistics over several input files.
type BatchView struct {
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Deduped   int         `json:"deduped"`
	Skipped   int         `json:"skipped"`
	Runs      []StatsView `json:"runs"`
	Errors    []string    `json:"errors,omitempty"`
}
