package lode

import (
	"encoding/hex"
	"time"

	"github.com/pithecene-io/rdint/metrics"
	"github.com/pithecene-io/rdint/types"
)

// RecordKind discriminator values. record_kind is also the last partition key.
const (
	RecordKindTrace  = "trace"
	RecordKindReport = "report"
)

// toTraceRecordMap converts a TraceRecord to a map for Lode storage.
// Lode HiveLayout requires records as map[string]any.
func toTraceRecordMap(r *types.TraceRecord, cfg Config) map[string]any {
	return map[string]any{
		"record_kind": RecordKindTrace,
		"run_id":      r.RunID,
		"seq":         r.Seq,
		"offset":      r.Offset,
		"data":        hex.EncodeToString(r.Data),
		"kind":        r.Kind,
		"category":    r.Category,
		"text":        r.Text,
		"x":           r.Position.X,
		"y":           r.Position.Y,
		"layer":       r.Layer,
		"source":      cfg.Source,
		"day":         cfg.Day,
	}
}

// toReportRecordMap flattens the run outcome and counters into one record.
func toReportRecordMap(outcome types.RunOutcome, snap metrics.Snapshot, completedAt time.Time, cfg Config) map[string]any {
	m := map[string]any{
		"record_kind":                 RecordKindReport,
		"run_id":                      cfg.RunID,
		"input":                       snap.Input,
		"status":                      string(outcome.Status),
		"message":                     outcome.Message,
		"completed_at":                completedAt.UTC().Format(time.RFC3339Nano),
		"instructions_total":          snap.Instructions,
		"decoded_good_total":          snap.DecodedGood,
		"decoded_empty_total":         snap.DecodedEmpty,
		"decoded_incomplete_total":    snap.DecodedIncomplete,
		"decoded_unknown_total":       snap.DecodedUnknown,
		"stream_invalidated_total":    snap.StreamInvalidated,
		"debugger_pauses_total":       snap.DebuggerPauses,
		"records_received_total":      snap.RecordsReceived,
		"records_persisted_total":     snap.RecordsPersisted,
		"records_dropped_total":       snap.RecordsDropped,
		"storage_write_success_total": snap.StorageWriteSuccess,
		"storage_write_failure_total": snap.StorageWriteFailure,
		"policy":                      snap.Policy,
		"storage_backend":             snap.StorageBackend,
		"source":                      cfg.Source,
		"day":                         cfg.Day,
	}
	if len(snap.DroppedByCategory) > 0 {
		m["dropped_by_category"] = snap.DroppedByCategory
	}
	if len(outcome.Backlog) > 0 {
		backlog := make([]string, len(outcome.Backlog))
		for i, in := range outcome.Backlog {
			backlog[i] = in.String()
		}
		m["backlog"] = backlog
	}
	return m
}
