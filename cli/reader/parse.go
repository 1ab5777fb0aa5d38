package reader

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/rdint/types"
)

// ParseReportRecord converts a Lode report record (map[string]any) to a ReportView.
// Handles both int64 (direct writes) and float64 (JSON round-trips) for numeric fields.
func ParseReportRecord(record map[string]any) (*ReportView, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}

	view := &ReportView{
		RunID:          toString(record["run_id"]),
		Input:          toString(record["input"]),
		Source:         toString(record["source"]),
		Day:            toString(record["day"]),
		Status:         toString(record["status"]),
		Message:        toString(record["message"]),
		CompletedAt:    toString(record["completed_at"]),
		Policy:         toString(record["policy"]),
		StorageBackend: toString(record["storage_backend"]),
		Counters: ReportCounters{
			Instructions:        toInt64(record["instructions_total"]),
			DecodedGood:         toInt64(record["decoded_good_total"]),
			DecodedEmpty:        toInt64(record["decoded_empty_total"]),
			DecodedIncomplete:   toInt64(record["decoded_incomplete_total"]),
			DecodedUnknown:      toInt64(record["decoded_unknown_total"]),
			StreamInvalidated:   toInt64(record["stream_invalidated_total"]),
			DebuggerPauses:      toInt64(record["debugger_pauses_total"]),
			RecordsReceived:     toInt64(record["records_received_total"]),
			RecordsPersisted:    toInt64(record["records_persisted_total"]),
			RecordsDropped:      toInt64(record["records_dropped_total"]),
			StorageWriteSuccess: toInt64(record["storage_write_success_total"]),
			StorageWriteFailure: toInt64(record["storage_write_failure_total"]),
		},
		Backlog: toStrings(record["backlog"]),
	}

	if dbc, ok := record["dropped_by_category"]; ok && dbc != nil {
		view.DroppedByCat = parseDroppedByCategory(dbc)
	}

	// The write path always populates these.
	if view.RunID == "" {
		return nil, errors.New("report record missing required field: run_id")
	}
	if view.Status == "" {
		return nil, errors.New("report record missing required field: status")
	}
	if view.CompletedAt == "" {
		return nil, errors.New("report record missing required field: completed_at")
	}
	return view, nil
}

// toInt64 converts a value to int64, handling float64 from JSON and int64 from direct writes.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			out = append(out, toString(item))
		}
		return out
	default:
		return nil
	}
}

// parseDroppedByCategory converts dropped_by_category from Lode record format.
// Handles both map[string]int64 (direct) and map[string]any (JSON round-trip).
func parseDroppedByCategory(v any) map[string]int64 {
	switch m := v.(type) {
	case map[string]int64:
		return m
	case map[string]any:
		result := make(map[string]int64, len(m))
		for k, val := range m {
			result[k] = toInt64(val)
		}
		return result
	default:
		return nil
	}
}

// NewTraceRow flattens a trace record for display.
func NewTraceRow(r *types.TraceRecord) TraceRow {
	return TraceRow{
		Seq:      r.Seq,
		Offset:   fmt.Sprintf("0x%08x", r.Offset),
		Category: r.Category,
		Text:     r.Text,
		X:        r.Position.X,
		Y:        r.Position.Y,
		Layer:    r.Layer,
	}
}
