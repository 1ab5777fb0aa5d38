package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pithecene-io/rdint/adapter"
	"github.com/pithecene-io/rdint/metrics"
	"github.com/pithecene-io/rdint/types"
)

// RunReport is the structured JSON report written by --report.
type RunReport struct {
	RunID        string              `json:"run_id"`
	Input        string              `json:"input"`
	Source       string              `json:"source,omitempty"`
	Outcome      types.OutcomeStatus `json:"outcome"`
	Message      string              `json:"message"`
	ExitCode     int                 `json:"exit_code"`
	DurationMs   int64               `json:"duration_ms"`
	Instructions int64               `json:"instructions"`
	Records      int64               `json:"records"`
	Limits       string              `json:"limits,omitempty"`

	Policy  *ReportPolicy     `json:"policy"`
	Metrics *metrics.Snapshot `json:"metrics"`

	Backlog []string `json:"backlog,omitempty"`
}

// ReportPolicy holds policy stats in the report.
type ReportPolicy struct {
	Name             string           `json:"name"`
	RecordsReceived  int64            `json:"records_received"`
	RecordsPersisted int64            `json:"records_persisted"`
	RecordsDropped   int64            `json:"records_dropped"`
	FlushTriggers    map[string]int64 `json:"flush_triggers,omitempty"`
}

// BuildRunReport composes a RunReport from a RunResult and metrics snapshot.
// The policyName is the policy name string (e.g. "strict", "buffered", "streaming").
// The exitCode is the process exit code that will be returned to the caller.
func BuildRunReport(result *RunResult, snap metrics.Snapshot, policyName string, exitCode int) *RunReport {
	report := &RunReport{
		RunID:        result.RunMeta.RunID,
		Input:        result.RunMeta.Input,
		Source:       result.RunMeta.Source,
		Outcome:      result.Outcome.Status,
		Message:      result.Outcome.Message,
		ExitCode:     exitCode,
		DurationMs:   result.Duration.Milliseconds(),
		Instructions: result.Instructions,
		Records:      result.Records,
		Policy: &ReportPolicy{
			Name:             policyName,
			RecordsReceived:  result.PolicyStats.TotalRecords,
			RecordsPersisted: result.PolicyStats.RecordsPersisted,
			RecordsDropped:   result.PolicyStats.RecordsDropped,
			FlushTriggers:    result.FlushTriggers,
		},
		Metrics: &snap,
	}

	if result.Limits.Complete() {
		report.Limits = result.Limits.Box().String()
	}
	for _, in := range result.Outcome.Backlog {
		report.Backlog = append(report.Backlog, in.String())
	}

	return report
}

// BuildCompletedEvent composes the adapter notice for a finished run.
// storagePath is the archive location, empty when nothing was archived.
func BuildCompletedEvent(result *RunResult, day, storagePath string, now time.Time) *adapter.RunCompletedEvent {
	return &adapter.RunCompletedEvent{
		Version:      types.Version,
		EventType:    adapter.EventTypeRunCompleted,
		RunID:        result.RunMeta.RunID,
		Input:        result.RunMeta.Input,
		Source:       result.RunMeta.Source,
		Day:          day,
		Outcome:      string(result.Outcome.Status),
		Message:      result.Outcome.Message,
		StoragePath:  storagePath,
		Timestamp:    now.UTC().Format(time.RFC3339),
		Instructions: result.Instructions,
		Records:      result.Records,
		DurationMs:   result.Duration.Milliseconds(),
	}
}

// WriteRunReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteRunReport(report *RunReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeRunReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeRunReportTo writes report JSON to any writer.
func writeRunReportTo(report *RunReport, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *RunReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
