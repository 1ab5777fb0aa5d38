// Package lode archives replay runs in a Lode dataset.
//
// Trace records, the run report and exported canvas files land under a Hive
// layout keyed by source, day, run_id and record_kind.
package lode

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/rdint/metrics"
	"github.com/pithecene-io/rdint/policy"
	"github.com/pithecene-io/rdint/types"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "rdint"

// DeriveDay computes the partition day from run start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds Lode sink configuration.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Source is the partition key for the machine or job origin.
	Source string
	// Day is the partition key derived from run start time (YYYY-MM-DD UTC).
	Day string
	// RunID is the partition key for run identifier.
	RunID string
}

// Client abstracts the Lode storage client.
type Client interface {
	// WriteRecords writes a batch of trace records. Must preserve ordering.
	WriteRecords(ctx context.Context, records []*types.TraceRecord) error
	// WriteReport writes the run report record.
	WriteReport(ctx context.Context, outcome types.RunOutcome, snap metrics.Snapshot, completedAt time.Time) error
	// Close releases client resources.
	Close() error
}

// Sink is a Lode-backed implementation of policy.Sink.
type Sink struct {
	client Client
}

// NewSink creates a new Lode sink.
func NewSink(client Client) *Sink {
	return &Sink{client: client}
}

// WriteRecords implements policy.Sink.
func (s *Sink) WriteRecords(ctx context.Context, records []*types.TraceRecord) error {
	return s.client.WriteRecords(ctx, records)
}

// Close implements policy.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

var _ policy.Sink = (*Sink)(nil)

// StubClient is a test client that accepts writes without persisting.
type StubClient struct {
	mu      sync.Mutex
	Batches [][]*types.TraceRecord
	Reports []StubReport
	Closed  bool
}

// StubReport is a recorded report write.
type StubReport struct {
	Outcome     types.RunOutcome
	Snapshot    metrics.Snapshot
	CompletedAt time.Time
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteRecords implements Client.
func (c *StubClient) WriteRecords(_ context.Context, records []*types.TraceRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Batches = append(c.Batches, records)
	return nil
}

// WriteReport implements Client.
func (c *StubClient) WriteReport(_ context.Context, outcome types.RunOutcome, snap metrics.Snapshot, completedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Reports = append(c.Reports, StubReport{Outcome: outcome, Snapshot: snap, CompletedAt: completedAt})
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

var _ Client = (*StubClient)(nil)
