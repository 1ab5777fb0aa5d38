package lode

import (
	"context"

	"github.com/pithecene-io/rdint/metrics"
	"github.com/pithecene-io/rdint/policy"
	"github.com/pithecene-io/rdint/types"
)

// InstrumentedSink wraps a policy.Sink and counts each WriteRecords call
// as a storage write success or failure.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteRecords delegates to the inner sink and records success or failure.
func (s *InstrumentedSink) WriteRecords(ctx context.Context, records []*types.TraceRecord) error {
	err := s.inner.WriteRecords(ctx, records)
	if err != nil {
		s.collector.IncStorageWriteFailure()
	} else {
		s.collector.IncStorageWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ policy.Sink = (*InstrumentedSink)(nil)
