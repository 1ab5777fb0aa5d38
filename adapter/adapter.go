// Package adapter defines the boundary for run completion notices.
//
// Adapters tell downstream systems that a replay run finished and where
// its archive landed. The runtime owns adapter lifecycle.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventTypeRunCompleted is the only event type published.
const EventTypeRunCompleted = "run_completed"

// RunCompletedEvent is the payload published when a run finishes.
type RunCompletedEvent struct {
	Version      string `json:"version"`
	EventType    string `json:"event_type"`
	RunID        string `json:"run_id"`
	Input        string `json:"input"`
	Source       string `json:"source,omitempty"`
	Day          string `json:"day"`
	Outcome      string `json:"outcome"` // success, invalid, quit, policy_failure
	Message      string `json:"message,omitempty"`
	StoragePath  string `json:"storage_path,omitempty"`
	Timestamp    string `json:"timestamp"` // RFC 3339
	Instructions int64  `json:"instructions"`
	Records      int64  `json:"records"`
	DurationMs   int64  `json:"duration_ms"`
}

// Adapter publishes run completion events to a downstream system.
type Adapter interface {
	// Publish sends a run completion event. Must respect ctx cancellation.
	Publish(ctx context.Context, event *RunCompletedEvent) error
	// Close releases adapter resources.
	Close() error
}

// BaseBackoff is the delay before the first retry. It doubles per retry.
const BaseBackoff = 500 * time.Millisecond

// Backoff returns the delay before retry attempt i (i >= 1).
func Backoff(i int) time.Duration {
	return time.Duration(1<<uint(i-1)) * BaseBackoff
}

// ErrPermanent marks an attempt error that must not be retried.
var ErrPermanent = errors.New("non-retriable")

// Retry runs attempt once plus retries more times with exponential backoff.
// An error wrapping ErrPermanent stops immediately.
func Retry(ctx context.Context, name string, retries int, attempt func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(Backoff(i)):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrPermanent) {
			return fmt.Errorf("%s: %w", name, lastErr)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
