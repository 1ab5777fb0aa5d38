package types

import "errors"

// RunMeta identifies a single decode run.
type RunMeta struct {
	// RunID is the run identifier. Must be unique per archive.
	RunID string
	// Input is the path of the decoded RD file.
	Input string
	// Source labels the machine or job origin; used as a partition key.
	Source string
}

// Validate checks that the identity fields are present.
func (r *RunMeta) Validate() error {
	if r.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	if r.Input == "" {
		return errors.New("input must be non-empty")
	}
	return nil
}

// OutcomeStatus represents the final status of a run.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates both passes completed to end of stream.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeInvalid indicates the stream was invalidated.
	OutcomeInvalid OutcomeStatus = "invalid"
	// OutcomeQuit indicates the operator quit or a signal arrived.
	OutcomeQuit OutcomeStatus = "quit"
	// OutcomePolicyFailure indicates the trace ingestion policy failed.
	OutcomePolicyFailure OutcomeStatus = "policy_failure"
)

// RunOutcome represents the final outcome of a run.
type RunOutcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus `json:"status" yaml:"status"`
	// Message is a human-readable description.
	Message string `json:"message" yaml:"message"`
	// Backlog holds the last framed instructions when the stream was invalidated.
	Backlog []Instruction `json:"backlog,omitempty" yaml:"backlog,omitempty"`
}
