package runtime

import (
	"github.com/pithecene-io/rdint/types"
)

// Process exit codes.
const (
	ExitCodeSuccess       = 0 // both passes reached end of stream
	ExitCodeInvalid       = 1 // stream invalidated
	ExitCodeQuit          = 2 // operator quit or signal
	ExitCodePolicyFailure = 3 // trace ingestion failed
)

// ExitCodeFor maps an outcome status to the process exit code.
// Unknown statuses map to ExitCodeInvalid.
func ExitCodeFor(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeSuccess:
		return ExitCodeSuccess
	case types.OutcomeQuit:
		return ExitCodeQuit
	case types.OutcomePolicyFailure:
		return ExitCodePolicyFailure
	default:
		return ExitCodeInvalid
	}
}
