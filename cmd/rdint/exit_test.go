package main

import (
	"errors"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rdint/runtime"
	"github.com/pithecene-io/rdint/types"
)

func TestExitErrHandler_NilError(t *testing.T) {
	// Should not panic or exit on nil error
	exitErrHandler(nil, nil)
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "exit code 0 no message",
			err:      cli.Exit("", 0),
			wantCode: 0,
			wantMsg:  "",
		},
		{
			name:     "exit code 1 with message",
			err:      cli.Exit("exactly one RD file is required", 1),
			wantCode: 1,
			wantMsg:  "exactly one RD file is required",
		},
		{
			name:     "exit code 2 quit",
			err:      cli.Exit("", 2),
			wantCode: 2,
			wantMsg:  "",
		},
		{
			name:     "exit code 3 policy failure",
			err:      cli.Exit("policy failed", 3),
			wantCode: 3,
			wantMsg:  "policy failed",
		},
		{
			name:     "wrapped exit coder",
			err:      errors.Join(errors.New("context"), cli.Exit("inner error", 42)),
			wantCode: 42,
			wantMsg:  "inner error",
		},
		{
			name:     "regular error",
			err:      errors.New("regular error"),
			wantCode: 1,
			wantMsg:  "Error: regular error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := exitStatus(tt.err)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

// TestExitStatus_RunOutcomes verifies run outcomes survive the trip through cli.Exit.
func TestExitStatus_RunOutcomes(t *testing.T) {
	testCases := []struct {
		status types.OutcomeStatus
		code   int
	}{
		{types.OutcomeSuccess, 0},
		{types.OutcomeInvalid, 1},
		{types.OutcomeQuit, 2},
		{types.OutcomePolicyFailure, 3},
	}

	for _, tc := range testCases {
		t.Run(string(tc.status), func(t *testing.T) {
			code := runtime.ExitCodeFor(tc.status)
			if code != tc.code {
				t.Fatalf("ExitCodeFor(%s) = %d, want %d", tc.status, code, tc.code)
			}
			if got, _ := exitStatus(cli.Exit("", code)); got != tc.code {
				t.Errorf("exitStatus = %d, want %d", got, tc.code)
			}
		})
	}
}
