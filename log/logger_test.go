package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/rdint/types"
)

func TestLogger_RunContextFields(t *testing.T) {
	var buf bytes.Buffer
	meta := &types.RunMeta{RunID: "run-001", Input: "job.rd", Source: "bench"}
	l := NewLoggerWithLevel(meta, &buf, zapcore.DebugLevel)

	l.Info("replay started", map[string]any{"pass": 2})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	for key, want := range map[string]string{
		"run_id":  "run-001",
		"input":   "job.rd",
		"source":  "bench",
		"message": "replay started",
		"level":   "info",
	} {
		if got := entry[key]; got != want {
			t.Errorf("%s = %v, want %q", key, got, want)
		}
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["pass"] != float64(2) {
		t.Errorf("fields = %v", entry["fields"])
	}
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithLevel(&types.RunMeta{RunID: "r", Input: "i"}, &buf, zapcore.WarnLevel)

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Warn("shown", nil)
	l.Sugar().Errorf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level entries leaked: %s", out)
	}
	if got := strings.Count(out, "\n"); got != 2 {
		t.Errorf("got %d lines, want 2", got)
	}
}

func TestLogger_WithOutputKeepsLevel(t *testing.T) {
	var first, second bytes.Buffer
	l := NewLoggerWithLevel(nil, &first, zapcore.ErrorLevel).WithOutput(&second)

	l.Warn("dropped", nil)
	l.Error("kept", nil)

	if first.Len() != 0 {
		t.Errorf("original writer received %q", first.String())
	}
	if !strings.Contains(second.String(), "kept") || strings.Contains(second.String(), "dropped") {
		t.Errorf("second = %q", second.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "quiet", want: zapcore.ErrorLevel},
		{in: "warn", want: zapcore.WarnLevel},
		{in: "", want: zapcore.InfoLevel},
		{in: "INFO", want: zapcore.InfoLevel},
		{in: "debug", want: zapcore.DebugLevel},
		{in: "loud", want: zapcore.InfoLevel, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("nothing", nil)
	l.Sugar().Infof("nothing")
}

func TestLogger_WithOutputKeepsRunContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&types.RunMeta{RunID: "run-9", Input: "a.rd"}).WithOutput(&buf)

	l.Info("redirected", nil)
	if !strings.Contains(buf.String(), `"run_id":"run-9"`) {
		t.Errorf("run context lost: %s", buf.String())
	}
}
