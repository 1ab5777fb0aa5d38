package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/rdint/cli/reader"
)

// fakeReader records the arguments of the last call.
type fakeReader struct {
	path   string
	runID  string
	source string
	limit  int
	err    error
}

func (f *fakeReader) InspectTrace(path string, limit int) (*reader.TraceView, error) {
	f.path, f.limit = path, limit
	if f.err != nil {
		return nil, f.err
	}
	return &reader.TraceView{Path: path, Codec: "msgpack", RunID: "run-1", Records: 6}, nil
}

func (f *fakeReader) InspectTraceDB(_ context.Context, path, runID string, limit int) (*reader.DBView, error) {
	f.path, f.runID, f.limit = path, runID, limit
	if f.err != nil {
		return nil, f.err
	}
	return &reader.DBView{Path: path, RunID: runID, Records: 6}, nil
}

func (f *fakeReader) InspectReport(_ context.Context, runID, source string) (*reader.ReportView, error) {
	f.runID, f.source = runID, source
	if f.err != nil {
		return nil, f.err
	}
	return &reader.ReportView{RunID: runID, Source: source, Status: "success"}, nil
}

func useReader(t *testing.T, r reader.Reader) {
	t.Helper()
	prev := reader.GetReader()
	reader.SetReader(r)
	t.Cleanup(func() { reader.SetReader(prev) })
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func() error) ([]byte, error) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	prev := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = prev }()

	done := make(chan []byte)
	go func() {
		data, _ := io.ReadAll(r)
		done <- data
	}()

	runErr := fn()
	_ = w.Close()
	return <-done, runErr
}

func runInspect(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	app := &cli.App{
		Name:           "rdint",
		Commands:       []*cli.Command{InspectCommand()},
		ExitErrHandler: func(*cli.Context, error) {},
	}
	return captureStdout(t, func() error {
		return app.Run(append([]string{"rdint", "inspect"}, args...))
	})
}

func TestInspectTrace_JSON(t *testing.T) {
	fake := &fakeReader{}
	useReader(t, fake)

	out, err := runInspect(t, "--format", "json", "--limit", "5", "run.trace")
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if fake.path != "run.trace" || fake.limit != 5 {
		t.Errorf("reader called with (%q, %d), want (run.trace, 5)", fake.path, fake.limit)
	}

	var view reader.TraceView
	if err := json.Unmarshal(out, &view); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if view.RunID != "run-1" || view.Records != 6 {
		t.Errorf("view = %+v", view)
	}
}

func TestInspectTrace_DefaultLimit(t *testing.T) {
	fake := &fakeReader{}
	useReader(t, fake)

	if _, err := runInspect(t, "--format", "json", "run.trace"); err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if fake.limit != defaultInspectLimit {
		t.Errorf("limit = %d, want %d", fake.limit, defaultInspectLimit)
	}
}

func TestInspectTrace_MissingArg(t *testing.T) {
	useReader(t, &fakeReader{})

	_, err := runInspect(t, "--format", "json")
	if err == nil {
		t.Fatal("expected error without a trace file")
	}
}

func TestInspectTrace_ReaderError(t *testing.T) {
	useReader(t, &fakeReader{err: errors.New("boom")})

	_, err := runInspect(t, "--format", "json", "run.trace")
	if err == nil || err.Error() != "boom" {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestInspectDB_RequiresRunID(t *testing.T) {
	useReader(t, &fakeReader{})

	_, err := runInspect(t, "db", "--format", "json", "trace.db")
	if err == nil {
		t.Fatal("expected error without --run-id")
	}
}

func TestInspectDB_JSON(t *testing.T) {
	fake := &fakeReader{}
	useReader(t, fake)

	out, err := runInspect(t, "db", "--format", "json", "--run-id", "run-1", "trace.db")
	if err != nil {
		t.Fatalf("inspect db failed: %v", err)
	}
	if fake.path != "trace.db" || fake.runID != "run-1" {
		t.Errorf("reader called with (%q, %q)", fake.path, fake.runID)
	}

	var view reader.DBView
	if err := json.Unmarshal(out, &view); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if view.RunID != "run-1" {
		t.Errorf("run id = %q, want run-1", view.RunID)
	}
}

func TestInspectReport_UsesPackageReader(t *testing.T) {
	fake := &fakeReader{}
	useReader(t, fake)

	out, err := runInspect(t, "report", "--format", "json", "--run-id", "run-1", "--source", "cutter")
	if err != nil {
		t.Fatalf("inspect report failed: %v", err)
	}
	if fake.runID != "run-1" || fake.source != "cutter" {
		t.Errorf("reader called with (%q, %q)", fake.runID, fake.source)
	}

	var view reader.ReportView
	if err := json.Unmarshal(out, &view); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if view.Status != "success" {
		t.Errorf("status = %q, want success", view.Status)
	}
}

func TestInspectReport_StoragePathBypassesPackageReader(t *testing.T) {
	fake := &fakeReader{}
	useReader(t, fake)

	// An empty archive has no report for the run.
	_, err := runInspect(t, "report", "--format", "json", "--run-id", "run-1", "--storage-path", t.TempDir())
	if err == nil {
		t.Fatal("expected error for a run missing from an empty archive")
	}
	if fake.runID != "" {
		t.Errorf("package reader was used for an explicit storage path")
	}
}

func TestInspectTUIViews(t *testing.T) {
	useReader(t, &fakeReader{err: errors.New("unreachable")})

	// The reader fails before any TUI starts.
	for _, args := range [][]string{
		{"--tui", "run.trace"},
		{"db", "--tui", "--run-id", "r", "trace.db"},
		{"report", "--tui", "--run-id", "r"},
	} {
		if _, err := runInspect(t, args...); err == nil {
			t.Errorf("inspect %v: expected reader error", args)
		}
	}
}
