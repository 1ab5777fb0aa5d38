package tracedb

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pithecene-io/rdint/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.Context(), filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func records(runID string, categories ...string) []*types.TraceRecord {
	out := make([]*types.TraceRecord, len(categories))
	for i, c := range categories {
		out[i] = &types.TraceRecord{
			RunID:    runID,
			Seq:      int64(i + 1),
			Offset:   int64(2 + i),
			Data:     []byte{0xCA, byte(i)},
			Kind:     "set_current_layer",
			Category: c,
			Text:     "Set current layer",
			Position: types.Point{X: int64(i), Y: -int64(i)},
			Layer:    i,
		}
	}
	return out
}

func TestDB_WriteAndCount(t *testing.T) {
	db := openTestDB(t)

	if err := db.WriteRecords(t.Context(), records("run-1", "good", "good", "empty", "unknown")); err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}
	if err := db.WriteRecords(t.Context(), records("run-2", "good")); err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}

	n, err := db.Count(t.Context(), "run-1")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 4 {
		t.Errorf("Count(run-1) = %d, want 4", n)
	}

	cats, err := db.Categories(t.Context(), "run-1")
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if cats["good"] != 2 || cats["empty"] != 1 || cats["unknown"] != 1 {
		t.Errorf("Categories = %v", cats)
	}
}

func TestDB_ResentBatchReplaces(t *testing.T) {
	db := openTestDB(t)
	batch := records("run-1", "good", "incomplete")

	for range 2 {
		if err := db.WriteRecords(t.Context(), batch); err != nil {
			t.Fatalf("WriteRecords failed: %v", err)
		}
	}
	if n, _ := db.Count(t.Context(), "run-1"); n != 2 {
		t.Errorf("Count = %d, want 2 after at-least-once resend", n)
	}
}

func TestDB_RecordsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	want := records("run-1", "good", "empty", "good")
	if err := db.WriteRecords(t.Context(), want); err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}

	got, err := db.Records(t.Context(), "run-1", 2)
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	for i := range got {
		w := want[i]
		if got[i].Seq != w.Seq || got[i].Category != w.Category || got[i].Position != w.Position ||
			got[i].Layer != w.Layer || !bytes.Equal(got[i].Data, w.Data) {
			t.Errorf("record %d = %+v, want %+v", i, got[i], w)
		}
	}
}

func TestDB_WriteAfterClose(t *testing.T) {
	db := openTestDB(t)
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := db.WriteRecords(t.Context(), records("run-1", "good")); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}
