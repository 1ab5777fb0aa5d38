package reader

import (
	"context"
	"errors"
	"fmt"
	"io"

	lodelib "github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/rdint/lode"
	"github.com/pithecene-io/rdint/trace"
	"github.com/pithecene-io/rdint/tracedb"
	"github.com/pithecene-io/rdint/types"
)

// StorageOptions locates the Lode archive read by InspectReport.
type StorageOptions struct {
	Dataset   string
	Backend   string // "fs" or "s3"
	Path      string // fs root, or bucket[/prefix] for s3
	Region    string
	Endpoint  string
	PathStyle bool
}

// LocalReader reads trace files and trace databases from disk and reports
// from a filesystem or S3 archive.
type LocalReader struct {
	storage StorageOptions
	// open builds the archive dataset; replaced in tests.
	open func(ctx context.Context) (lodelib.Dataset, error)
}

// NewLocalReader creates a reader over the given archive location.
func NewLocalReader(storage StorageOptions) *LocalReader {
	r := &LocalReader{storage: storage}
	r.open = r.openDataset
	return r
}

// NewDatasetReader creates a reader over an already opened dataset.
func NewDatasetReader(ds lodelib.Dataset) *LocalReader {
	return &LocalReader{open: func(context.Context) (lodelib.Dataset, error) { return ds, nil }}
}

func (r *LocalReader) openDataset(ctx context.Context) (lodelib.Dataset, error) {
	switch r.storage.Backend {
	case "", "fs":
		if r.storage.Path == "" {
			return nil, errors.New("storage path is required to read reports")
		}
		return lode.NewReadDatasetFS(r.storage.Dataset, r.storage.Path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(r.storage.Path)
		return lode.NewReadDatasetS3(ctx, r.storage.Dataset, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       r.storage.Region,
			Endpoint:     r.storage.Endpoint,
			UsePathStyle: r.storage.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", r.storage.Backend)
	}
}

// InspectTrace reads every record of a trace file. Only the first limit
// records are kept as rows; limit <= 0 keeps none.
func (r *LocalReader) InspectTrace(path string, limit int) (*TraceView, error) {
	tr, err := trace.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tr.Close() }()

	h := tr.Header()
	view := &TraceView{
		Path:       path,
		Codec:      tr.Codec().Name(),
		Format:     h.Format,
		RunID:      h.RunID,
		Input:      h.Input,
		Source:     h.Source,
		Version:    h.Version,
		CreatedAt:  h.CreatedAt,
		Categories: make(map[string]int64),
	}
	for {
		rec, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		view.Records++
		view.Categories[rec.Category]++
		if len(view.Rows) < limit {
			view.Rows = append(view.Rows, NewTraceRow(rec))
		}
	}
	return view, nil
}

// InspectTraceDB summarizes runID in the SQLite trace database at path.
func (r *LocalReader) InspectTraceDB(ctx context.Context, path, runID string, limit int) (*DBView, error) {
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	db, err := tracedb.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	count, err := db.Count(ctx, runID)
	if err != nil {
		return nil, err
	}
	cats, err := db.Categories(ctx, runID)
	if err != nil {
		return nil, err
	}
	view := &DBView{Path: path, RunID: runID, Records: count, Categories: cats}
	if limit > 0 {
		records, err := db.Records(ctx, runID, limit)
		if err != nil {
			return nil, err
		}
		view.Rows = rows(records)
	}
	return view, nil
}

// InspectReport reads the latest archived report for runID and source.
func (r *LocalReader) InspectReport(ctx context.Context, runID, source string) (*ReportView, error) {
	ds, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	record, err := lode.QueryLatestReport(ctx, ds, runID, source)
	if err != nil {
		return nil, err
	}
	return ParseReportRecord(record)
}

func rows(records []*types.TraceRecord) []TraceRow {
	out := make([]TraceRow, len(records))
	for i, rec := range records {
		out[i] = NewTraceRow(rec)
	}
	return out
}
