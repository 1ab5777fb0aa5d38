package reader

import "context"

// Reader abstracts read-only data access for CLI commands.
// Implementations may read trace files, trace databases, or the Lode archive.
//
// All methods are read-only and must not mutate state.
type Reader interface {
	// InspectTrace summarizes a trace file, returning up to limit rows.
	InspectTrace(path string, limit int) (*TraceView, error)
	// InspectTraceDB summarizes one run of a trace database.
	InspectTraceDB(ctx context.Context, path, runID string, limit int) (*DBView, error)
	// InspectReport reads the latest archived report matching runID and source.
	InspectReport(ctx context.Context, runID, source string) (*ReportView, error)
}

// defaultReader is the package-level reader instance.
var defaultReader Reader = NewLocalReader(StorageOptions{})

// SetReader sets the package-level reader instance.
// Call this during initialization to wire up a configured implementation.
func SetReader(r Reader) {
	defaultReader = r
}

// GetReader returns the current package-level reader instance.
func GetReader() Reader {
	return defaultReader
}
