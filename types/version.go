package types

// Version is the canonical project version.
// The CLI, the trace file format and the archive layout share this version.
const Version = "0.4.0"

// TraceFormatVersion is written into every trace file header.
// Readers reject files whose major component differs.
const TraceFormatVersion = "1"
