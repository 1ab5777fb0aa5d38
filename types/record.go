package types

// TraceRecord is the persisted form of one executed instruction.
// Records are produced during the replay pass only, in stream order.
type TraceRecord struct {
	// RunID is the owning run.
	RunID string `msgpack:"run_id" json:"run_id" cbor:"run_id"`
	// Seq is the monotonic record number, starting at 1.
	Seq int64 `msgpack:"seq" json:"seq" cbor:"seq"`
	// Offset is the raw file offset of the instruction.
	Offset int64 `msgpack:"offset" json:"offset" cbor:"offset"`
	// Data is the descrambled instruction bytes.
	Data []byte `msgpack:"data" json:"data" cbor:"data"`
	// Kind is the decoded command kind name.
	Kind string `msgpack:"kind" json:"kind" cbor:"kind"`
	// Category is the decode category (good, empty, incomplete, unknown).
	Category string `msgpack:"category" json:"category" cbor:"category"`
	// Text is the human readable command rendering.
	Text string `msgpack:"text" json:"text" cbor:"text"`
	// Position is the cursor after the instruction was applied.
	Position Point `msgpack:"position" json:"position" cbor:"position"`
	// Layer is the active layer index after the instruction (-1 if none).
	Layer int `msgpack:"layer" json:"layer" cbor:"layer"`
}

// EstimatedSize returns an approximate encoded size in bytes.
// Used by buffered ingestion to bound memory.
func (r *TraceRecord) EstimatedSize() int64 {
	return int64(64 + len(r.RunID) + len(r.Data) + len(r.Kind) + len(r.Category) + len(r.Text))
}
