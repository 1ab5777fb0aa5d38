package policy

import (
	"fmt"
	"time"

	"github.com/pithecene-io/rdint/log"
)

// Policy names accepted by Build.
const (
	NameStrict    = "strict"
	NameBuffered  = "buffered"
	NameStreaming = "streaming"
	NameNoop      = "noop"
)

// Config selects and configures a policy.
type Config struct {
	Name          string
	MaxRecords    int
	MaxBytes      int64
	FlushCount    int
	FlushInterval time.Duration
	Logger        *log.Logger
}

// Build creates the named policy over sink. An empty name selects strict.
func Build(cfg Config, sink Sink) (Policy, error) {
	switch cfg.Name {
	case "", NameStrict:
		return NewStrictPolicy(sink), nil
	case NameBuffered:
		bc := DefaultBufferedConfig()
		if cfg.MaxRecords > 0 {
			bc.MaxBufferRecords = cfg.MaxRecords
		}
		if cfg.MaxBytes > 0 {
			bc.MaxBufferBytes = cfg.MaxBytes
		}
		bc.Logger = cfg.Logger
		return NewBufferedPolicy(sink, bc)
	case NameStreaming:
		sc := StreamingConfig{FlushCount: cfg.FlushCount, FlushInterval: cfg.FlushInterval, Logger: cfg.Logger}
		if sc.FlushCount <= 0 && sc.FlushInterval <= 0 {
			sc.FlushCount = 256
		}
		return NewStreamingPolicy(sink, sc)
	case NameNoop:
		return NewNoopPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown policy %q (want strict, buffered, streaming or noop)", cfg.Name)
	}
}

// FlushTriggerCounts returns string-keyed trigger counts for policies that
// track them, nil otherwise.
func FlushTriggerCounts(p Policy) map[string]int64 {
	sp, ok := p.(*StreamingPolicy)
	if !ok {
		return nil
	}
	out := make(map[string]int64, 3)
	for k, v := range sp.FlushTriggerStats() {
		out[string(k)] = v
	}
	return out
}
