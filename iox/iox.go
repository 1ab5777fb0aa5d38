// Package iox holds small I/O helpers shared by the trace, batch and
// adapter layers.
package iox

import "io"

// DiscardClose closes c and drops the error. For read paths where nothing
// can act on a close failure:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// Sequence runs every step in order and returns the first error. Steps
// after a failure still run, so a layered writer (buffer, compressor,
// file) releases every layer.
func Sequence(steps ...func() error) error {
	var first error
	for _, step := range steps {
		if step == nil {
			continue
		}
		if err := step(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
