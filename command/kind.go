// Package command decodes framed instructions into typed commands.
//
// Decoding is total: every instruction becomes a Command, and instructions
// outside the known opcode table become Empty, Incomplete or Unknown
// commands instead of errors. Per-kind behavior (name, category, parameters
// and the state effect) lives in a single table indexed by Kind.
package command

import "fmt"

// Kind identifies a command variant.
type Kind int

const (
	KindEmpty Kind = iota
	KindIncomplete
	KindUnknown
	KindSetAbsoluteLimits
	KindMoveOrCutAbsolute
	KindMoveOrCutRelative
	KindMoveOrCutRelativeAxis
	KindEnableDevices
	KindSetLayerColor
	KindSetCurrentLayer
	KindSetMaxLayer
	KindSetPower
	KindSetLayerPower
	KindSetSpeed
	KindSetLayerSpeed

	kindCount
)

var kindNames = [kindCount]string{
	KindEmpty:                 "empty",
	KindIncomplete:            "incomplete",
	KindUnknown:               "unknown",
	KindSetAbsoluteLimits:     "set_absolute_limits",
	KindMoveOrCutAbsolute:     "move_or_cut_absolute",
	KindMoveOrCutRelative:     "move_or_cut_relative",
	KindMoveOrCutRelativeAxis: "move_or_cut_relative_axis",
	KindEnableDevices:         "enable_devices",
	KindSetLayerColor:         "set_layer_color",
	KindSetCurrentLayer:       "set_current_layer",
	KindSetMaxLayer:           "set_max_layer",
	KindSetPower:              "set_power",
	KindSetLayerPower:         "set_layer_power",
	KindSetSpeed:              "set_speed",
	KindSetLayerSpeed:         "set_layer_speed",
}

// String returns the snake_case kind name used in traces.
func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds returns every defined kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Category is the display severity of a command.
type Category int

const (
	// CategoryGood marks a fully decoded command.
	CategoryGood Category = iota
	// CategoryEmpty marks an instruction with no bytes.
	CategoryEmpty
	// CategoryIncomplete marks an instruction that does not start with an opcode.
	CategoryIncomplete
	// CategoryUnknown marks an opcode, sub-opcode or length outside the table.
	CategoryUnknown
)

func (c Category) String() string {
	switch c {
	case CategoryGood:
		return "good"
	case CategoryEmpty:
		return "empty"
	case CategoryIncomplete:
		return "incomplete"
	case CategoryUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}
