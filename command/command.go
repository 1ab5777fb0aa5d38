package command

import (
	"strings"

	"github.com/pithecene-io/rdint/plotter"
	"github.com/pithecene-io/rdint/types"
)

// Command is a decoded instruction. Which value fields are meaningful
// depends on Kind; the behavior table is the only reader.
type Command struct {
	Kind  Kind
	Instr types.Instruction

	// Cut distinguishes cut from move for the motion kinds.
	Cut bool
	// YAxis selects the axis of KindMoveOrCutRelativeAxis.
	YAxis bool
	// Max selects the maximum extreme (limits) or maximum power.
	Max bool
	// Laser is the laser head number for power kinds.
	Laser int
	// Layer is the addressed layer index.
	Layer int
	// X and Y are absolute coordinates or relative deltas in raw units.
	X, Y int64
	// Value carries power, speed, packed color or the device mask.
	Value uint64
}

// behavior is the per-kind row of the dispatch table.
type behavior struct {
	category Category
	name     func(c *Command) string
	params   func(c *Command) []Param
	process  func(c *Command, s plotter.State)
}

// Name returns the human readable command name.
func (c *Command) Name() string {
	return behaviors[c.Kind].name(c)
}

// Category returns the display category.
func (c *Command) Category() Category {
	return behaviors[c.Kind].category
}

// Params returns the ordered display parameters.
func (c *Command) Params() []Param {
	if p := behaviors[c.Kind].params; p != nil {
		return p(c)
	}
	return nil
}

// Good reports whether the command decoded fully.
func (c *Command) Good() bool {
	return c.Category() == CategoryGood
}

// Process applies the command's effect to s. Non-good kinds do nothing.
func (c *Command) Process(s plotter.State) {
	if p := behaviors[c.Kind].process; p != nil {
		p(c, s)
	}
}

// AirBlower reports the air assist bit of KindEnableDevices.
func (c *Command) AirBlower() bool {
	return c.Value&0x01 != 0
}

// UnknownDevices returns device bits without a known meaning.
func (c *Command) UnknownDevices() uint8 {
	return uint8(c.Value) & 0x7E
}

// RGB unpacks the layer color of KindSetLayerColor.
func (c *Command) RGB() (r, g, b uint8) {
	return uint8(c.Value & 0xFF), uint8(c.Value >> 8 & 0xFF), uint8(c.Value >> 16 & 0xFF)
}

// Signature returns the lowercase hex of the opcode, plus the sub-opcode
// for kinds that are keyed on one.
func (c *Command) Signature() string {
	n := 1
	if hasSubOpcode(c.Kind) && len(c.Instr.Data) > 1 {
		n = 2
	}
	if len(c.Instr.Data) < n {
		return ""
	}
	return types.Instruction{Data: c.Instr.Data[:n]}.Hex()
}

// Matches reports whether sig is a prefix of the instruction hex.
// Case, spaces and a leading 0x are ignored; an empty signature never matches.
func (c *Command) Matches(sig string) bool {
	sig = NormalizeSignature(sig)
	return sig != "" && strings.HasPrefix(c.Instr.Hex(), sig)
}

// NormalizeSignature lowercases sig and strips spaces and a 0x prefix.
func NormalizeSignature(sig string) string {
	sig = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(sig), " ", ""))
	return strings.TrimPrefix(sig, "0x")
}

// String renders "Name(p1=v1, p2=v2)".
func (c *Command) String() string {
	params := c.Params()
	if len(params) == 0 {
		return c.Name()
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return c.Name() + "(" + strings.Join(parts, ", ") + ")"
}

func hasSubOpcode(k Kind) bool {
	switch k {
	case KindSetAbsoluteLimits, KindEnableDevices, KindSetLayerColor, KindSetCurrentLayer,
		KindSetMaxLayer, KindSetPower, KindSetLayerPower, KindSetSpeed, KindSetLayerSpeed:
		return true
	default:
		return false
	}
}
