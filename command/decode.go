package command

import (
	"github.com/pithecene-io/rdint/codec"
	"github.com/pithecene-io/rdint/types"
)

// Opcodes of the known instruction families.
const (
	OpMoveAbs      = 0x88
	OpMoveRel      = 0x89
	OpMoveRelX     = 0x8A
	OpMoveRelY     = 0x8B
	OpCutAbs       = 0xA8
	OpCutRel       = 0xA9
	OpCutRelX      = 0xAA
	OpCutRelY      = 0xAB
	OpPower        = 0xC6
	OpSpeed        = 0xC9
	OpLayer        = 0xCA
	OpLimits       = 0xE7
	subSpeed       = 0x02
	subLayerSpeed  = 0x04
	subDevices     = 0x01
	subCurLayer    = 0x02
	subLayerColor  = 0x06
	subMaxLayer    = 0x22
	subLimitsMin   = 0x03
	subLimitsMax   = 0x07
	powerMaxBit    = 0x02
	layerPowerBase = 2
)

// Decode classifies an instruction. It never fails.
func Decode(in types.Instruction) Command {
	d := in.Data
	c := Command{Instr: in}

	switch {
	case len(d) == 0:
		c.Kind = KindEmpty
		return c
	case d[0] < types.OpcodeThreshold:
		c.Kind = KindIncomplete
		return c
	}

	c.Kind = KindUnknown
	switch d[0] {
	case OpMoveAbs, OpCutAbs:
		if len(d) == 11 {
			c.Kind = KindMoveOrCutAbsolute
			c.Cut = d[0] == OpCutAbs
			c.X = codec.ParseSigned(d[1:6])
			c.Y = codec.ParseSigned(d[6:11])
		}
	case OpMoveRel, OpCutRel:
		if len(d) == 5 {
			c.Kind = KindMoveOrCutRelative
			c.Cut = d[0] == OpCutRel
			c.X = codec.ParseSigned(d[1:3])
			c.Y = codec.ParseSigned(d[3:5])
		}
	case OpMoveRelX, OpMoveRelY, OpCutRelX, OpCutRelY:
		if len(d) == 3 {
			c.Kind = KindMoveOrCutRelativeAxis
			c.Cut = d[0] == OpCutRelX || d[0] == OpCutRelY
			c.YAxis = d[0] == OpMoveRelY || d[0] == OpCutRelY
			delta := codec.ParseSigned(d[1:3])
			if c.YAxis {
				c.Y = delta
			} else {
				c.X = delta
			}
		}
	case OpPower:
		decodePower(&c, d)
	case OpSpeed:
		decodeSpeed(&c, d)
	case OpLayer:
		decodeLayer(&c, d)
	case OpLimits:
		if len(d) == 12 && (d[1] == subLimitsMin || d[1] == subLimitsMax) {
			c.Kind = KindSetAbsoluteLimits
			c.Max = d[1] == subLimitsMax
			c.X = codec.ParseSigned(d[2:7])
			c.Y = codec.ParseSigned(d[7:12])
		}
	}
	return c
}

func decodePower(c *Command, d []byte) {
	if len(d) < 2 {
		return
	}
	sub := d[1]
	switch sub {
	case 0x01, 0x02, 0x21, 0x22:
		if len(d) == 4 {
			c.Kind = KindSetPower
			c.Laser = int(sub&0x20)>>5 + 1
			c.Max = sub&powerMaxBit != 0
			c.Value = codec.ParseUnsigned(d[2:4])
		}
	case 0x31, 0x32, 0x41, 0x42:
		if len(d) == 5 {
			c.Kind = KindSetLayerPower
			c.Laser = int(sub&0x70)>>4 - layerPowerBase
			c.Max = sub&powerMaxBit != 0
			c.Layer = int(codec.ParseUnsigned(d[2:3]))
			c.Value = codec.ParseUnsigned(d[3:5])
		}
	}
}

func decodeSpeed(c *Command, d []byte) {
	if len(d) < 2 {
		return
	}
	switch {
	case d[1] == subSpeed && len(d) == 7:
		c.Kind = KindSetSpeed
		c.Value = codec.ParseUnsigned(d[2:7])
	case d[1] == subLayerSpeed && len(d) == 8:
		c.Kind = KindSetLayerSpeed
		c.Layer = int(codec.ParseUnsigned(d[2:3]))
		c.Value = codec.ParseUnsigned(d[3:8])
	}
}

func decodeLayer(c *Command, d []byte) {
	if len(d) < 2 {
		return
	}
	switch {
	case d[1] == subDevices && len(d) == 3:
		c.Kind = KindEnableDevices
		c.Value = codec.ParseUnsigned(d[2:3])
	case d[1] == subCurLayer && len(d) == 3:
		c.Kind = KindSetCurrentLayer
		c.Layer = int(codec.ParseUnsigned(d[2:3]))
	case d[1] == subLayerColor && len(d) == 8:
		c.Kind = KindSetLayerColor
		c.Layer = int(codec.ParseUnsigned(d[2:3]))
		c.Value = codec.ParseUnsigned(d[3:8])
	case d[1] == subMaxLayer && len(d) == 3:
		c.Kind = KindSetMaxLayer
		c.Layer = int(codec.ParseUnsigned(d[2:3]))
	}
}
