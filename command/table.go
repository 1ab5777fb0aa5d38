package command

import (
	"fmt"

	"github.com/pithecene-io/rdint/plotter"
	"github.com/pithecene-io/rdint/types"
)

func fixed(name string) func(*Command) string {
	return func(*Command) string { return name }
}

func motion(c *Command, absolute string) string {
	verb := "Move"
	if c.Cut {
		verb = "Cut"
	}
	return verb + " " + absolute
}

func extreme(c *Command) string {
	if c.Max {
		return "max"
	}
	return "min"
}

func rawParams(c *Command) []Param {
	op, ok := c.Instr.Opcode()
	if !ok {
		return nil
	}
	return []Param{
		hexByte("opcode", op),
		integer("len", len(c.Instr.Data)),
	}
}

var behaviors = [kindCount]behavior{
	KindEmpty: {
		category: CategoryEmpty,
		name:     fixed("Empty"),
	},
	KindIncomplete: {
		category: CategoryIncomplete,
		name:     fixed("Incomplete"),
		params:   rawParams,
	},
	KindUnknown: {
		category: CategoryUnknown,
		name:     fixed("Unknown"),
		params:   rawParams,
	},
	KindSetAbsoluteLimits: {
		category: CategoryGood,
		name:     func(c *Command) string { return "Set absolute " + extreme(c) + " limits" },
		params: func(c *Command) []Param {
			return []Param{millimeters("x", c.X), millimeters("y", c.Y)}
		},
		process: func(c *Command, s plotter.State) {
			s.SetLimit(c.Max, types.Point{X: c.X, Y: c.Y})
		},
	},
	KindMoveOrCutAbsolute: {
		category: CategoryGood,
		name:     func(c *Command) string { return motion(c, "absolute") },
		params: func(c *Command) []Param {
			return []Param{millimeters("x", c.X), millimeters("y", c.Y)}
		},
		process: func(c *Command, s plotter.State) {
			p := types.Point{X: c.X, Y: c.Y}
			if c.Cut {
				s.CutAbs(p)
				return
			}
			s.MoveAbs(p)
		},
	},
	KindMoveOrCutRelative: {
		category: CategoryGood,
		name:     func(c *Command) string { return motion(c, "relative") },
		params: func(c *Command) []Param {
			return []Param{millimeters("dx", c.X), millimeters("dy", c.Y)}
		},
		process: processRelative,
	},
	KindMoveOrCutRelativeAxis: {
		category: CategoryGood,
		name: func(c *Command) string {
			if c.YAxis {
				return motion(c, "relative Y")
			}
			return motion(c, "relative X")
		},
		params: func(c *Command) []Param {
			if c.YAxis {
				return []Param{millimeters("dy", c.Y)}
			}
			return []Param{millimeters("dx", c.X)}
		},
		process: processRelative,
	},
	KindEnableDevices: {
		category: CategoryGood,
		name:     fixed("Enable devices"),
		params: func(c *Command) []Param {
			return []Param{
				hexByte("devices", uint8(c.Value)),
				boolean("air_blower", c.AirBlower()),
				hexByte("unknown", c.UnknownDevices()),
			}
		},
		process: func(c *Command, s plotter.State) {
			s.EnableDevices(uint8(c.Value))
		},
	},
	KindSetLayerColor: {
		category: CategoryGood,
		name:     fixed("Set layer color"),
		params: func(c *Command) []Param {
			r, g, b := c.RGB()
			return []Param{
				integer("layer", c.Layer),
				{Name: "color", Value: fmt.Sprintf("#%02x%02x%02x", r, g, b)},
			}
		},
		process: func(c *Command, s plotter.State) {
			r, g, b := c.RGB()
			s.SetLayerColor(c.Layer, r, g, b)
		},
	},
	KindSetCurrentLayer: {
		category: CategoryGood,
		name:     fixed("Set current layer"),
		params: func(c *Command) []Param {
			return []Param{integer("layer", c.Layer)}
		},
		process: func(c *Command, s plotter.State) {
			s.SetCurrentLayer(c.Layer)
		},
	},
	KindSetMaxLayer: {
		category: CategoryGood,
		name:     fixed("Set max layer"),
		params: func(c *Command) []Param {
			return []Param{integer("layer", c.Layer)}
		},
		process: func(c *Command, s plotter.State) {
			s.SetMaxLayer(c.Layer)
		},
	},
	KindSetPower: {
		category: CategoryGood,
		name:     func(c *Command) string { return "Set " + extreme(c) + " power" },
		params: func(c *Command) []Param {
			return []Param{integer("laser", c.Laser), percent("power", c.Value)}
		},
		process: func(c *Command, s plotter.State) {
			s.SetPower(c.Laser, c.Max, c.Value)
		},
	},
	KindSetLayerPower: {
		category: CategoryGood,
		name:     func(c *Command) string { return "Set layer " + extreme(c) + " power" },
		params: func(c *Command) []Param {
			return []Param{integer("laser", c.Laser), integer("layer", c.Layer), percent("power", c.Value)}
		},
		process: func(c *Command, s plotter.State) {
			s.SetLayerPower(c.Layer, c.Laser, c.Max, c.Value)
		},
	},
	KindSetSpeed: {
		category: CategoryGood,
		name:     fixed("Set speed"),
		params: func(c *Command) []Param {
			return []Param{speed("speed", c.Value)}
		},
		process: func(c *Command, s plotter.State) {
			s.SetSpeed(c.Value)
		},
	},
	KindSetLayerSpeed: {
		category: CategoryGood,
		name:     fixed("Set layer speed"),
		params: func(c *Command) []Param {
			return []Param{integer("layer", c.Layer), speed("speed", c.Value)}
		},
		process: func(c *Command, s plotter.State) {
			s.SetLayerSpeed(c.Layer, c.Value)
		},
	},
}

func processRelative(c *Command, s plotter.State) {
	d := types.Point{X: c.X, Y: c.Y}
	if c.Cut {
		s.CutRel(d)
		return
	}
	s.MoveRel(d)
}
