// Package plotter holds the execution context that decoded commands mutate.
//
// Coordinates are raw device units (micrometers) exactly as decoded; no
// rescaling or mirroring is applied. Conversion to millimeters happens only
// at display and export time.
package plotter

import "github.com/pithecene-io/rdint/types"

// State is the set of effects a command may apply.
type State interface {
	MoveAbs(p types.Point)
	CutAbs(p types.Point)
	MoveRel(d types.Point)
	CutRel(d types.Point)
	SetLimit(isMax bool, p types.Point)
	SetPower(laser int, isMax bool, pwr uint64)
	SetLayerPower(layer, laser int, isMax bool, pwr uint64)
	SetSpeed(speed uint64)
	SetLayerSpeed(layer int, speed uint64)
	SetLayerColor(layer int, r, g, b uint8)
	SetCurrentLayer(layer int)
	SetMaxLayer(layer int)
	EnableDevices(devices uint8)
}

// Drawer receives one segment per executed cut.
type Drawer interface {
	Cut(from, to types.Point)
}

// LayerObserver is implemented by drawers that style segments per layer.
type LayerObserver interface {
	LayerChanged(index int, layer Layer)
}

// NullState ignores every effect.
type NullState struct{}

func (NullState) MoveAbs(types.Point) {}
func (NullState) CutAbs(types.Point) {}
func (NullState) MoveRel(types.Point) {}
func (NullState) CutRel(types.Point) {}
func (NullState) SetLimit(bool, types.Point) {}
func (NullState) SetPower(int, bool, uint64) {}
func (NullState) SetLayerPower(int, int, bool, uint64) {}
func (NullState) SetSpeed(uint64) {}
func (NullState) SetLayerSpeed(int, uint64) {}
func (NullState) SetLayerColor(int, uint8, uint8, uint8) {}
func (NullState) SetCurrentLayer(int) {}
func (NullState) SetMaxLayer(int) {}
func (NullState) EnableDevices(uint8) {}

// Limits are the extreme coordinates announced by the file header.
type Limits struct {
	Min    types.Point `json:"min" yaml:"min"`
	Max    types.Point `json:"max" yaml:"max"`
	HasMin bool        `json:"has_min" yaml:"has_min"`
	HasMax bool        `json:"has_max" yaml:"has_max"`
}

// Complete reports whether both extremes were recorded.
func (l Limits) Complete() bool {
	return l.HasMin && l.HasMax
}

// Box returns the limits as a bounding box; unset when incomplete.
func (l Limits) Box() types.BoundingBox {
	if !l.Complete() {
		return types.BoundingBox{}
	}
	return types.NewBoundingBox(l.Min, l.Max)
}

func (l *Limits) set(isMax bool, p types.Point) {
	if isMax {
		l.Max, l.HasMax = p, true
		return
	}
	l.Min, l.HasMin = p, true
}

// LimitsState is the header-scan state: only the limits command has effect.
type LimitsState struct {
	NullState
	limits Limits
}

// NewLimitsState creates an empty header-scan state.
func NewLimitsState() *LimitsState {
	return &LimitsState{}
}

// SetLimit records one extreme.
func (s *LimitsState) SetLimit(isMax bool, p types.Point) {
	s.limits.set(isMax, p)
}

// Limits returns the recorded extremes.
func (s *LimitsState) Limits() Limits {
	return s.limits
}
