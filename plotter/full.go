package plotter

import (
	"fmt"

	"github.com/pithecene-io/rdint/types"
)

// Layer is one group of cut settings.
type Layer struct {
	Red      uint8  `json:"red" yaml:"red"`
	Green    uint8  `json:"green" yaml:"green"`
	Blue     uint8  `json:"blue" yaml:"blue"`
	Power    uint64 `json:"power" yaml:"power"`
	MinPower uint64 `json:"min_power" yaml:"min_power"`
	Speed    uint64 `json:"speed" yaml:"speed"`
}

// Color returns the layer color as "#rrggbb".
func (l Layer) Color() string {
	return fmt.Sprintf("#%02x%02x%02x", l.Red, l.Green, l.Blue)
}

// FullState is the replay state. It is owned by the execution goroutine.
type FullState struct {
	pos      types.Point
	layers   []Layer
	layerNo  int
	current  Layer
	power    uint64
	minPower uint64
	speed    uint64
	devices  uint8
	limits   Limits
	drawer   Drawer
}

// NewFullState creates a replay state emitting cuts to drawer.
// A nil drawer discards cuts.
func NewFullState(drawer Drawer) *FullState {
	return &FullState{layerNo: -1, drawer: drawer}
}

// layer returns the addressed record, materializing the table up to index.
func (s *FullState) layer(index int) *Layer {
	if index < 0 {
		index = 0
	}
	for len(s.layers) <= index {
		s.layers = append(s.layers, Layer{})
	}
	return &s.layers[index]
}

func (s *FullState) cut(to types.Point) {
	from := s.pos
	s.pos = to
	if s.drawer != nil {
		s.drawer.Cut(from, to)
	}
}

// MoveAbs moves the cursor without drawing.
func (s *FullState) MoveAbs(p types.Point) { s.pos = p }

// CutAbs draws from the cursor to p.
func (s *FullState) CutAbs(p types.Point) { s.cut(p) }

// MoveRel moves the cursor by d without drawing.
func (s *FullState) MoveRel(d types.Point) { s.pos = s.pos.Add(d) }

// CutRel draws from the cursor to cursor+d.
func (s *FullState) CutRel(d types.Point) { s.cut(s.pos.Add(d)) }

// SetLimit records one header extreme.
func (s *FullState) SetLimit(isMax bool, p types.Point) { s.limits.set(isMax, p) }

// SetPower sets the global minimum or maximum power.
func (s *FullState) SetPower(_ int, isMax bool, pwr uint64) {
	if isMax {
		s.power = pwr
		return
	}
	s.minPower = pwr
}

// SetLayerPower sets the addressed layer's minimum or maximum power.
func (s *FullState) SetLayerPower(layer, _ int, isMax bool, pwr uint64) {
	l := s.layer(layer)
	if isMax {
		l.Power = pwr
		return
	}
	l.MinPower = pwr
}

// SetSpeed sets the global speed.
func (s *FullState) SetSpeed(speed uint64) { s.speed = speed }

// SetLayerSpeed sets the addressed layer's speed.
func (s *FullState) SetLayerSpeed(layer int, speed uint64) { s.layer(layer).Speed = speed }

// SetLayerColor sets the addressed layer's color.
func (s *FullState) SetLayerColor(layer int, r, g, b uint8) {
	l := s.layer(layer)
	l.Red, l.Green, l.Blue = r, g, b
}

// SetCurrentLayer activates a layer and snapshots its settings.
func (s *FullState) SetCurrentLayer(layer int) {
	s.layerNo = layer
	s.current = *s.layer(layer)
	if obs, ok := s.drawer.(LayerObserver); ok {
		obs.LayerChanged(layer, s.current)
	}
}

// SetMaxLayer materializes the table up to layer.
func (s *FullState) SetMaxLayer(layer int) { s.layer(layer) }

// EnableDevices records the device mask.
func (s *FullState) EnableDevices(devices uint8) { s.devices = devices }

// Position returns the cursor.
func (s *FullState) Position() types.Point { return s.pos }

// LayerIndex returns the active layer, -1 before any SetCurrentLayer.
func (s *FullState) LayerIndex() int { return s.layerNo }

// Current returns the settings snapshot taken when the active layer was set.
func (s *FullState) Current() Layer { return s.current }

// Layer returns the addressed layer, materializing the table as needed.
func (s *FullState) Layer(index int) Layer { return *s.layer(index) }

// LayerCount returns the number of materialized layers.
func (s *FullState) LayerCount() int { return len(s.layers) }

// Limits returns the recorded header extremes.
func (s *FullState) Limits() Limits { return s.limits }

// Snapshot is a read-only copy of the replay state.
type Snapshot struct {
	Position     types.Point `json:"position" yaml:"position"`
	CurrentLayer int         `json:"current_layer" yaml:"current_layer"`
	Layers       []Layer     `json:"layers" yaml:"layers"`
	Power        uint64      `json:"power" yaml:"power"`
	MinPower     uint64      `json:"min_power" yaml:"min_power"`
	Speed        uint64      `json:"speed" yaml:"speed"`
	Devices      uint8       `json:"devices" yaml:"devices"`
	Limits       Limits      `json:"limits" yaml:"limits"`
}

// Snapshot copies the current state.
func (s *FullState) Snapshot() Snapshot {
	return Snapshot{
		Position:     s.pos,
		CurrentLayer: s.layerNo,
		Layers:       append([]Layer(nil), s.layers...),
		Power:        s.power,
		MinPower:     s.minPower,
		Speed:        s.speed,
		Devices:      s.devices,
		Limits:       s.limits,
	}
}

var (
	_ State = (*FullState)(nil)
	_ State = (*LimitsState)(nil)
)
