package metrics

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pithecene-io/rdint/types"
)

// SlotID selects a statistics slot.
type SlotID int

const (
	// SlotRaster accumulates engraving passes.
	SlotRaster SlotID = iota
	// SlotVector accumulates cutting passes.
	SlotVector
	// SlotGlobal is the derived sum of raster and vector; it is never recorded to.
	SlotGlobal
)

func (s SlotID) String() string {
	switch s {
	case SlotRaster:
		return "RASTER"
	case SlotVector:
		return "VECTOR"
	case SlotGlobal:
		return "GLOBAL"
	default:
		return fmt.Sprintf("SLOT(%d)", int(s))
	}
}

// Unit is a display length unit.
type Unit string

const (
	UnitMM   Unit = "mm"
	UnitInch Unit = "in"
	UnitRaw  Unit = "raw"
)

// ParseUnit accepts mm, in or raw.
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(strings.ToLower(strings.TrimSpace(s))); u {
	case UnitMM, UnitInch, UnitRaw:
		return u, nil
	case "":
		return UnitMM, nil
	default:
		return "", fmt.Errorf("unknown unit %q (want mm, in or raw)", s)
	}
}

// Convert scales a raw micrometer length to u.
func (u Unit) Convert(raw float64) float64 {
	switch u {
	case UnitInch:
		return raw / 25400
	case UnitRaw:
		return raw
	default:
		return raw / 1000
	}
}

// slot is one accumulator.
type slot struct {
	workLen  float64
	moveLen  float64
	penDown  int64
	penUp    int64
	segments int64
	bbox     types.BoundingBox
}

// SlotReport is a converted, renderable view of one slot.
type SlotReport struct {
	Name        string            `json:"name" yaml:"name"`
	Unit        Unit              `json:"unit" yaml:"unit"`
	WorkLength  float64           `json:"work_length" yaml:"work_length"`
	MoveLength  float64           `json:"move_length" yaml:"move_length"`
	TotalLength float64           `json:"total_length" yaml:"total_length"`
	PenUp       int64             `json:"pen_up" yaml:"pen_up"`
	PenDown     int64             `json:"pen_down" yaml:"pen_down"`
	Segments    int64             `json:"segments" yaml:"segments"`
	BoundingBox types.BoundingBox `json:"bounding_box" yaml:"bounding_box"`
}

// Statistic accumulates toolpath lengths and pen activity.
// It observes pen events and records them into the target slot.
// Safe for concurrent use; the console reads it while the replay writes.
type Statistic struct {
	mu     sync.Mutex
	slots  [2]slot
	target SlotID
}

// NewStatistic returns a Statistic recording into SlotVector.
func NewStatistic() *Statistic {
	return &Statistic{target: SlotVector}
}

// SetTarget selects the slot that subsequent pen events are recorded into.
// SlotGlobal is rejected and leaves the target unchanged.
func (s *Statistic) SetTarget(id SlotID) {
	if id != SlotRaster && id != SlotVector {
		return
	}
	s.mu.Lock()
	s.target = id
	s.mu.Unlock()
}

// PenUp counts a pen lift.
func (s *Statistic) PenUp(types.Point) {
	s.mu.Lock()
	s.slots[s.target].penUp++
	s.mu.Unlock()
}

// PenDown counts a pen drop.
func (s *Statistic) PenDown(types.Point) {
	s.mu.Lock()
	s.slots[s.target].penDown++
	s.mu.Unlock()
}

// Travel adds a pen-up move.
func (s *Statistic) Travel(from, to types.Point) {
	s.mu.Lock()
	s.slots[s.target].moveLen += from.Distance(to)
	s.mu.Unlock()
}

// Work adds a pen-down segment.
func (s *Statistic) Work(from, to types.Point) {
	s.mu.Lock()
	sl := &s.slots[s.target]
	sl.workLen += from.Distance(to)
	sl.segments++
	sl.bbox.Update(from)
	sl.bbox.Update(to)
	s.mu.Unlock()
}

// Slot returns the converted view of one slot.
func (s *Statistic) Slot(id SlotID, unit Unit) SlotReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sl slot
	switch id {
	case SlotRaster, SlotVector:
		sl = s.slots[id]
	default:
		for _, o := range s.slots {
			sl.workLen += o.workLen
			sl.moveLen += o.moveLen
			sl.penDown += o.penDown
			sl.penUp += o.penUp
			sl.segments += o.segments
			sl.bbox = sl.bbox.Union(o.bbox)
		}
	}

	return SlotReport{
		Name:        id.String(),
		Unit:        unit,
		WorkLength:  unit.Convert(sl.workLen),
		MoveLength:  unit.Convert(sl.moveLen),
		TotalLength: unit.Convert(sl.workLen + sl.moveLen),
		PenUp:       sl.penUp,
		PenDown:     sl.penDown,
		Segments:    sl.segments,
		BoundingBox: sl.bbox,
	}
}

// Slots returns all three slots in RASTER, VECTOR, GLOBAL order.
func (s *Statistic) Slots(unit Unit) []SlotReport {
	return []SlotReport{
		s.Slot(SlotRaster, unit),
		s.Slot(SlotVector, unit),
		s.Slot(SlotGlobal, unit),
	}
}

// Report writes the line-oriented statistics block for every slot.
func (s *Statistic) Report(w io.Writer, unit Unit) error {
	for _, r := range s.Slots(unit) {
		if err := WriteSlot(w, r); err != nil {
			return err
		}
	}
	return nil
}

// WriteSlot writes one slot as "NAME\t| key=value" lines.
func WriteSlot(w io.Writer, r SlotReport) error {
	lines := []string{
		fmt.Sprintf("work length=%.3f", r.WorkLength),
		fmt.Sprintf("move length=%.3f", r.MoveLength),
		fmt.Sprintf("total length=%.3f", r.TotalLength),
		fmt.Sprintf("penUp count=%d", r.PenUp),
		fmt.Sprintf("penDown count=%d", r.PenDown),
		fmt.Sprintf("segment count=%d", r.Segments),
		fmt.Sprintf("bounding box=%s", r.BoundingBox),
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%s\t| %s\n", r.Name, l); err != nil {
			return err
		}
	}
	return nil
}
