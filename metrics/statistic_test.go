package metrics

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/pithecene-io/rdint/types"
)

func TestStatistic_Slots(t *testing.T) {
	s := NewStatistic()

	s.PenUp(types.Point{})
	s.Travel(types.Point{}, types.Point{X: 3000, Y: 4000})
	s.PenDown(types.Point{X: 3000, Y: 4000})
	s.Work(types.Point{X: 3000, Y: 4000}, types.Point{X: 13000, Y: 4000})

	s.SetTarget(SlotRaster)
	s.Work(types.Point{X: 0, Y: 0}, types.Point{X: 0, Y: 2000})
	s.SetTarget(SlotGlobal) // ignored
	s.Work(types.Point{X: 0, Y: 2000}, types.Point{X: 0, Y: 3000})

	vec := s.Slot(SlotVector, UnitMM)
	if vec.WorkLength != 10 || vec.MoveLength != 5 || vec.TotalLength != 15 {
		t.Errorf("vector lengths = %v/%v/%v", vec.WorkLength, vec.MoveLength, vec.TotalLength)
	}
	if vec.PenUp != 1 || vec.PenDown != 1 || vec.Segments != 1 {
		t.Errorf("vector counts = %+v", vec)
	}

	raster := s.Slot(SlotRaster, UnitMM)
	if raster.Segments != 2 || raster.WorkLength != 3 {
		t.Errorf("raster = %+v", raster)
	}

	global := s.Slot(SlotGlobal, UnitRaw)
	if global.WorkLength != 13000 || global.Segments != 3 {
		t.Errorf("global = %+v", global)
	}
	want := types.NewBoundingBox(types.Point{}, types.Point{X: 13000, Y: 4000})
	if global.BoundingBox != want {
		t.Errorf("global bbox = %v, want %v", global.BoundingBox, want)
	}
}

func TestUnit_Convert(t *testing.T) {
	tests := []struct {
		unit Unit
		raw  float64
		want float64
	}{
		{unit: UnitMM, raw: 25400, want: 25.4},
		{unit: UnitInch, raw: 25400, want: 1},
		{unit: UnitRaw, raw: 25400, want: 25400},
	}
	for _, tt := range tests {
		if got := tt.unit.Convert(tt.raw); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s.Convert(%v) = %v, want %v", tt.unit, tt.raw, got, tt.want)
		}
	}
}

func TestParseUnit(t *testing.T) {
	for in, want := range map[string]Unit{"mm": UnitMM, "IN": UnitInch, " raw ": UnitRaw, "": UnitMM} {
		got, err := ParseUnit(in)
		if err != nil || got != want {
			t.Errorf("ParseUnit(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseUnit("furlong"); err == nil {
		t.Error("expected error for unknown unit")
	}
}

func TestStatistic_Report(t *testing.T) {
	s := NewStatistic()
	s.PenDown(types.Point{})
	s.Work(types.Point{}, types.Point{X: 1500})

	var buf bytes.Buffer
	if err := s.Report(&buf, UnitMM); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	out := buf.String()

	for _, line := range []string{
		"VECTOR\t| work length=1.500\n",
		"VECTOR\t| penDown count=1\n",
		"VECTOR\t| bounding box=0 0 1500 0\n",
		"RASTER\t| bounding box=(unset)\n",
		"GLOBAL\t| segment count=1\n",
	} {
		if !strings.Contains(out, line) {
			t.Errorf("report missing %q\n%s", line, out)
		}
	}
	if n := strings.Count(out, "\n"); n != 21 {
		t.Errorf("report has %d lines, want 21", n)
	}
}
