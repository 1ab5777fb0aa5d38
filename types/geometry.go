package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Point is a position in raw device units (micrometers).
type Point struct {
	X int64 `msgpack:"x" json:"x" cbor:"x" yaml:"x"`
	Y int64 `msgpack:"y" json:"y" cbor:"y" yaml:"y"`
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Distance returns the euclidean distance between p and q in raw units.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(float64(q.X-p.X), float64(q.Y-p.Y))
}

func (p Point) String() string {
	return fmt.Sprintf("[%d,%d]", p.X, p.Y)
}

// BoundingBox is an axis-aligned box. The zero value is unset;
// use Set to check presence before reading Min and Max.
type BoundingBox struct {
	Min Point `msgpack:"min" json:"min" cbor:"min" yaml:"min"`
	Max Point `msgpack:"max" json:"max" cbor:"max" yaml:"max"`
	// Present is true once at least one point has been recorded.
	Present bool `msgpack:"present" json:"present" cbor:"present" yaml:"present"`
}

// NewBoundingBox returns a box spanning the two corners in any order.
func NewBoundingBox(a, b Point) BoundingBox {
	var bb BoundingBox
	bb.Update(a)
	bb.Update(b)
	return bb
}

// Update grows the box to include p.
func (b *BoundingBox) Update(p Point) {
	if !b.Present {
		b.Min, b.Max, b.Present = p, p, true
		return
	}
	b.Min.X = min(b.Min.X, p.X)
	b.Min.Y = min(b.Min.Y, p.Y)
	b.Max.X = max(b.Max.X, p.X)
	b.Max.Y = max(b.Max.Y, p.Y)
}

// Union returns the smallest box containing b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	if !o.Present {
		return b
	}
	if !b.Present {
		return o
	}
	b.Update(o.Min)
	b.Update(o.Max)
	return b
}

// Set reports whether any point has been recorded.
func (b BoundingBox) Set() bool {
	return b.Present
}

// Valid reports whether the box is set and non-degenerate on both axes.
func (b BoundingBox) Valid() bool {
	return b.Present && b.Max.X > b.Min.X && b.Max.Y > b.Min.Y
}

// Width returns the extent along X.
func (b BoundingBox) Width() int64 { return b.Max.X - b.Min.X }

// Height returns the extent along Y.
func (b BoundingBox) Height() int64 { return b.Max.Y - b.Min.Y }

// Contains reports whether p lies inside the box, edges included.
func (b BoundingBox) Contains(p Point) bool {
	return b.Present &&
		p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

func (b BoundingBox) String() string {
	if !b.Present {
		return "(unset)"
	}
	return fmt.Sprintf("%d %d %d %d", b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
}

// ParseGeometry parses "WxH" or "X1xY1xX2xY2".
// Two values span (0,0)-(W,H); four values give both corners.
func ParseGeometry(s string) (BoundingBox, error) {
	fields := strings.Split(strings.TrimSpace(s), "x")
	vals := make([]int64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("invalid geometry %q: %w", s, err)
		}
		vals = append(vals, v)
	}

	switch len(vals) {
	case 2:
		if vals[0] <= 0 || vals[1] <= 0 {
			return BoundingBox{}, fmt.Errorf("invalid geometry %q: dimensions must be positive", s)
		}
		return NewBoundingBox(Point{}, Point{X: vals[0], Y: vals[1]}), nil
	case 4:
		return NewBoundingBox(Point{X: vals[0], Y: vals[1]}, Point{X: vals[2], Y: vals[3]}), nil
	default:
		return BoundingBox{}, fmt.Errorf("invalid geometry %q: want WxH or X1xY1xX2xY2", s)
	}
}
