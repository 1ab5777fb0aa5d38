// Package canvas turns executed cuts into pen activity and exportable drawings.
package canvas

import (
	"github.com/pithecene-io/rdint/plotter"
	"github.com/pithecene-io/rdint/types"
)

// Observer receives pen activity in execution order.
type Observer interface {
	PenUp(at types.Point)
	PenDown(at types.Point)
	Travel(from, to types.Point)
	Work(from, to types.Point)
}

// Pen converts cut segments into pen lifts, travel and work, and fans the
// events out to its observers. It implements plotter.Drawer.
type Pen struct {
	pos       types.Point
	down      bool
	observers []Observer
}

// NewPen creates a raised pen at the origin.
func NewPen(observers ...Observer) *Pen {
	return &Pen{observers: observers}
}

// Attach adds an observer.
func (p *Pen) Attach(o Observer) {
	p.observers = append(p.observers, o)
}

// Cut draws from -> to, travelling to from with the pen up if needed.
func (p *Pen) Cut(from, to types.Point) {
	if p.pos != from {
		if p.down {
			p.down = false
			for _, o := range p.observers {
				o.PenUp(p.pos)
			}
		}
		for _, o := range p.observers {
			o.Travel(p.pos, from)
		}
		p.pos = from
	}
	if !p.down {
		p.down = true
		for _, o := range p.observers {
			o.PenDown(from)
		}
	}
	for _, o := range p.observers {
		o.Work(from, to)
	}
	p.pos = to
}

// LayerChanged forwards layer activation to observers that style by layer.
func (p *Pen) LayerChanged(index int, layer plotter.Layer) {
	for _, o := range p.observers {
		if lo, ok := o.(plotter.LayerObserver); ok {
			lo.LayerChanged(index, layer)
		}
	}
}

// Position returns the pen location.
func (p *Pen) Position() types.Point { return p.pos }

// Down reports whether the pen is lowered.
func (p *Pen) Down() bool { return p.down }

var (
	_ plotter.Drawer        = (*Pen)(nil)
	_ plotter.LayerObserver = (*Pen)(nil)
)
