package metrics

import (
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// SquaredDisplacement is |r - Origin|^2 at the last observed step [m^2].
type SquaredDisplacement struct {
	Origin r3.Vec
	last   float64
}

func NewSquaredDisplacement(origin r3.Vec) *SquaredDisplacement {
	return &SquaredDisplacement{Origin: origin}
}

func (d *SquaredDisplacement) Name() string { return "squared_displacement" }

func (d *SquaredDisplacement) Observe(p dynamo.ParticleState, _ bool) {
	delta := r3.Sub(p.Position, d.Origin)
	d.last = r3.Dot(delta, delta)
}

func (d *SquaredDisplacement) Value() float64 { return d.last }
func (d *SquaredDisplacement) Reset()         { d.last = 0 }
