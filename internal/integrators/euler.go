package integrators

import (
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Euler advances a free-flying particle: between collisions the velocity is
// constant, so a single explicit step is exact.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(p *dynamo.ParticleState, dt float64) {
	p.Time += dt
	p.Position = r3.Add(p.Position, r3.Scale(dt, p.Velocity))
	p.Step++
}
