package metrics

import (
	"github.com/san-kum/dsmcsim/internal/constants"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// KineticEnergy is the step-averaged species kinetic energy [J].
type KineticEnergy struct {
	name    string
	mass    float64
	total   float64
	samples int
}

func NewKineticEnergy(mass float64) *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy", mass: mass}
}

func (e *KineticEnergy) Name() string { return e.name }

func (e *KineticEnergy) Observe(p dynamo.ParticleState, _ bool) {
	e.total += 0.5 * e.mass * r3.Dot(p.Velocity, p.Velocity)
	e.samples++
}

func (e *KineticEnergy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.total / float64(e.samples)
}

func (e *KineticEnergy) Reset() {
	e.total = 0
	e.samples = 0
}

// SpeciesTemperature converts the averaged kinetic energy to a kinetic
// temperature 2E/3k [K].
type SpeciesTemperature struct {
	KineticEnergy
}

func NewSpeciesTemperature(mass float64) *SpeciesTemperature {
	return &SpeciesTemperature{KineticEnergy{name: "species_temperature", mass: mass}}
}

func (s *SpeciesTemperature) Value() float64 {
	return 2 * s.KineticEnergy.Value() / (3 * constants.KBoltzmann)
}
