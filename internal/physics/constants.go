package physics

import (
	"fmt"

	"github.com/san-kum/dsmcsim/internal/constants"
	"github.com/san-kum/dsmcsim/internal/dynamo"
)

// Constants are immutable for a run. Masses in kg.
type Constants struct {
	Boltzmann   float64
	AmbientMass float64
	SpeciesMass float64
}

// NewConstants builds the particle masses from molar masses [kg/mol].
func NewConstants(ambientMolar, speciesMolar float64) Constants {
	return Constants{
		Boltzmann:   constants.KBoltzmann,
		AmbientMass: ambientMolar / constants.Avogadro,
		SpeciesMass: speciesMolar / constants.Avogadro,
	}
}

// DefaultConstants is helium buffer gas with YbOH molecules.
func DefaultConstants() Constants {
	return NewConstants(constants.HeliumMolarMass, constants.YbOHMolarMass)
}

// MassParam is 2m/(m+M).
func (c Constants) MassParam() float64 {
	return 2 * c.AmbientMass / (c.AmbientMass + c.SpeciesMass)
}

func (c Constants) Validate() error {
	if !(c.Boltzmann > 0) || !(c.AmbientMass > 0) || !(c.SpeciesMass > 0) {
		return fmt.Errorf("%w: constants must be positive (k=%g, m=%g, M=%g)",
			dynamo.ErrInvalidConfig, c.Boltzmann, c.AmbientMass, c.SpeciesMass)
	}
	return nil
}

func (c Constants) GetParams() map[string]float64 {
	return map[string]float64{
		"ambient_mass": c.AmbientMass,
		"species_mass": c.SpeciesMass,
	}
}

func (c *Constants) SetParam(name string, value float64) error {
	if !(value > 0) {
		return fmt.Errorf("%w: %s must be positive, got %g", dynamo.ErrInvalidConfig, name, value)
	}
	switch name {
	case "ambient_mass":
		c.AmbientMass = value
	case "species_mass":
		c.SpeciesMass = value
	default:
		return fmt.Errorf("%w: unknown parameter %q", dynamo.ErrInvalidConfig, name)
	}
	return nil
}
