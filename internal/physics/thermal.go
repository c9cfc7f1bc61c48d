package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dsmcsim/internal/constants"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"github.com/san-kum/dsmcsim/internal/variate"
)

// ThermalState is the gas state at the particle's position. Temperatures in
// K, Density in m^-3, CrossSection in m^2.
type ThermalState struct {
	Temperature        float64
	SpeciesTemperature float64
	Density            float64
	CrossSection       float64
}

func DefaultThermalState() ThermalState {
	return ThermalState{
		Temperature:        constants.DefaultTemperature,
		SpeciesTemperature: constants.DefaultTemperature,
		Density:            constants.DefaultDensity,
		CrossSection:       constants.DefaultCrossSection,
	}
}

func (ts ThermalState) Validate() error {
	if !(ts.Temperature > 0) || !(ts.SpeciesTemperature > 0) || !(ts.Density > 0) {
		return fmt.Errorf("%w: T=%g K, Ts=%g K, n=%g m^-3",
			dynamo.ErrNonPhysical, ts.Temperature, ts.SpeciesTemperature, ts.Density)
	}
	if !(ts.CrossSection > 0) || math.IsInf(ts.CrossSection, 0) {
		return fmt.Errorf("%w: cross-section %g", dynamo.ErrInvalidConfig, ts.CrossSection)
	}
	return nil
}

// Derived quantities for one thermal state.
type Derived struct {
	VMean              float64 // ambient mean speed [m/s]
	VMeanSpecies       float64 // species mean speed [m/s]
	CollisionFrequency float64 // [1/s]
	Dt                 float64 // [s]
	Energy             float64 // mean ambient kinetic energy 3kT/2 [J]
}

// Derive computes mean speeds, the collision frequency
// n*sigma*vMeanSpecies*sqrt(1+M/m) and dt = stepCollisions/frequency.
func (c Constants) Derive(ts ThermalState, stepCollisions float64) (Derived, error) {
	if err := c.Validate(); err != nil {
		return Derived{}, err
	}
	if err := ts.Validate(); err != nil {
		return Derived{}, err
	}
	if !(stepCollisions > 0) {
		return Derived{}, fmt.Errorf("%w: step collisions %g", dynamo.ErrInvalidConfig, stepCollisions)
	}

	d := Derived{
		VMean:        variate.MeanSpeed(ts.Temperature, c.AmbientMass),
		VMeanSpecies: variate.MeanSpeed(ts.SpeciesTemperature, c.SpeciesMass),
		Energy:       1.5 * c.Boltzmann * ts.Temperature,
	}
	d.CollisionFrequency = ts.Density * ts.CrossSection * d.VMeanSpecies * math.Sqrt(1+c.SpeciesMass/c.AmbientMass)
	d.Dt = stepCollisions / d.CollisionFrequency
	if !(d.Dt > 0) || math.IsInf(d.Dt, 0) {
		return Derived{}, fmt.Errorf("%w: dt=%g from frequency %g", dynamo.ErrNonPhysical, d.Dt, d.CollisionFrequency)
	}
	return d, nil
}

func (ts ThermalState) GetParams() map[string]float64 {
	return map[string]float64{
		"temperature":         ts.Temperature,
		"species_temperature": ts.SpeciesTemperature,
		"density":             ts.Density,
		"cross_section":       ts.CrossSection,
	}
}

func (ts *ThermalState) SetParam(name string, value float64) error {
	if !(value > 0) {
		return fmt.Errorf("%w: %s must be positive, got %g", dynamo.ErrInvalidConfig, name, value)
	}
	switch name {
	case "temperature":
		ts.Temperature = value
	case "species_temperature":
		ts.SpeciesTemperature = value
	case "density":
		ts.Density = value
	case "cross_section":
		ts.CrossSection = value
	default:
		return fmt.Errorf("%w: unknown parameter %q", dynamo.ErrInvalidConfig, name)
	}
	return nil
}
