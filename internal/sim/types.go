package sim

import (
	"fmt"

	"github.com/san-kum/dsmcsim/internal/ambient"
	"github.com/san-kum/dsmcsim/internal/boundary"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"github.com/san-kum/dsmcsim/internal/physics"
)

// Setup is everything about a run that does not change between trials.
type Setup struct {
	Field              ambient.Field
	Region             boundary.Region
	Constants          physics.Constants
	SpeciesTemperature float64 // [K]
	CrossSection       float64 // [m^2]
	StrictFrame        bool
}

func (s Setup) Validate() error {
	if s.Field == nil {
		return fmt.Errorf("%w: no ambient field", dynamo.ErrInvalidConfig)
	}
	if s.Region == nil {
		return fmt.Errorf("%w: no boundary region", dynamo.ErrInvalidConfig)
	}
	if err := s.Constants.Validate(); err != nil {
		return err
	}
	if !(s.SpeciesTemperature > 0) {
		return fmt.Errorf("%w: species temperature %g K", dynamo.ErrNonPhysical, s.SpeciesTemperature)
	}
	if !(s.CrossSection > 0) {
		return fmt.Errorf("%w: cross-section %g m^2", dynamo.ErrInvalidConfig, s.CrossSection)
	}
	return nil
}

func (s Setup) thermal(c ambient.Conditions) physics.ThermalState {
	return physics.ThermalState{
		Temperature:        c.Temperature,
		SpeciesTemperature: s.SpeciesTemperature,
		Density:            c.Density,
		CrossSection:       s.CrossSection,
	}
}
