// Package physics holds the gas constants, the derived thermal quantities and
// the hard-sphere collision kernel of the species/ambient-gas model.
//
//   - [Constants]: Boltzmann constant and the ambient and species masses
//   - [ThermalState]: local temperatures, number density and cross-section
//   - [Derived]: mean speeds, collision frequency and the per-step dt
//   - [Kernel]: draws an ambient partner and returns the post-collision velocity
//
// # Example
//
//	c := physics.DefaultConstants()
//	d, _ := c.Derive(physics.DefaultThermalState(), 0.01)
//	k := physics.NewKernel(c)
//	v, err := k.Collide(rng, vs, flow, ts)
package physics
