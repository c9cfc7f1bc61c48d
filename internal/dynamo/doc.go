// Package dynamo provides the core primitives shared by the trajectory
// simulator and the batch drivers.
//
// The package defines the fundamental types for single-particle DSMC runs:
//
//   - [ParticleState]: position, velocity, elapsed time and step count
//   - [RunConfig]: collision probability, time step sizing and termination budget
//   - [Result]: final state, exit reason and optional recorded path
//   - [Observer] and [Metric]: hooks invoked on every step and collision
//   - [TrajectoryError]: wraps a failure with the step, time and position where it happened
//
// # Example
//
//	sim := sim.New(setup, integrators.NewEuler())
//	rng := rand.New(rand.NewPCG(seed, 0))
//	result, err := sim.Run(ctx, rng, x0, dynamo.DefaultRunConfig())
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe. Parallel trials each build their
// own simulator and random stream; see package batch.
package dynamo
