package sim

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/san-kum/dsmcsim/internal/dynamo"
	"github.com/san-kum/dsmcsim/internal/physics"
)

// Simulator flies one species particle through the ambient gas until it
// leaves the region or the field extent, or exhausts its budget. Each step
// it queries the field, sizes dt from the local collision frequency, collides
// with the configured probability, then drifts.
type Simulator struct {
	setup      Setup
	kernel     *physics.Kernel
	integrator dynamo.Integrator
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
}

func New(setup Setup, integrator dynamo.Integrator) *Simulator {
	kernel := physics.NewKernel(setup.Constants)
	kernel.StrictFrame = setup.StrictFrame
	return &Simulator{
		setup:      setup,
		kernel:     kernel,
		integrator: integrator,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
	}
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) notify(e dynamo.Event) {
	for _, o := range s.observers {
		o.OnEvent(e)
	}
}

// Run simulates a single trajectory from x0. On failure the partial result
// is returned along with a *dynamo.TrajectoryError.
func (s *Simulator) Run(ctx context.Context, rng *rand.Rand, x0 dynamo.ParticleState, cfg dynamo.RunConfig) (*dynamo.Result, error) {
	result := &dynamo.Result{Metrics: make(map[string]float64)}
	err := s.run(ctx, rng, x0, cfg, result, nil)
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, err
}

// RunWithCallback is Run without history, invoking callback after every
// step. Returning false from callback stops the run early.
func (s *Simulator) RunWithCallback(ctx context.Context, rng *rand.Rand, x0 dynamo.ParticleState, cfg dynamo.RunConfig, callback func(dynamo.ParticleState) bool) (*dynamo.Result, error) {
	cfg.History = dynamo.HistoryNone
	result := &dynamo.Result{Metrics: make(map[string]float64)}
	err := s.run(ctx, rng, x0, cfg, result, callback)
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, err
}

func (s *Simulator) validate(x0 dynamo.ParticleState, cfg dynamo.RunConfig) error {
	if err := s.setup.Validate(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !s.setup.Region.Bounded() && !cfg.Bounded() {
		return fmt.Errorf("%w: %s region needs a time or step budget", dynamo.ErrUnbounded, s.setup.Region.Name())
	}
	if !x0.IsValid() {
		return dynamo.ErrInvalidState
	}
	if !s.setup.Region.Contains(x0.Position) {
		return fmt.Errorf("%w: initial position (%g, %g, %g) outside %s region",
			dynamo.ErrInvalidConfig, x0.Position.X, x0.Position.Y, x0.Position.Z, s.setup.Region.Name())
	}
	return nil
}

func (s *Simulator) fail(p dynamo.ParticleState, err error) error {
	return &dynamo.TrajectoryError{Step: p.Step, Time: p.Time, Position: p.Position, Wrapped: err}
}

func (s *Simulator) run(ctx context.Context, rng *rand.Rand, x0 dynamo.ParticleState, cfg dynamo.RunConfig, result *dynamo.Result, callback func(dynamo.ParticleState) bool) error {
	if err := s.validate(x0, cfg); err != nil {
		return err
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	p := x0
	record := func(force bool) {
		switch cfg.History {
		case dynamo.HistoryFull:
			result.Path = append(result.Path, p.Point())
		case dynamo.HistorySampled:
			if force || p.Step%cfg.HistoryStride == 0 {
				result.Path = append(result.Path, p.Point())
			}
		}
	}
	finish := func(reason dynamo.Phase) {
		result.Final = p
		result.Steps = p.Step - x0.Step
		result.Reason = reason
	}
	record(true)

	for {
		select {
		case <-ctx.Done():
			finish(dynamo.PhaseFlying)
			return s.fail(p, fmt.Errorf("%w: %v", dynamo.ErrContextCanceled, ctx.Err()))
		default:
		}

		cond, err := s.setup.Field.Query(p.Position)
		if err != nil {
			finish(dynamo.PhaseFlying)
			return s.fail(p, err)
		}
		if !cond.InBounds {
			record(true)
			finish(dynamo.PhaseExited)
			s.notify(dynamo.Event{Kind: dynamo.EventExit, State: p})
			return nil
		}
		ts := s.setup.thermal(cond)
		derived, err := s.setup.Constants.Derive(ts, cfg.StepCollisions)
		if err != nil {
			finish(dynamo.PhaseFlying)
			return s.fail(p, err)
		}

		collided := false
		if rng.Float64() < cfg.CollisionProbability {
			before := p.Velocity
			v, err := s.kernel.Collide(rng, p.Velocity, cond.Flow, ts)
			if err != nil {
				finish(dynamo.PhaseColliding)
				return s.fail(p, err)
			}
			p.Velocity = v
			collided = true
			result.Collisions++
			s.notify(dynamo.Event{
				Kind: dynamo.EventCollision, State: p, Before: before,
				Density: cond.Density, Temperature: cond.Temperature, Flow: cond.Flow, Dt: derived.Dt,
			})
		}

		s.integrator.Step(&p, derived.Dt)
		if !p.IsValid() {
			finish(dynamo.PhaseFlying)
			return s.fail(p, dynamo.ErrInvalidState)
		}
		for _, m := range s.metrics {
			m.Observe(p, collided)
		}
		s.notify(dynamo.Event{
			Kind: dynamo.EventStep, State: p,
			Density: cond.Density, Temperature: cond.Temperature, Flow: cond.Flow, Dt: derived.Dt,
		})
		keepGoing := callback == nil || callback(p)

		if !s.setup.Region.Contains(p.Position) {
			record(true)
			finish(dynamo.PhaseExited)
			s.notify(dynamo.Event{Kind: dynamo.EventExit, State: p})
			return nil
		}
		if (cfg.MaxTime > 0 && p.Time >= cfg.MaxTime) || (cfg.MaxSteps > 0 && p.Step-x0.Step >= cfg.MaxSteps) {
			record(true)
			finish(dynamo.PhaseTimedOut)
			s.notify(dynamo.Event{Kind: dynamo.EventTimeout, State: p})
			if cfg.RequireExit {
				return s.fail(p, fmt.Errorf("%w: still inside %s after %d steps, t=%gs",
					dynamo.ErrUnbounded, s.setup.Region.Name(), result.Steps, p.Time))
			}
			return nil
		}
		record(false)

		if !keepGoing {
			finish(dynamo.PhaseFlying)
			return nil
		}
	}
}
