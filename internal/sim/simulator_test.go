package sim

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/san-kum/dsmcsim/internal/ambient"
	"github.com/san-kum/dsmcsim/internal/boundary"
	"github.com/san-kum/dsmcsim/internal/constants"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"github.com/san-kum/dsmcsim/internal/integrators"
	"github.com/san-kum/dsmcsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

func testSetup(region boundary.Region) Setup {
	return Setup{
		Field: ambient.Uniform{
			Density:     constants.DefaultDensity,
			Temperature: constants.DefaultTemperature,
			Region:      region,
		},
		Region:             region,
		Constants:          physics.DefaultConstants(),
		SpeciesTemperature: constants.DefaultTemperature,
		CrossSection:       constants.DefaultCrossSection,
	}
}

func testDt(t *testing.T) float64 {
	t.Helper()
	d, err := physics.DefaultConstants().Derive(physics.DefaultThermalState(), 0.01)
	if err != nil {
		t.Fatal(err)
	}
	return d.Dt
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

type failingField struct {
	after int
	calls int
}

func (f *failingField) Query(pos r3.Vec) (ambient.Conditions, error) {
	f.calls++
	if f.calls > f.after {
		return ambient.Conditions{}, dynamo.ErrNonPhysical
	}
	return ambient.Conditions{Density: 1e21, Temperature: 4, InBounds: true}, nil
}

func TestSimulatorBallistic(t *testing.T) {
	sim := New(testSetup(boundary.NewBox()), integrators.NewEuler())
	cfg := dynamo.DefaultRunConfig()
	cfg.CollisionProbability = 0
	cfg.History = dynamo.HistoryFull

	x0 := dynamo.ParticleState{Velocity: r3.Vec{X: 100}}
	result, err := sim.Run(context.Background(), newRNG(1), x0, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	dt := testDt(t)
	wantSteps := int(math.Floor(0.05/(100*dt))) + 1
	if result.Reason != dynamo.PhaseExited {
		t.Errorf("reason %v, want exited", result.Reason)
	}
	if result.Collisions != 0 {
		t.Errorf("collisions %d with zero probability", result.Collisions)
	}
	if diff := result.Steps - wantSteps; diff < -1 || diff > 1 {
		t.Errorf("steps %d, want about %d", result.Steps, wantSteps)
	}
	if result.Final.Position.X <= 0.05 {
		t.Errorf("final x %g still inside", result.Final.Position.X)
	}
	if math.Abs(result.Final.Time-float64(result.Steps)*dt) > 1e-9*result.Final.Time {
		t.Errorf("time %g, want %g", result.Final.Time, float64(result.Steps)*dt)
	}
	if len(result.Path) != result.Steps+1 {
		t.Errorf("path has %d points, want %d", len(result.Path), result.Steps+1)
	}
}

func TestSimulatorExitsSmallBox(t *testing.T) {
	box := boundary.Box{HalfWidth: 0.002}
	sim := New(testSetup(box), integrators.NewEuler())
	cfg := dynamo.DefaultRunConfig()
	cfg.MaxSteps = 50_000_000
	cfg.RequireExit = true

	rng := newRNG(7)
	for i := 0; i < 5; i++ {
		v, err := InitialVelocity(rng, physics.DefaultConstants(), constants.DefaultTemperature)
		if err != nil {
			t.Fatal(err)
		}
		result, err := sim.Run(context.Background(), rng, dynamo.ParticleState{Velocity: v}, cfg)
		if err != nil {
			t.Fatalf("trial %d: %v", i, err)
		}
		if result.Reason != dynamo.PhaseExited || box.Contains(result.Final.Position) {
			t.Errorf("trial %d did not exit: %v at %v", i, result.Reason, result.Final.Position)
		}
		if result.Collisions == 0 {
			t.Errorf("trial %d had no collisions in %d steps", i, result.Steps)
		}
	}
}

func TestSimulatorDeterministic(t *testing.T) {
	sim := New(testSetup(boundary.Box{HalfWidth: 0.001}), integrators.NewEuler())
	cfg := dynamo.DefaultRunConfig()
	cfg.MaxSteps = 10_000_000
	x0 := dynamo.ParticleState{Velocity: r3.Vec{X: 5, Y: -3, Z: 1}}

	a, errA := sim.Run(context.Background(), newRNG(99), x0, cfg)
	b, errB := sim.Run(context.Background(), newRNG(99), x0, cfg)
	if errA != nil || errB != nil {
		t.Fatalf("runs failed: %v, %v", errA, errB)
	}
	if a.Final != b.Final || a.Collisions != b.Collisions {
		t.Errorf("same seed diverged: %+v vs %+v", a.Final, b.Final)
	}
}

func TestSimulatorOpenNeedsBudget(t *testing.T) {
	sim := New(testSetup(boundary.Open{}), integrators.NewEuler())
	result, err := sim.Run(context.Background(), newRNG(1), dynamo.ParticleState{}, dynamo.DefaultRunConfig())
	if !errors.Is(err, dynamo.ErrUnbounded) {
		t.Fatalf("expected ErrUnbounded, got %v", err)
	}
	if result.Steps != 0 {
		t.Errorf("took %d steps before rejecting", result.Steps)
	}
}

func TestSimulatorOpenTimeBudget(t *testing.T) {
	sim := New(testSetup(boundary.Open{}), integrators.NewEuler())
	cfg := dynamo.DefaultRunConfig()
	cfg.MaxTime = 1e-4

	result, err := sim.Run(context.Background(), newRNG(3), dynamo.ParticleState{Velocity: r3.Vec{Z: 10}}, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	dt := testDt(t)
	if result.Reason != dynamo.PhaseTimedOut {
		t.Errorf("reason %v, want timed_out", result.Reason)
	}
	if result.Final.Time < cfg.MaxTime || result.Final.Time > cfg.MaxTime+dt*1.000001 {
		t.Errorf("final time %g outside [%g, %g]", result.Final.Time, cfg.MaxTime, cfg.MaxTime+dt)
	}
}

func TestSimulatorRequireExit(t *testing.T) {
	sim := New(testSetup(boundary.NewBox()), integrators.NewEuler())
	cfg := dynamo.DefaultRunConfig()
	cfg.MaxSteps = 10
	cfg.RequireExit = true

	result, err := sim.Run(context.Background(), newRNG(1), dynamo.ParticleState{}, cfg)
	var terr *dynamo.TrajectoryError
	if !errors.As(err, &terr) || !errors.Is(err, dynamo.ErrUnbounded) {
		t.Fatalf("expected TrajectoryError wrapping ErrUnbounded, got %v", err)
	}
	if terr.Step != 10 || result.Steps != 10 {
		t.Errorf("stopped at step %d (result %d), want 10", terr.Step, result.Steps)
	}
}

func TestSimulatorFieldError(t *testing.T) {
	setup := testSetup(boundary.NewBox())
	setup.Field = &failingField{after: 3}
	sim := New(setup, integrators.NewEuler())

	_, err := sim.Run(context.Background(), newRNG(1), dynamo.ParticleState{}, dynamo.DefaultRunConfig())
	var terr *dynamo.TrajectoryError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TrajectoryError, got %v", err)
	}
	if !errors.Is(err, dynamo.ErrNonPhysical) {
		t.Errorf("expected ErrNonPhysical, got %v", err)
	}
	if terr.Step != 3 {
		t.Errorf("failed at step %d, want 3", terr.Step)
	}
	if dynamo.Kind(err) != "non_physical" {
		t.Errorf("kind %q", dynamo.Kind(err))
	}
}

func TestSimulatorInvalidInput(t *testing.T) {
	sim := New(testSetup(boundary.NewBox()), integrators.NewEuler())

	tests := []struct {
		name string
		x0   dynamo.ParticleState
		cfg  func(*dynamo.RunConfig)
		want error
	}{
		{"outside", dynamo.ParticleState{Position: r3.Vec{X: 0.06}}, nil, dynamo.ErrInvalidConfig},
		{"nan", dynamo.ParticleState{Velocity: r3.Vec{X: math.NaN()}}, nil, dynamo.ErrInvalidState},
		{"probability", dynamo.ParticleState{}, func(c *dynamo.RunConfig) { c.CollisionProbability = 1.5 }, dynamo.ErrInvalidConfig},
		{"step collisions", dynamo.ParticleState{}, func(c *dynamo.RunConfig) { c.StepCollisions = 0 }, dynamo.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := dynamo.DefaultRunConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			_, err := sim.Run(context.Background(), newRNG(1), tt.x0, cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSimulatorCanceled(t *testing.T) {
	sim := New(testSetup(boundary.NewBox()), integrators.NewEuler())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Run(ctx, newRNG(1), dynamo.ParticleState{}, dynamo.DefaultRunConfig())
	if !errors.Is(err, dynamo.ErrContextCanceled) {
		t.Errorf("expected ErrContextCanceled, got %v", err)
	}
}

type countMetric struct {
	steps, collisions int
}

func (c *countMetric) Name() string { return "count" }
func (c *countMetric) Observe(p dynamo.ParticleState, collided bool) {
	c.steps++
	if collided {
		c.collisions++
	}
}
func (c *countMetric) Value() float64 { return float64(c.steps) }
func (c *countMetric) Reset()         { c.steps, c.collisions = 0, 0 }

func TestSimulatorMetricsAndObservers(t *testing.T) {
	sim := New(testSetup(boundary.Open{}), integrators.NewEuler())
	metric := &countMetric{}
	sim.AddMetric(metric)

	var exits, collisions int
	sim.AddObserver(dynamo.ObserverFunc(func(e dynamo.Event) {
		switch e.Kind {
		case dynamo.EventTimeout:
			exits++
		case dynamo.EventCollision:
			collisions++
		}
	}))

	cfg := dynamo.DefaultRunConfig()
	cfg.MaxSteps = 500
	cfg.CollisionProbability = 0.5
	result, err := sim.Run(context.Background(), newRNG(5), dynamo.ParticleState{}, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Metrics["count"] != 500 || metric.steps != 500 {
		t.Errorf("metric saw %d steps, result %v", metric.steps, result.Metrics["count"])
	}
	if metric.collisions != result.Collisions || collisions != result.Collisions {
		t.Errorf("collisions: metric %d, observer %d, result %d", metric.collisions, collisions, result.Collisions)
	}
	if exits != 1 {
		t.Errorf("timeout events %d", exits)
	}
}

func TestSimulatorSampledHistory(t *testing.T) {
	sim := New(testSetup(boundary.Open{}), integrators.NewEuler())
	cfg := dynamo.DefaultRunConfig()
	cfg.MaxSteps = 95
	cfg.History = dynamo.HistorySampled
	cfg.HistoryStride = 10

	result, err := sim.Run(context.Background(), newRNG(2), dynamo.ParticleState{}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	// initial point, steps 10..90, final step 95
	if len(result.Path) != 11 {
		t.Errorf("sampled path has %d points, want 11", len(result.Path))
	}
	if last := result.Path[len(result.Path)-1]; last.T != result.Final.Time {
		t.Errorf("last sample at t=%g, final t=%g", last.T, result.Final.Time)
	}
}

func TestRunWithCallbackStops(t *testing.T) {
	sim := New(testSetup(boundary.NewBox()), integrators.NewEuler())
	seen := 0
	result, err := sim.RunWithCallback(context.Background(), newRNG(1), dynamo.ParticleState{}, dynamo.DefaultRunConfig(),
		func(p dynamo.ParticleState) bool {
			seen++
			return p.Step < 25
		})
	if err != nil {
		t.Fatal(err)
	}
	if seen != 25 || result.Steps != 25 {
		t.Errorf("callback saw %d steps, result %d", seen, result.Steps)
	}
}

func TestInitialConditions(t *testing.T) {
	rng := newRNG(4)
	for range 1000 {
		p := InitialPosition(rng, 0.01)
		if math.Abs(p.X) > 0.005 || math.Abs(p.Y) > 0.005 || math.Abs(p.Z) > 0.005 {
			t.Fatalf("position %v outside cube", p)
		}
		v, err := InitialVelocity(rng, physics.DefaultConstants(), 4)
		if err != nil {
			t.Fatal(err)
		}
		if !(dynamo.ParticleState{Velocity: v}).IsValid() {
			t.Fatalf("invalid velocity %v", v)
		}
	}
}

// boundedField reports positions beyond |x| > limit as out of bounds.
type boundedField struct{ limit float64 }

func (f boundedField) Query(pos r3.Vec) (ambient.Conditions, error) {
	return ambient.Conditions{Density: 1e21, Temperature: 4, InBounds: math.Abs(pos.X) <= f.limit}, nil
}

func TestSimulatorExitsFieldExtent(t *testing.T) {
	setup := testSetup(boundary.Open{})
	setup.Field = boundedField{limit: 0.01}
	sim := New(setup, integrators.NewEuler())
	cfg := dynamo.DefaultRunConfig()
	cfg.CollisionProbability = 0
	cfg.MaxSteps = 1_000_000

	result, err := sim.Run(context.Background(), newRNG(3), dynamo.ParticleState{Velocity: r3.Vec{X: 100}}, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Reason != dynamo.PhaseExited {
		t.Fatalf("reason %v, want exited", result.Reason)
	}
	if result.Final.Position.X <= 0.01 {
		t.Errorf("final x %g inside field extent", result.Final.Position.X)
	}
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sim := New(testSetup(boundary.Box{HalfWidth: 0.001}), integrators.NewEuler())
	sim.AddObserver(NewLogObserver(logger))

	cfg := dynamo.DefaultRunConfig()
	cfg.CollisionProbability = 0
	if _, err := sim.Run(context.Background(), newRNG(5), dynamo.ParticleState{Velocity: r3.Vec{Z: 50}}, cfg); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "msg="+dynamo.EventExit.String()) {
		t.Errorf("no exit record in log:\n%s", out)
	}
	if strings.Contains(out, "msg=step") {
		t.Error("steps logged without Steps set")
	}
}
