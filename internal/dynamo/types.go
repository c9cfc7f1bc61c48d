package dynamo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ParticleState is the species particle at one point of its trajectory.
// Position in m, Velocity in m/s, Time in s.
type ParticleState struct {
	Position r3.Vec
	Velocity r3.Vec
	Time     float64
	Step     int
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (p ParticleState) IsValid() bool {
	return finite(p.Position.X, p.Position.Y, p.Position.Z,
		p.Velocity.X, p.Velocity.Y, p.Velocity.Z, p.Time)
}

func (p ParticleState) Speed() float64 {
	return r3.Norm(p.Velocity)
}

func (p ParticleState) Point() PathPoint {
	return PathPoint{T: p.Time, X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z}
}

// PathPoint is one recorded (t, x, y, z) sample of a trajectory.
type PathPoint struct {
	T float64 `csv:"t" json:"t"`
	X float64 `csv:"x" json:"x"`
	Y float64 `csv:"y" json:"y"`
	Z float64 `csv:"z" json:"z"`
}

type Phase int

const (
	PhaseFlying Phase = iota
	PhaseColliding
	PhaseExited
	PhaseTimedOut
)

func (p Phase) String() string {
	switch p {
	case PhaseFlying:
		return "flying"
	case PhaseColliding:
		return "colliding"
	case PhaseExited:
		return "exited"
	case PhaseTimedOut:
		return "timed_out"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

type HistoryMode int

const (
	HistoryNone HistoryMode = iota
	HistoryFull
	HistorySampled
)

func ParseHistoryMode(s string) (HistoryMode, error) {
	switch s {
	case "", "none":
		return HistoryNone, nil
	case "full":
		return HistoryFull, nil
	case "sampled":
		return HistorySampled, nil
	}
	return HistoryNone, fmt.Errorf("%w: history mode %q", ErrInvalidConfig, s)
}

func (h HistoryMode) String() string {
	switch h {
	case HistoryFull:
		return "full"
	case HistorySampled:
		return "sampled"
	}
	return "none"
}

// RunConfig controls a single trajectory.
//
// CollisionProbability is the per-step chance of a collision. StepCollisions
// sizes the time step as StepCollisions / collision frequency. The two are
// independent: changing one does not rescale the other.
type RunConfig struct {
	CollisionProbability float64
	StepCollisions       float64
	MaxTime              float64
	MaxSteps             int
	RequireExit          bool
	History              HistoryMode
	HistoryStride        int
}

func DefaultRunConfig() RunConfig {
	return RunConfig{
		CollisionProbability: 0.01,
		StepCollisions:       0.01,
		History:              HistoryNone,
		HistoryStride:        1,
	}
}

// Bounded reports whether the run carries a time or step budget.
func (c RunConfig) Bounded() bool {
	return c.MaxTime > 0 || c.MaxSteps > 0
}

func (c RunConfig) Validate() error {
	if !finite(c.CollisionProbability) || c.CollisionProbability < 0 || c.CollisionProbability > 1 {
		return fmt.Errorf("%w: collision probability %g not in [0, 1]", ErrInvalidConfig, c.CollisionProbability)
	}
	if !finite(c.StepCollisions) || c.StepCollisions <= 0 {
		return fmt.Errorf("%w: step collisions %g must be positive", ErrInvalidConfig, c.StepCollisions)
	}
	if !finite(c.MaxTime) || c.MaxTime < 0 {
		return fmt.Errorf("%w: max time %g", ErrInvalidConfig, c.MaxTime)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("%w: max steps %d", ErrInvalidConfig, c.MaxSteps)
	}
	if c.History == HistorySampled && c.HistoryStride < 1 {
		return fmt.Errorf("%w: history stride %d", ErrInvalidConfig, c.HistoryStride)
	}
	return nil
}

type Result struct {
	Final      ParticleState
	Reason     Phase
	Steps      int
	Collisions int
	Path       []PathPoint
	Metrics    map[string]float64
}

type EventKind int

const (
	EventStep EventKind = iota
	EventCollision
	EventExit
	EventTimeout
)

func (k EventKind) String() string {
	switch k {
	case EventStep:
		return "step"
	case EventCollision:
		return "collision"
	case EventExit:
		return "exit"
	case EventTimeout:
		return "timeout"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is emitted by the simulator as the trajectory advances. Before holds
// the pre-collision velocity for EventCollision.
type Event struct {
	Kind        EventKind
	State       ParticleState
	Before      r3.Vec
	Density     float64
	Temperature float64
	Flow        r3.Vec
	Dt          float64
}

type Observer interface {
	OnEvent(e Event)
}

type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

type Metric interface {
	Name() string
	Observe(p ParticleState, collided bool)
	Value() float64
	Reset()
}

type Integrator interface {
	Step(p *ParticleState, dt float64)
}
