package experiment

import (
	"context"
	"math/rand/v2"

	"github.com/san-kum/dsmcsim/internal/ambient"
	"github.com/san-kum/dsmcsim/internal/config"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"github.com/san-kum/dsmcsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

// Experiment turns a validated config into trajectories. The ambient field
// and boundary are built once; every Trial gets a fresh simulator so trials
// can run concurrently.
type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	setup     sim.Setup
	run       dynamo.RunConfig
	metrics   []string
	observers []dynamo.Observer
}

type Option func(*options)

type options struct {
	table    *ambient.FieldTable
	registry *Registry
	metrics  []string
}

// WithTable reuses an already loaded field table instead of reading
// cfg.Field.Path.
func WithTable(t *ambient.FieldTable) Option {
	return func(o *options) { o.table = t }
}

func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithMetrics attaches extra metrics by registry name.
func WithMetrics(names ...string) Option {
	return func(o *options) { o.metrics = append(o.metrics, names...) }
}

func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	region, err := cfg.Region()
	if err != nil {
		return nil, err
	}
	form := cfg.FormValue()
	table := o.table
	if form == ambient.FormTable && table == nil {
		table, err = ambient.LoadTable(cfg.Field.Path, cfg.Columns())
		if err != nil {
			return nil, err
		}
	}
	build, err := o.registry.GetField(form)
	if err != nil {
		return nil, err
	}
	field, err := build(cfg, region, table)
	if err != nil {
		return nil, err
	}
	run, err := cfg.RunConfig()
	if err != nil {
		return nil, err
	}

	e := &Experiment{
		cfg:      cfg,
		registry: o.registry,
		setup: sim.Setup{
			Field:              field,
			Region:             region,
			Constants:          cfg.Constants(),
			SpeciesTemperature: cfg.Species.Temperature,
			CrossSection:       cfg.Ambient.CrossSection,
			StrictFrame:        cfg.Run.StrictFrame,
		},
		run:     run,
		metrics: append(o.registry.DefaultMetrics(), o.metrics...),
	}
	for _, name := range e.metrics {
		if _, err := o.registry.GetMetric(name, cfg); err != nil {
			return nil, err
		}
	}
	if err := e.setup.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Experiment) Config() *config.Config      { return e.cfg }
func (e *Experiment) Setup() sim.Setup            { return e.setup }
func (e *Experiment) RunConfig() dynamo.RunConfig { return e.run }

// AddObserver attaches o to every simulator built afterwards. Observers are
// shared between concurrent trials and must be safe for that.
func (e *Experiment) AddObserver(o dynamo.Observer) { e.observers = append(e.observers, o) }

// NewSimulator builds a simulator with fresh metric instances.
func (e *Experiment) NewSimulator() *sim.Simulator {
	integ, _ := e.registry.GetIntegrator("euler")
	s := sim.New(e.setup, integ)
	for _, name := range e.metrics {
		m, _ := e.registry.GetMetric(name, e.cfg)
		s.AddMetric(m)
	}
	for _, o := range e.observers {
		s.AddObserver(o)
	}
	return s
}

// Initial draws the starting state: configured point or cube position, and a
// fixed or thermal velocity.
func (e *Experiment) Initial(rng *rand.Rand) (dynamo.ParticleState, error) {
	var p dynamo.ParticleState
	switch e.cfg.Init.Mode {
	case "cube":
		p.Position = sim.InitialPosition(rng, e.cfg.Init.CubeSide)
	default:
		p.Position = r3.Vec{X: e.cfg.Init.X, Y: e.cfg.Init.Y, Z: e.cfg.Init.Z}
	}
	if v := e.cfg.Init.Velocity; len(v) == 3 {
		p.Velocity = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
		return p, nil
	}
	v, err := sim.InitialVelocity(rng, e.setup.Constants, e.cfg.Species.InitialTemperature)
	if err != nil {
		return p, err
	}
	p.Velocity = v
	return p, nil
}

// Trial runs one trajectory from a freshly drawn initial state.
func (e *Experiment) Trial(ctx context.Context, rng *rand.Rand, _ int) (*dynamo.Result, error) {
	x0, err := e.Initial(rng)
	if err != nil {
		return nil, err
	}
	return e.NewSimulator().Run(ctx, rng, x0, e.run)
}

func (e *Experiment) Run(ctx context.Context, rng *rand.Rand) (*dynamo.Result, error) {
	return e.Trial(ctx, rng, 0)
}
