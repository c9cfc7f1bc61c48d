package batch

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/san-kum/dsmcsim/internal/ambient"
	"github.com/san-kum/dsmcsim/internal/config"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"github.com/san-kum/dsmcsim/internal/experiment"
)

// Driver runs sweeps over a base config. Each grid point gets its own
// experiment built from a copy of the base; the field table, if any, is
// loaded once and shared.
type Driver struct {
	Workers  int
	Seed     uint64
	Logger   *slog.Logger
	Progress func(label string, done, total int)
	Table    *ambient.FieldTable
}

func NewDriver(workers int, seed uint64, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{Workers: workers, Seed: seed, Logger: logger}
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Driver) ensemble(label string, trials int) *Ensemble {
	e := NewEnsemble(trials, d.Workers, d.Seed)
	if d.Progress != nil {
		e.Progress = func(done, total int) { d.Progress(label, done, total) }
	}
	return e
}

// configure copies base and applies p on top of it.
func configure(base *config.Config, p Point) (*config.Config, error) {
	cfg := base.Clone()
	for _, name := range slices.Sorted(maps.Keys(p)) {
		if err := cfg.Apply(name, strconv.FormatFloat(p[name], 'g', -1, 64)); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (d *Driver) experiment(cfg *config.Config, metrics ...string) (*experiment.Experiment, error) {
	opts := []experiment.Option{experiment.WithMetrics(metrics...)}
	if d.Table != nil {
		opts = append(opts, experiment.WithTable(d.Table))
	}
	return experiment.New(cfg, opts...)
}

// LoadTable reads the base config's field table once for all grid points.
func (d *Driver) LoadTable(cfg *config.Config) error {
	if cfg.FormValue() != ambient.FormTable || d.Table != nil {
		return nil
	}
	t, err := ambient.LoadTable(cfg.Field.Path, cfg.Columns())
	if err != nil {
		return err
	}
	d.Table = t
	return nil
}

// ExitRow is one grid point of an exit-time sweep.
type ExitRow struct {
	Params         string  `csv:"params" json:"params"`
	Trials         int     `csv:"trials" json:"trials"`
	Exited         int     `csv:"exited" json:"exited"`
	Failed         int     `csv:"failed" json:"failed"`
	MeanSteps      float64 `csv:"mean_steps" json:"mean_steps"`
	StdErrSteps    float64 `csv:"sem_steps" json:"sem_steps"`
	MeanTime       float64 `csv:"mean_time" json:"mean_time"`
	StdErrTime     float64 `csv:"sem_time" json:"sem_time"`
	MeanCollisions float64 `csv:"mean_collisions" json:"mean_collisions"`
}

// ExitSweep runs base.Run.Trials trajectories at every grid point and
// reports exit statistics.
func (d *Driver) ExitSweep(ctx context.Context, base *config.Config, grid *Grid) ([]ExitRow, error) {
	if err := d.LoadTable(base); err != nil {
		return nil, err
	}
	var rows []ExitRow
	for _, p := range grid.Points() {
		cfg, err := configure(base, p)
		if err != nil {
			return rows, err
		}
		exp, err := d.experiment(cfg)
		if err != nil {
			return rows, err
		}
		label := p.Label()
		outcomes, err := d.ensemble(label, cfg.Run.Trials).Run(ctx, exp.Trial)
		s := Summarize(outcomes)
		d.report(label, s)
		rows = append(rows, ExitRow{
			Params:         label,
			Trials:         s.Trials,
			Exited:         s.Exited,
			Failed:         s.Failed,
			MeanSteps:      s.MeanSteps,
			StdErrSteps:    s.StdErrSteps,
			MeanTime:       s.MeanTime,
			StdErrTime:     s.StdErrTime,
			MeanCollisions: s.MeanCollisions,
		})
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func (d *Driver) report(label string, s Summary) {
	d.logger().Info("grid point done", "params", label, "summary", s)
	if s.Failed > 0 {
		d.logger().Warn("trials failed", "params", label, "failed", s.Failed, "kinds", s.Failures)
	}
}

// DefaultDensities is the density list of the density trend sweep.
var DefaultDensities = []float64{1e9, 5e9, 1e10, 5e10, 1e11, 5e11, 1e12}

// DensityTrend is ExitSweep over ambient density.
func (d *Driver) DensityTrend(ctx context.Context, base *config.Config, densities []float64) ([]ExitRow, error) {
	if len(densities) == 0 {
		densities = DefaultDensities
	}
	grid, err := NewGrid([]string{"density"}, [][]float64{densities})
	if err != nil {
		return nil, err
	}
	return d.ExitSweep(ctx, base, grid)
}

// ProfileRow holds ensemble means at one flight time.
type ProfileRow struct {
	Time              float64 `csv:"time" json:"time"`
	Trials            int     `csv:"trials" json:"trials"`
	MeanX             float64 `csv:"mean_x" json:"mean_x"`
	StdErrX           float64 `csv:"sem_x" json:"sem_x"`
	MeanY             float64 `csv:"mean_y" json:"mean_y"`
	StdErrY           float64 `csv:"sem_y" json:"sem_y"`
	MeanZ             float64 `csv:"mean_z" json:"mean_z"`
	StdErrZ           float64 `csv:"sem_z" json:"sem_z"`
	MeanSquaredDist   float64 `csv:"mean_r2" json:"mean_r2"`
	StdErrSquaredDist float64 `csv:"sem_r2" json:"sem_r2"`
	TailSpeed         float64 `csv:"tail_speed" json:"tail_speed"`
	StdErrTailSpeed   float64 `csv:"sem_tail_speed" json:"sem_tail_speed"`
}

// ProfileTimes are the default flight times of TimeProfile.
func ProfileTimes() []float64 {
	t, _ := Steps(5e-5, 1.5e-3, 5e-5)
	return t
}

// TimeProfile flies base.Run.Trials particles for each duration in times
// and reports where they are. Use the open form for free diffusion.
func (d *Driver) TimeProfile(ctx context.Context, base *config.Config, times []float64) ([]ProfileRow, error) {
	if len(times) == 0 {
		times = ProfileTimes()
	}
	if err := d.LoadTable(base); err != nil {
		return nil, err
	}
	rows := make([]ProfileRow, 0, len(times))
	for _, t := range times {
		cfg, err := configure(base, Point{"max_time": t})
		if err != nil {
			return rows, err
		}
		exp, err := d.experiment(cfg, "tail_speed", "squared_displacement")
		if err != nil {
			return rows, err
		}
		label := Point{"max_time": t}.Label()
		outcomes, err := d.ensemble(label, cfg.Run.Trials).Run(ctx, exp.Trial)
		d.report(label, Summarize(outcomes))
		rows = append(rows, profile(t, outcomes))
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func profile(t float64, outcomes []Outcome) ProfileRow {
	var xs, ys, zs, r2, tail []float64
	for _, o := range outcomes {
		if o.Err != nil || o.Result == nil {
			continue
		}
		p := o.Result.Final.Position
		xs = append(xs, p.X)
		ys = append(ys, p.Y)
		zs = append(zs, p.Z)
		r2 = append(r2, o.Result.Metrics["squared_displacement"])
		if v, ok := o.Result.Metrics["tail_speed"]; ok && !math.IsNaN(v) {
			tail = append(tail, v)
		}
	}
	row := ProfileRow{Time: t, Trials: len(xs)}
	row.MeanX, row.StdErrX = meanStdErr(xs)
	row.MeanY, row.StdErrY = meanStdErr(ys)
	row.MeanZ, row.StdErrZ = meanStdErr(zs)
	row.MeanSquaredDist, row.StdErrSquaredDist = meanStdErr(r2)
	row.TailSpeed, row.StdErrTailSpeed = meanStdErr(tail)
	return row
}

// EndRow is the final state of one trial.
type EndRow struct {
	Trial  int     `csv:"trial" json:"trial"`
	Reason string  `csv:"reason" json:"reason"`
	Time   float64 `csv:"time" json:"time"`
	X      float64 `csv:"x" json:"x"`
	Y      float64 `csv:"y" json:"y"`
	Z      float64 `csv:"z" json:"z"`
}

// EndPositions runs base.Run.Trials trajectories and returns where each one
// ended. Failed trials are logged and left out.
func (d *Driver) EndPositions(ctx context.Context, base *config.Config) ([]EndRow, error) {
	if err := d.LoadTable(base); err != nil {
		return nil, err
	}
	exp, err := d.experiment(base)
	if err != nil {
		return nil, err
	}
	outcomes, runErr := d.ensemble("end positions", base.Run.Trials).Run(ctx, exp.Trial)
	d.report("end positions", Summarize(outcomes))
	rows := make([]EndRow, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil || o.Result == nil {
			continue
		}
		p := o.Result.Final
		rows = append(rows, EndRow{
			Trial:  o.Index,
			Reason: o.Result.Reason.String(),
			Time:   p.Time,
			X:      p.Position.X,
			Y:      p.Position.Y,
			Z:      p.Position.Z,
		})
	}
	return rows, runErr
}

// flightTrial flies trial i for ages[i] seconds.
func flightTrial(base *config.Config, d *Driver, ages []float64) (Trial, error) {
	exps := make([]*experiment.Experiment, len(ages))
	for i, age := range ages {
		cfg, err := configure(base, Point{"max_time": age})
		if err != nil {
			return nil, err
		}
		if exps[i], err = d.experiment(cfg); err != nil {
			return nil, fmt.Errorf("age %g: %w", age, err)
		}
	}
	return func(ctx context.Context, rng *rand.Rand, index int) (*dynamo.Result, error) {
		return exps[index].Trial(ctx, rng, index)
	}, nil
}
