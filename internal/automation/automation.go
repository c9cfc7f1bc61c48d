// Package automation runs scripted sequences of sweeps from a YAML
// scenario file, writing each step's rows to its own CSV file.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/san-kum/dsmcsim/internal/ambient"
	"github.com/san-kum/dsmcsim/internal/batch"
	"github.com/san-kum/dsmcsim/internal/config"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"gopkg.in/yaml.v3"
)

// Step kinds.
const (
	KindDensityTrend = "density-trend"
	KindTimeProfile  = "time-profile"
	KindWalls        = "walls"
	KindEmitter      = "emitter"
	KindSweep        = "sweep"
)

// Scenario defines a scripted sequence of sweeps.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Seed        uint64 `yaml:"seed"`
	Steps       []Step `yaml:"steps"`
}

// Step is one sweep. Form and Preset pick the base config, Set overrides
// single parameters on top of it.
type Step struct {
	Name      string            `yaml:"name"`
	Kind      string            `yaml:"kind"`
	Form      string            `yaml:"form"`
	Preset    string            `yaml:"preset"`
	Set       map[string]string `yaml:"set"`
	Densities []float64         `yaml:"densities"`
	Times     []float64         `yaml:"times"`
	Ages      []float64         `yaml:"ages"`
	Params    []string          `yaml:"params"`
	Output    string            `yaml:"output"`
}

// LoadScenario loads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrInvalidConfig, path, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w: scenario %q has no steps", dynamo.ErrInvalidConfig, sc.Name)
	}
	seen := map[string]bool{}
	for i, st := range sc.Steps {
		switch st.Kind {
		case KindDensityTrend, KindTimeProfile, KindWalls, KindEmitter:
		case KindSweep:
			if len(st.Params) == 0 {
				return fmt.Errorf("%w: step %d: sweep without params", dynamo.ErrInvalidConfig, i+1)
			}
		default:
			return fmt.Errorf("%w: step %d: unknown kind %q", dynamo.ErrInvalidConfig, i+1, st.Kind)
		}
		out := st.output(i)
		if seen[out] {
			return fmt.Errorf("%w: step %d: output %q used twice", dynamo.ErrInvalidConfig, i+1, out)
		}
		seen[out] = true
	}
	return nil
}

func (st Step) output(i int) string {
	if st.Output != "" {
		return st.Output
	}
	name := st.Name
	if name == "" {
		name = fmt.Sprintf("step%02d_%s", i+1, st.Kind)
	}
	return name + ".csv"
}

// Config builds the step's base config.
func (st Step) Config() (*config.Config, error) {
	form := st.Form
	if form == "" {
		form = string(ambient.FormBox)
	}
	name := st.Preset
	if name == "" {
		name = "default"
	}
	cfg := config.GetPreset(form, name)
	if cfg == nil && st.Preset == "" {
		cfg = config.DefaultConfig()
		if err := cfg.Apply("form", form); err != nil {
			return nil, err
		}
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: unknown preset %s/%s", dynamo.ErrInvalidConfig, form, name)
	}
	keys := make([]string, 0, len(st.Set))
	for k := range st.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := cfg.Apply(k, st.Set[k]); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}

// Report describes one finished step.
type Report struct {
	Name   string
	Kind   string
	Rows   int
	Output string
	Err    error
}

type Runner struct {
	Workers int
	Logger  *slog.Logger
}

// Run executes the steps in order and writes their rows under outDir. A
// failing step is reported and the next one still runs; cancellation stops
// the scenario.
func (r *Runner) Run(ctx context.Context, sc *Scenario, outDir string) ([]Report, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(sc.Steps))
	for i, st := range sc.Steps {
		rep := Report{Name: st.Name, Kind: st.Kind, Output: filepath.Join(outDir, st.output(i))}
		logger.Info("scenario step", "step", i+1, "of", len(sc.Steps), "name", st.Name, "kind", st.Kind)

		rep.Rows, rep.Err = r.step(ctx, sc.Seed, st, rep.Output)
		if rep.Err != nil {
			logger.Warn("scenario step failed", "step", i+1, "err", rep.Err, "kind", dynamo.Kind(rep.Err))
		}
		reports = append(reports, rep)
		if err := ctx.Err(); err != nil {
			return reports, fmt.Errorf("%w: %v", dynamo.ErrContextCanceled, err)
		}
	}
	return reports, nil
}

func (r *Runner) step(ctx context.Context, seed uint64, st Step, out string) (int, error) {
	cfg, err := st.Config()
	if err != nil {
		return 0, err
	}
	if seed != 0 {
		cfg.Run.Seed = seed
	}
	d := batch.NewDriver(r.Workers, cfg.Run.Seed, r.Logger)

	var rows any
	var n int
	switch st.Kind {
	case KindDensityTrend:
		res, e := d.DensityTrend(ctx, cfg, st.Densities)
		rows, n, err = res, len(res), e
	case KindTimeProfile:
		res, e := d.TimeProfile(ctx, cfg, st.Times)
		rows, n, err = res, len(res), e
	case KindWalls:
		res, e := d.EndPositions(ctx, cfg)
		rows, n, err = res, len(res), e
	case KindEmitter:
		res, e := d.PointEmitter(ctx, cfg, st.Ages)
		rows, n, err = res, len(res), e
	case KindSweep:
		grid, e := batch.ParseGrid(st.Params)
		if e != nil {
			return 0, e
		}
		res, e := d.ExitSweep(ctx, cfg, grid)
		rows, n, err = res, len(res), e
	}
	if err != nil {
		return n, err
	}
	return n, batch.WriteCSVFile(out, rows)
}
