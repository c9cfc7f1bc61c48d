package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/dsmcsim/internal/ambient"
	"github.com/san-kum/dsmcsim/internal/boundary"
	"github.com/san-kum/dsmcsim/internal/config"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"github.com/san-kum/dsmcsim/internal/integrators"
	"github.com/san-kum/dsmcsim/internal/metrics"
	"gonum.org/v1/gonum/spatial/r3"
)

// FieldBuilder builds the ambient field of a form. table is nil unless the
// form reads a field table.
type FieldBuilder func(cfg *config.Config, region boundary.Region, table *ambient.FieldTable) (ambient.Field, error)

type Registry struct {
	fields      map[ambient.Form]FieldBuilder
	integrators map[string]func() dynamo.Integrator
	metrics     map[string]func(cfg *config.Config) dynamo.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		fields:      make(map[ambient.Form]FieldBuilder),
		integrators: make(map[string]func() dynamo.Integrator),
		metrics:     make(map[string]func(cfg *config.Config) dynamo.Metric),
	}

	uniform := func(cfg *config.Config, region boundary.Region, _ *ambient.FieldTable) (ambient.Field, error) {
		return ambient.Uniform{Density: cfg.Ambient.Density, Temperature: cfg.Ambient.Temperature, Region: region}, nil
	}
	r.fields[ambient.FormBox] = uniform
	r.fields[ambient.FormOpen] = uniform
	r.fields[ambient.FormCurvedFlowBox] = func(cfg *config.Config, region boundary.Region, _ *ambient.FieldTable) (ambient.Field, error) {
		return ambient.CurvedFlow{Density: cfg.Ambient.Density, Temperature: cfg.Ambient.Temperature, Region: region}, nil
	}
	r.fields[ambient.FormTable] = func(cfg *config.Config, region boundary.Region, table *ambient.FieldTable) (ambient.Field, error) {
		if table == nil {
			return nil, fmt.Errorf("%w: form table without a loaded field table", dynamo.ErrInvalidConfig)
		}
		tb, err := ambient.NewTable(table, region)
		if err != nil {
			return nil, err
		}
		tb.NeighborSearch = cfg.Field.NeighborSearch
		return tb, nil
	}

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }

	r.metrics["collisions"] = func(*config.Config) dynamo.Metric { return metrics.NewCollisionCount() }
	r.metrics["collision_rate"] = func(*config.Config) dynamo.Metric { return metrics.NewCollisionRate() }
	r.metrics["species_temperature"] = func(cfg *config.Config) dynamo.Metric {
		return metrics.NewSpeciesTemperature(cfg.Constants().SpeciesMass)
	}
	r.metrics["kinetic_energy"] = func(cfg *config.Config) dynamo.Metric {
		return metrics.NewKineticEnergy(cfg.Constants().SpeciesMass)
	}
	r.metrics["tail_speed"] = func(cfg *config.Config) dynamo.Metric {
		return metrics.NewTailSpeed(0.8 * cfg.Run.MaxTime)
	}
	r.metrics["squared_displacement"] = func(cfg *config.Config) dynamo.Metric {
		return metrics.NewSquaredDisplacement(r3.Vec{X: cfg.Init.X, Y: cfg.Init.Y, Z: cfg.Init.Z})
	}

	return r
}

func (r *Registry) GetField(form ambient.Form) (FieldBuilder, error) {
	fn, ok := r.fields[form]
	if !ok {
		return nil, fmt.Errorf("%w: unknown form %q", dynamo.ErrInvalidConfig, form)
	}
	return fn, nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown integrator %q", dynamo.ErrInvalidConfig, name)
	}
	return fn(), nil
}

func (r *Registry) GetMetric(name string, cfg *config.Config) (dynamo.Metric, error) {
	fn, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown metric %q", dynamo.ErrInvalidConfig, name)
	}
	return fn(cfg), nil
}

func (r *Registry) ListForms() []string {
	names := make([]string, 0, len(r.fields))
	for form := range r.fields {
		names = append(names, string(form))
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListMetrics() []string {
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics are attached to every experiment.
func (r *Registry) DefaultMetrics() []string {
	return []string{"collisions", "species_temperature"}
}
