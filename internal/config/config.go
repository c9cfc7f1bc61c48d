package config

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/san-kum/dsmcsim/internal/ambient"
	"github.com/san-kum/dsmcsim/internal/boundary"
	"github.com/san-kum/dsmcsim/internal/constants"
	"github.com/san-kum/dsmcsim/internal/dynamo"
	"github.com/san-kum/dsmcsim/internal/physics"
	"gopkg.in/yaml.v3"
)

const (
	DefaultCollisionProbability = 0.01
	DefaultStepCollisions       = 0.01
	DefaultCubeSide             = 0.01
	DefaultTrials               = 1000
	DefaultFieldPath            = "ds2ff.dat"
)

type Config struct {
	Form     string         `yaml:"form" toml:"form"`
	Ambient  AmbientConfig  `yaml:"ambient" toml:"ambient"`
	Species  SpeciesConfig  `yaml:"species" toml:"species"`
	Boundary BoundaryConfig `yaml:"boundary" toml:"boundary"`
	Run      RunConfig      `yaml:"run" toml:"run"`
	Init     InitConfig     `yaml:"init" toml:"init"`
	Field    FieldConfig    `yaml:"field" toml:"field"`
}

type AmbientConfig struct {
	Temperature  float64 `yaml:"temperature" toml:"temperature"`
	Density      float64 `yaml:"density" toml:"density"`
	CrossSection float64 `yaml:"cross_section" toml:"cross_section"`
	MolarMass    float64 `yaml:"molar_mass" toml:"molar_mass"`
}

type SpeciesConfig struct {
	Temperature        float64 `yaml:"temperature" toml:"temperature"`
	InitialTemperature float64 `yaml:"initial_temperature" toml:"initial_temperature"`
	MolarMass          float64 `yaml:"molar_mass" toml:"molar_mass"`
}

type BoundaryConfig struct {
	Shape      string  `yaml:"shape" toml:"shape"`
	HalfWidth  float64 `yaml:"half_width" toml:"half_width"`
	Radius     float64 `yaml:"radius,omitempty" toml:"radius,omitempty"`
	HalfHeight float64 `yaml:"half_height,omitempty" toml:"half_height,omitempty"`
}

type RunConfig struct {
	CollisionProbability float64 `yaml:"collision_probability" toml:"collision_probability"`
	StepCollisions       float64 `yaml:"step_collisions" toml:"step_collisions"`
	MaxTime              float64 `yaml:"max_time" toml:"max_time"`
	MaxSteps             int     `yaml:"max_steps" toml:"max_steps"`
	RequireExit          bool    `yaml:"require_exit" toml:"require_exit"`
	StrictFrame          bool    `yaml:"strict_frame" toml:"strict_frame"`
	History              string  `yaml:"history" toml:"history"`
	HistoryStride        int     `yaml:"history_stride" toml:"history_stride"`
	Seed                 uint64  `yaml:"seed" toml:"seed"`
	Workers              int     `yaml:"workers" toml:"workers"`
	Trials               int     `yaml:"trials" toml:"trials"`
}

// InitConfig places the particle at (X, Y, Z) for mode "point" or uniformly
// in a cube of side CubeSide for mode "cube". Velocity, when set, replaces
// the thermal draw.
type InitConfig struct {
	Mode     string    `yaml:"mode" toml:"mode"`
	X        float64   `yaml:"x" toml:"x"`
	Y        float64   `yaml:"y" toml:"y"`
	Z        float64   `yaml:"z" toml:"z"`
	CubeSide float64   `yaml:"cube_side" toml:"cube_side"`
	Velocity []float64 `yaml:"velocity,omitempty" toml:"velocity,omitempty"`
}

// FieldConfig locates the field table. NeighborSearch lets the interpolator
// skip past collinear nearest grid points instead of failing.
type FieldConfig struct {
	Path           string        `yaml:"path" toml:"path"`
	NeighborSearch bool          `yaml:"neighbor_search" toml:"neighbor_search"`
	Columns        ColumnsConfig `yaml:"columns" toml:"columns"`
}

type ColumnsConfig struct {
	Axial       int `yaml:"axial" toml:"axial"`
	Radial      int `yaml:"radial" toml:"radial"`
	Density     int `yaml:"density" toml:"density"`
	VAxial      int `yaml:"v_axial" toml:"v_axial"`
	VRadial     int `yaml:"v_radial" toml:"v_radial"`
	VAzimuthal  int `yaml:"v_azimuthal" toml:"v_azimuthal"`
	Temperature int `yaml:"temperature" toml:"temperature"`
}

func DefaultConfig() *Config {
	cols := ambient.DefaultColumns()
	return &Config{
		Form: string(ambient.FormBox),
		Ambient: AmbientConfig{
			Temperature:  constants.DefaultTemperature,
			Density:      constants.DefaultDensity,
			CrossSection: constants.DefaultCrossSection,
			MolarMass:    constants.HeliumMolarMass,
		},
		Species: SpeciesConfig{
			Temperature:        constants.DefaultTemperature,
			InitialTemperature: constants.DefaultTemperature,
			MolarMass:          constants.YbOHMolarMass,
		},
		Boundary: BoundaryConfig{Shape: "box", HalfWidth: constants.DefaultBoxHalfWidth},
		Run: RunConfig{
			CollisionProbability: DefaultCollisionProbability,
			StepCollisions:       DefaultStepCollisions,
			History:              "none",
			HistoryStride:        1,
			Seed:                 1,
			Trials:               DefaultTrials,
		},
		Init: InitConfig{Mode: "point", CubeSide: DefaultCubeSide},
		Field: FieldConfig{
			Path: DefaultFieldPath,
			Columns: ColumnsConfig{
				Axial: cols.Axial, Radial: cols.Radial, Density: cols.Density,
				VAxial: cols.VAxial, VRadial: cols.VRadial, VAzimuthal: cols.VAzimuthal,
				Temperature: cols.Temperature,
			},
		},
	}
}

// Load reads a YAML file, or TOML when the extension is .toml, over the
// defaults and validates the result. Unknown keys are errors.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if isTOML(path) {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("%w: unknown keys in %s: %s", dynamo.ErrInvalidConfig, path, strings.Join(keys, ", "))
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return err
		}
		return os.WriteFile(path, buf.Bytes(), 0644)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func (c *Config) Clone() *Config {
	cp := *c
	if c.Init.Velocity != nil {
		cp.Init.Velocity = append([]float64(nil), c.Init.Velocity...)
	}
	return &cp
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{dynamo.ErrInvalidConfig}, args...)...)
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return invalid("%s must be positive, got %g", name, v)
	}
	return nil
}

func (c *Config) Validate() error {
	form, err := ambient.ParseForm(c.Form)
	if err != nil {
		return err
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"ambient.temperature", c.Ambient.Temperature},
		{"ambient.density", c.Ambient.Density},
		{"ambient.cross_section", c.Ambient.CrossSection},
		{"ambient.molar_mass", c.Ambient.MolarMass},
		{"species.temperature", c.Species.Temperature},
		{"species.initial_temperature", c.Species.InitialTemperature},
		{"species.molar_mass", c.Species.MolarMass},
	} {
		if err := positive(p.name, p.v); err != nil {
			return err
		}
	}
	if _, err := c.Region(); err != nil {
		return err
	}
	rc, err := c.RunConfig()
	if err != nil {
		return err
	}
	if err := rc.Validate(); err != nil {
		return err
	}
	if c.Run.Workers < 0 {
		return invalid("run.workers %d", c.Run.Workers)
	}
	if c.Run.Trials < 0 {
		return invalid("run.trials %d", c.Run.Trials)
	}
	switch c.Init.Mode {
	case "point":
	case "cube":
		if err := positive("init.cube_side", c.Init.CubeSide); err != nil {
			return err
		}
	default:
		return invalid("init.mode %q (want point or cube)", c.Init.Mode)
	}
	if c.Init.Velocity != nil && len(c.Init.Velocity) != 3 {
		return invalid("init.velocity needs 3 components, got %d", len(c.Init.Velocity))
	}
	if form == ambient.FormTable {
		if c.Field.Path == "" {
			return invalid("form table needs field.path")
		}
		if err := c.Columns().Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) FormValue() ambient.Form {
	return ambient.Form(c.Form)
}

func (c *Config) Constants() physics.Constants {
	return physics.NewConstants(c.Ambient.MolarMass, c.Species.MolarMass)
}

func (c *Config) Thermal() physics.ThermalState {
	return physics.ThermalState{
		Temperature:        c.Ambient.Temperature,
		SpeciesTemperature: c.Species.Temperature,
		Density:            c.Ambient.Density,
		CrossSection:       c.Ambient.CrossSection,
	}
}

func (c *Config) Region() (boundary.Region, error) {
	return boundary.New(c.Boundary.Shape, c.Boundary.HalfWidth, c.Boundary.Radius, c.Boundary.HalfHeight)
}

func (c *Config) RunConfig() (dynamo.RunConfig, error) {
	history, err := dynamo.ParseHistoryMode(c.Run.History)
	if err != nil {
		return dynamo.RunConfig{}, err
	}
	return dynamo.RunConfig{
		CollisionProbability: c.Run.CollisionProbability,
		StepCollisions:       c.Run.StepCollisions,
		MaxTime:              c.Run.MaxTime,
		MaxSteps:             c.Run.MaxSteps,
		RequireExit:          c.Run.RequireExit,
		History:              history,
		HistoryStride:        c.Run.HistoryStride,
	}, nil
}

func (c *Config) Columns() ambient.Columns {
	f := c.Field.Columns
	return ambient.Columns{
		Axial: f.Axial, Radial: f.Radial, Density: f.Density,
		VAxial: f.VAxial, VRadial: f.VRadial, VAzimuthal: f.VAzimuthal,
		Temperature: f.Temperature,
	}
}

// DefaultShape is the boundary a form uses unless configured otherwise.
func DefaultShape(form ambient.Form) string {
	if form == ambient.FormOpen {
		return "open"
	}
	return "box"
}

// Apply sets a single named parameter from its string form, as given on the
// command line or a sweep grid. Setting form also resets the boundary shape.
func (c *Config) Apply(name, value string) error {
	num := func() (float64, error) {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, invalid("%s: %v", name, err)
		}
		return v, nil
	}
	integer := func() (int, error) {
		v, err := strconv.Atoi(value)
		if err != nil {
			return 0, invalid("%s: %v", name, err)
		}
		return v, nil
	}
	flag := func() (bool, error) {
		v, err := strconv.ParseBool(value)
		if err != nil {
			return false, invalid("%s: %v", name, err)
		}
		return v, nil
	}

	floats := map[string]*float64{
		"temperature":           &c.Ambient.Temperature,
		"density":               &c.Ambient.Density,
		"cross_section":         &c.Ambient.CrossSection,
		"ambient_molar_mass":    &c.Ambient.MolarMass,
		"species_temperature":   &c.Species.Temperature,
		"initial_temperature":   &c.Species.InitialTemperature,
		"species_molar_mass":    &c.Species.MolarMass,
		"half_width":            &c.Boundary.HalfWidth,
		"radius":                &c.Boundary.Radius,
		"half_height":           &c.Boundary.HalfHeight,
		"collision_probability": &c.Run.CollisionProbability,
		"step_collisions":       &c.Run.StepCollisions,
		"max_time":              &c.Run.MaxTime,
		"cube_side":             &c.Init.CubeSide,
		"x":                     &c.Init.X,
		"y":                     &c.Init.Y,
		"z":                     &c.Init.Z,
	}
	ints := map[string]*int{
		"max_steps":      &c.Run.MaxSteps,
		"history_stride": &c.Run.HistoryStride,
		"workers":        &c.Run.Workers,
		"trials":         &c.Run.Trials,
	}
	bools := map[string]*bool{
		"require_exit":    &c.Run.RequireExit,
		"strict_frame":    &c.Run.StrictFrame,
		"neighbor_search": &c.Field.NeighborSearch,
	}

	if p, ok := floats[name]; ok {
		v, err := num()
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
	if p, ok := ints[name]; ok {
		v, err := integer()
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
	if p, ok := bools[name]; ok {
		v, err := flag()
		if err != nil {
			return err
		}
		*p = v
		return nil
	}

	switch name {
	case "form":
		form, err := ambient.ParseForm(value)
		if err != nil {
			return err
		}
		c.Form = string(form)
		c.Boundary.Shape = DefaultShape(form)
		if c.Boundary.Shape == "box" && c.Boundary.HalfWidth == 0 {
			c.Boundary.HalfWidth = constants.DefaultBoxHalfWidth
		}
	case "shape":
		c.Boundary.Shape = value
	case "history":
		c.Run.History = value
	case "init_mode":
		c.Init.Mode = value
	case "field_path":
		c.Field.Path = value
	case "seed":
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return invalid("seed: %v", err)
		}
		c.Run.Seed = v
	default:
		return invalid("unknown parameter %q", name)
	}
	return nil
}

// ParamNames lists the names Apply accepts.
func ParamNames() []string {
	return []string{
		"form", "temperature", "density", "cross_section", "ambient_molar_mass",
		"species_temperature", "initial_temperature", "species_molar_mass",
		"shape", "half_width", "radius", "half_height",
		"collision_probability", "step_collisions", "max_time", "max_steps",
		"require_exit", "strict_frame", "history", "history_stride",
		"seed", "workers", "trials", "init_mode", "x", "y", "z", "cube_side", "field_path", "neighbor_search",
	}
}
