package config

import (
	"sort"

	"github.com/san-kum/dsmcsim/internal/ambient"
)

func preset(form ambient.Form, mutate func(c *Config)) *Config {
	c := DefaultConfig()
	c.Form = string(form)
	c.Boundary.Shape = DefaultShape(form)
	mutate(c)
	return c
}

var Presets = map[string]map[string]*Config{
	string(ambient.FormBox): {
		"default": preset(ambient.FormBox, func(c *Config) {}),
		"dense": preset(ambient.FormBox, func(c *Config) {
			c.Ambient.Density = 1e22
		}),
		"trace": preset(ambient.FormBox, func(c *Config) {
			c.Run.History = "full"
			c.Run.Trials = 1
		}),
	},
	string(ambient.FormCurvedFlowBox): {
		"default": preset(ambient.FormCurvedFlowBox, func(c *Config) {}),
		"emitter": preset(ambient.FormCurvedFlowBox, func(c *Config) {
			c.Init.Mode = "cube"
			c.Run.Trials = 500
		}),
	},
	string(ambient.FormOpen): {
		"diffusion": preset(ambient.FormOpen, func(c *Config) {
			c.Run.MaxTime = 1e-3
			c.Run.Trials = 200
		}),
		"thermalize": preset(ambient.FormOpen, func(c *Config) {
			c.Species.InitialTemperature = 40
			c.Run.MaxTime = 5e-3
			c.Run.Trials = 100
		}),
	},
	string(ambient.FormTable): {
		"default": preset(ambient.FormTable, func(c *Config) {}),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(form, name string) *Config {
	formPresets, ok := Presets[form]
	if !ok {
		return nil
	}
	cfg, ok := formPresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(form string) []string {
	formPresets, ok := Presets[form]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(formPresets))
	for name := range formPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
