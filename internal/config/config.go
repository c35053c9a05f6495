package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dusk-indust/espgraph/internal/conflict"
	"github.com/dusk-indust/espgraph/internal/esp"
	"gopkg.in/yaml.v3"
)

// FileNames are the config files Load looks for, in order.
var FileNames = []string{"espgraph.yml", "espgraph.yaml"}

// ProjectConfig holds project-level settings loaded from espgraph.yml.
type ProjectConfig struct {
	Extensions     []string        `yaml:"extensions,omitempty"`
	Workers        int             `yaml:"workers,omitempty"`
	MergeThreshold int             `yaml:"mergeThreshold,omitempty"`
	NestedProbe    *bool           `yaml:"nestedProbe,omitempty"` // nil means enabled
	PersistDir     string          `yaml:"persistDir,omitempty"`
	Verbose        bool            `yaml:"verbose,omitempty"`
	Rules          []conflict.Rule `yaml:"rules,omitempty"`
}

// Load attempts to read espgraph.yml or espgraph.yaml from the given
// directory. Returns a default config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.applyDefaults()
		return &cfg, nil
	}
	cfg := &ProjectConfig{}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *ProjectConfig) applyDefaults() {
	if len(c.Extensions) == 0 {
		c.Extensions = append([]string(nil), esp.PluginExtensions...)
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.MergeThreshold <= 0 {
		c.MergeThreshold = conflict.DefaultMergeThreshold
	}
	if c.PersistDir == "" {
		c.PersistDir = filepath.Join(".espgraph", "graph")
	}
}

// NestedProbeEnabled reports whether the nested-record probe is on.
func (c *ProjectConfig) NestedProbeEnabled() bool {
	return c.NestedProbe == nil || *c.NestedProbe
}

// Probe returns the esp.NestedProbe the config selects.
func (c *ProjectConfig) Probe() esp.NestedProbe {
	if c.NestedProbeEnabled() {
		return esp.KnownTypeProbe{}
	}
	return esp.NoNesting{}
}
