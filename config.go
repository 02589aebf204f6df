package arbor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config collects the tunable parameters of both generators so presets
// can be stored as YAML files alongside the application.
type Config struct {
	Generator  GeneratorConfig `yaml:"generator"`
	Derivation *DerivationTree `yaml:"derivation"`
}

// GeneratorConfig parameterizes the light-driven Generator.
type GeneratorConfig struct {
	Seed                uint64  `yaml:"seed"`
	PrimaryGrowthRate   float32 `yaml:"primary_growth_rate"`
	SecondaryGrowthRate float32 `yaml:"secondary_growth_rate"`
	RayCount            int     `yaml:"ray_count"`
	RayLevels           int     `yaml:"ray_levels"`
	Cycles              int     `yaml:"cycles"`
	NodesPerCycle       int     `yaml:"nodes_per_cycle"`
}

// DefaultConfig returns a configuration that grows a reasonable plant
// without any tuning.
func DefaultConfig() Config {
	return Config{
		Generator: GeneratorConfig{
			Seed:                1,
			PrimaryGrowthRate:   0.5,
			SecondaryGrowthRate: 0.3,
			RayCount:            64,
			RayLevels:           2,
			Cycles:              6,
			NodesPerCycle:       2,
		},
	}
}

// LoadConfig reads and validates a YAML configuration file. Fields left
// unset fall back to their defaults during validation.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills in missing values and rejects settings the generators
// cannot work with.
func (c *Config) Validate() error {
	g := &c.Generator
	if g.PrimaryGrowthRate < 0 {
		return fmt.Errorf("generator.primary_growth_rate cannot be negative")
	}
	if g.SecondaryGrowthRate < 0 {
		return fmt.Errorf("generator.secondary_growth_rate cannot be negative")
	}
	if g.RayCount < 0 || g.RayLevels < 0 {
		return fmt.Errorf("generator ray density cannot be negative")
	}
	if g.RayCount == 0 {
		g.RayCount = 64
	}
	if g.RayLevels == 0 {
		g.RayLevels = 2
	}
	if g.Cycles <= 0 {
		g.Cycles = 6
	}
	if g.NodesPerCycle <= 0 {
		g.NodesPerCycle = 2
	}
	if c.Derivation != nil {
		if err := validateDerivation(c.Derivation.Root, "derivation.root"); err != nil {
			return err
		}
	}
	return nil
}

func validateDerivation(node *DerivationNode, path string) error {
	if node == nil {
		return fmt.Errorf("%s must be set", path)
	}
	if node.Data.Nodes <= 0 {
		return fmt.Errorf("%s.rule.nodes must be positive", path)
	}
	if node.Data.Length <= 0 {
		return fmt.Errorf("%s.rule.length must be positive", path)
	}
	if node.Data.Radius <= 0 {
		return fmt.Errorf("%s.rule.radius must be positive", path)
	}
	for i, child := range node.Children {
		childPath := fmt.Sprintf("%s.children[%d]", path, i)
		if err := validateDerivation(child, childPath); err != nil {
			return err
		}
	}
	return nil
}

// Apply configures a Generator from the loaded settings and returns the
// grow arguments to pass to it.
func (c *Config) Apply(g *Generator) (cycles, nodesPerCycle int) {
	cfg := c.Generator
	g.SetSeed(cfg.Seed)
	g.SetPrimaryGrowthRate(cfg.PrimaryGrowthRate)
	g.SetSecondaryGrowthRate(cfg.SecondaryGrowthRate)
	g.SetRayDensity(cfg.RayCount, cfg.RayLevels)
	return cfg.Cycles, cfg.NodesPerCycle
}
