package arbor

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plant.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
generator:
  seed: 9
  primary_growth_rate: 0.8
  ray_count: 128
  cycles: 10
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Generator.Seed != 9 {
		t.Errorf("Seed = %d, want 9", cfg.Generator.Seed)
	}
	assertNear(t, "primary", cfg.Generator.PrimaryGrowthRate, 0.8)
	if cfg.Generator.RayCount != 128 {
		t.Errorf("RayCount = %d, want 128", cfg.Generator.RayCount)
	}
	// Unset fields keep their defaults.
	assertNear(t, "secondary", cfg.Generator.SecondaryGrowthRate, 0.3)
	if cfg.Generator.RayLevels != 2 || cfg.Generator.NodesPerCycle != 2 {
		t.Error("defaults not preserved for unset fields")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file did not fail")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "generator: [not a mapping")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("malformed YAML did not fail")
	}
}

func TestConfigValidateRejectsNegativeRates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generator.PrimaryGrowthRate = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative growth rate accepted")
	}
}

func TestConfigValidateFillsDefaults(t *testing.T) {
	var cfg Config
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Generator.RayCount != 64 || cfg.Generator.Cycles != 6 {
		t.Error("zero config not defaulted")
	}
}

func TestLoadConfigDerivation(t *testing.T) {
	path := writeConfig(t, `
derivation:
  seed: 3
  root:
    rule:
      nodes: 3
      length: 2.5
      radius: 0.2
    children:
      - rule:
          nodes: 2
          length: 1
          radius: 0.05
          stem_density: 2
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Derivation == nil || cfg.Derivation.Root == nil {
		t.Fatal("derivation not loaded")
	}
	assertNear(t, "root length", cfg.Derivation.Root.Data.Length, 2.5)
	if len(cfg.Derivation.Root.Children) != 1 {
		t.Fatal("child rule not loaded")
	}
	assertNear(t, "child density", cfg.Derivation.Root.Children[0].Data.StemDensity, 2)
}

func TestConfigValidateRejectsBadDerivation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Derivation = &DerivationTree{
		Root: &DerivationNode{Data: Derivation{Length: 1, Radius: 0.1}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("rule without nodes accepted")
	}
}

func TestConfigApply(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generator.Cycles = 3
	cfg.Generator.NodesPerCycle = 4
	cfg.Generator.Seed = 77

	plant := NewPlant()
	gen := NewGenerator(plant)
	cycles, nodes := cfg.Apply(gen)
	if cycles != 3 || nodes != 4 {
		t.Errorf("Apply returned %d, %d", cycles, nodes)
	}
	if gen.Grow(cycles, nodes) == 0 {
		t.Error("configured generator grew nothing")
	}
}
