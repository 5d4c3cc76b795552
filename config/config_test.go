package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "http:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Http.Port != 9090 {
		t.Errorf("port = %d, want 9090", c.Http.Port)
	}
	if c.Http.ReadTimeout != 15*time.Second {
		t.Errorf("read timeout = %v", c.Http.ReadTimeout)
	}
	if c.Model.Path != "models/pipeline.json" {
		t.Errorf("model path = %q", c.Model.Path)
	}
	f := c.Training.Forest
	if f.NumTrees != 100 || f.Seed != 42 || f.MaxFeatures != "sqrt" || !f.Bootstrap {
		t.Errorf("forest defaults not applied: %+v", f)
	}
	if c.Training.TestRatio != 0.3 {
		t.Errorf("test ratio = %g", c.Training.TestRatio)
	}
}

func TestLoadOverrides(t *testing.T) {
	body := `
log:
  level: debug
  file: logs/service.log
model:
  path: /srv/pipeline.json
  cache_size: 16
training:
  data: data/obesity.csv
  test_ratio: 0.25
  forest:
    num_trees: 10
    max_depth: 8
    bootstrap: false
`
	c, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Log.Level != "debug" || c.Log.File != "logs/service.log" {
		t.Errorf("log = %+v", c.Log)
	}
	if c.Model.CacheSize != 16 {
		t.Errorf("cache size = %d", c.Model.CacheSize)
	}
	f := c.Training.Forest
	if f.NumTrees != 10 || f.MaxDepth != 8 || f.Bootstrap {
		t.Errorf("forest = %+v", f)
	}
	if f.MinSamplesSplit != 2 {
		t.Errorf("min samples split = %d", f.MinSamplesSplit)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "http: [")); err == nil {
		t.Error("expected error for malformed yaml")
	}
	if _, err := Load(writeConfig(t, "training:\n  test_ratio: 1.5\n")); err == nil {
		t.Error("expected error for invalid test ratio")
	}
}

func TestValidateNumTrees(t *testing.T) {
	_, err := Load(writeConfig(t, "training:\n  forest:\n    num_trees: -3\n"))
	if err == nil || !strings.Contains(err.Error(), "num_trees must be positive, got -3") {
		t.Errorf("negative num_trees: err = %v", err)
	}

	c := Default()
	c.Training.Forest.NumTrees = 0
	if err := c.Validate(); err == nil {
		t.Error("expected error for zero num_trees")
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestEmptyFileUsesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Http.Port != 8080 {
		t.Errorf("port = %d", c.Http.Port)
	}
}
