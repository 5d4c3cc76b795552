package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"obesityrisk/ml"
)

type Config struct {
	Http struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"http"`
	Log   LogConfig `yaml:"log"`
	Model struct {
		Path      string `yaml:"path"`
		CacheSize int    `yaml:"cache_size"`
		Watch     bool   `yaml:"watch"`
	} `yaml:"model"`
	Training struct {
		Data           string          `yaml:"data"`
		SQLite         string          `yaml:"sqlite"`
		Table          string          `yaml:"table"`
		RunLog         string          `yaml:"run_log"`
		TestRatio      float64         `yaml:"test_ratio"`
		DropDuplicates bool            `yaml:"drop_duplicates"`
		Forest         ml.ForestConfig `yaml:"forest"`
	} `yaml:"training"`
}

// LogConfig configures the zap logger. File enables rotation through lumberjack.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	c := &Config{}
	c.Training.Forest = ml.DefaultForestConfig()
	c.applyDefaults()
	return c
}

// Load reads a YAML file and fills unset values with defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// decode over the defaults so keys absent from the file keep them
	c := Default()
	if err := yaml.NewDecoder(file).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Http.Port == 0 {
		c.Http.Port = 8080
	}
	if c.Http.ReadTimeout == 0 {
		c.Http.ReadTimeout = 15 * time.Second
	}
	if c.Http.WriteTimeout == 0 {
		c.Http.WriteTimeout = 15 * time.Second
	}
	if c.Http.ShutdownTimeout == 0 {
		c.Http.ShutdownTimeout = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}
	if c.Model.Path == "" {
		c.Model.Path = "models/pipeline.json"
	}
	if c.Model.CacheSize == 0 {
		c.Model.CacheSize = 1024
	}
	if c.Training.TestRatio == 0 {
		c.Training.TestRatio = ml.DefaultTestRatio
	}

	def := ml.DefaultForestConfig()
	f := &c.Training.Forest
	if f.NumTrees == 0 {
		f.NumTrees = def.NumTrees
	}
	if f.MinSamplesSplit == 0 {
		f.MinSamplesSplit = def.MinSamplesSplit
	}
	if f.MinSamplesLeaf == 0 {
		f.MinSamplesLeaf = def.MinSamplesLeaf
	}
	if f.MaxFeatures == "" {
		f.MaxFeatures = def.MaxFeatures
	}
	if f.Seed == 0 {
		f.Seed = def.Seed
	}
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	if c.Http.Port < 0 || c.Http.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.Http.Port)
	}
	if c.Training.TestRatio <= 0 || c.Training.TestRatio >= 1 {
		return fmt.Errorf("training.test_ratio must be in (0, 1), got %g", c.Training.TestRatio)
	}
	if c.Training.Forest.NumTrees <= 0 {
		return fmt.Errorf("training.forest.num_trees must be positive, got %d", c.Training.Forest.NumTrees)
	}
	if c.Model.CacheSize < 0 {
		return fmt.Errorf("model.cache_size must not be negative")
	}
	return nil
}
