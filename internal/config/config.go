package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Paths struct {
		Projects string `yaml:"projects"` // directory holding one git checkout per repository
		Dataset  string `yaml:"dataset"`  // directory holding <repo>.json commit lists
		Output   string `yaml:"output"`
		Temp     string `yaml:"temp"`
	} `yaml:"paths"`
	Analysis struct {
		CloneThreshold float64       `yaml:"clone_threshold"`
		WordDiff       string        `yaml:"word_diff"` // builtin or git
		OnlyDiff       bool          `yaml:"only_diff"`
		StrictParse    bool          `yaml:"strict_parse"`
		Workers        int           `yaml:"workers"`
		GracePeriod    time.Duration `yaml:"grace_period"`
	} `yaml:"analysis"`
	Refactoring struct {
		Enabled bool   `yaml:"enabled"`
		Command string `yaml:"command"`
	} `yaml:"refactoring"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text or json
		File   string `yaml:"file"`
	} `yaml:"log"`
	Metrics struct {
		File string `yaml:"file"` // text exposition written after a batch
	} `yaml:"metrics"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Paths.Projects = "projects"
	cfg.Paths.Dataset = "dataset"
	cfg.Paths.Output = "output"
	cfg.Analysis.CloneThreshold = 0.85
	cfg.Analysis.WordDiff = "builtin"
	cfg.Analysis.OnlyDiff = true
	cfg.Analysis.StrictParse = true
	cfg.Analysis.Workers = 1
	cfg.Analysis.GracePeriod = 15 * time.Second
	cfg.Refactoring.Command = "RefactoringMiner"
	cfg.Storage.Path = "untangle.db"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config over the defaults
	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	// 3. Override with Environment Variables if present
	if v := os.Getenv("UNTANGLE_PROJECTS"); v != "" {
		cfg.Paths.Projects = v
	}
	if v := os.Getenv("UNTANGLE_DATASET"); v != "" {
		cfg.Paths.Dataset = v
	}
	if v := os.Getenv("UNTANGLE_OUTPUT"); v != "" {
		cfg.Paths.Output = v
	}
	if v := os.Getenv("UNTANGLE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid UNTANGLE_WORKERS %q: %w", v, err)
		}
		cfg.Analysis.Workers = n
	}
	if v := os.Getenv("UNTANGLE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("UNTANGLE_REFACTORING_COMMAND"); v != "" {
		cfg.Refactoring.Command = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Analysis.CloneThreshold <= 0 || c.Analysis.CloneThreshold > 1 {
		return fmt.Errorf("clone_threshold must be in (0, 1], got %v", c.Analysis.CloneThreshold)
	}
	switch c.Analysis.WordDiff {
	case "builtin", "git":
	default:
		return fmt.Errorf("unknown word_diff mode %q", c.Analysis.WordDiff)
	}
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Analysis.Workers)
	}
	if c.Analysis.GracePeriod < 0 {
		return fmt.Errorf("grace_period must not be negative, got %s", c.Analysis.GracePeriod)
	}
	return nil
}
