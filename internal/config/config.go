// Package config loads and validates hdlforge configuration. Sources layer
// in order: defaults, then .hdlforge/config.yaml, then environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Budget    BudgetConfig    `yaml:"budget"`
	Quality   QualityConfig   `yaml:"quality"`
	Toolchain ToolchainConfig `yaml:"toolchain"`
	Logging   LoggingConfig   `yaml:"logging"`
	Mode      string          `yaml:"mode"`
	StorePath string          `yaml:"store_path"`
}

// APIConfig configures the inference endpoint.
type APIConfig struct {
	Endpoint       string  `yaml:"endpoint"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxAttempts    int     `yaml:"max_attempts"`
	BaseDelayMS    int     `yaml:"base_delay_ms"`
	Multiplier     float64 `yaml:"multiplier"`
}

// BudgetConfig bounds a session.
type BudgetConfig struct {
	MaxInvocations int  `yaml:"max_invocations"`
	MaxTimeSeconds int  `yaml:"max_time_seconds"`
	ExitOnTier3    bool `yaml:"exit_on_tier3"`
}

// QualityConfig holds the tier score thresholds. Scores are on [0,1] and
// must rise strictly through tier 3; tier 4 may equal tier 3 since the
// optimized tier is gated on extra criteria, not a higher score.
type QualityConfig struct {
	Tier1Score float64 `yaml:"tier1_score"`
	Tier2Score float64 `yaml:"tier2_score"`
	Tier3Score float64 `yaml:"tier3_score"`
	Tier4Score float64 `yaml:"tier4_score"`
}

// ToolchainConfig bounds external tool runs.
type ToolchainConfig struct {
	LintTimeoutSeconds int `yaml:"lint_timeout_seconds"`
	SimTimeoutSeconds  int `yaml:"sim_timeout_seconds"`
}

// LoggingConfig mirrors the section read by the logging package.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// Default returns the standard configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Endpoint:       "http://localhost:8080/generate",
			Model:          "verilog-slm",
			MaxTokens:      2048,
			TimeoutSeconds: 120,
			MaxAttempts:    10,
			BaseDelayMS:    1500,
			Multiplier:     2.0,
		},
		Budget: BudgetConfig{
			MaxInvocations: 50,
			MaxTimeSeconds: 900,
			ExitOnTier3:    true,
		},
		Quality: QualityConfig{
			Tier1Score: 0.25,
			Tier2Score: 0.50,
			Tier3Score: 0.75,
			Tier4Score: 0.90,
		},
		Toolchain: ToolchainConfig{
			LintTimeoutSeconds: 30,
			SimTimeoutSeconds:  120,
		},
		Logging: LoggingConfig{Level: "info"},
		Mode:    "react",
	}
}

// Load reads config from workspace/.hdlforge/config.yaml over defaults,
// applies environment overrides, and validates the result. A missing file
// is not an error.
func Load(workspace string) (*Config, error) {
	cfg := Default()
	cfg.StorePath = filepath.Join(workspace, ".hdlforge", "history.db")

	path := filepath.Join(workspace, ".hdlforge", "config.yaml")
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HDLFORGE_API_URL"); v != "" {
		c.API.Endpoint = v
	}
	if v := os.Getenv("HDLFORGE_API_KEY"); v != "" {
		c.API.APIKey = v
	}
	if v := os.Getenv("HDLFORGE_MODEL"); v != "" {
		c.API.Model = v
	}
	if v := os.Getenv("HDLFORGE_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("HDLFORGE_MAX_INVOCATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Budget.MaxInvocations = n
		}
	}
}

// Validate rejects configurations the loop cannot run with.
func (c *Config) Validate() error {
	if c.API.Endpoint == "" {
		return fmt.Errorf("api.endpoint must be set")
	}
	if c.Budget.MaxInvocations <= 0 {
		return fmt.Errorf("budget.max_invocations must be positive, got %d", c.Budget.MaxInvocations)
	}
	if c.Budget.MaxTimeSeconds <= 0 {
		return fmt.Errorf("budget.max_time_seconds must be positive, got %d", c.Budget.MaxTimeSeconds)
	}
	if c.API.MaxAttempts <= 0 {
		return fmt.Errorf("api.max_attempts must be positive, got %d", c.API.MaxAttempts)
	}

	q := c.Quality
	if !(q.Tier1Score < q.Tier2Score && q.Tier2Score < q.Tier3Score && q.Tier3Score <= q.Tier4Score) {
		return fmt.Errorf("quality tier scores must satisfy tier1 < tier2 < tier3 <= tier4, got %.2f/%.2f/%.2f/%.2f",
			q.Tier1Score, q.Tier2Score, q.Tier3Score, q.Tier4Score)
	}

	switch c.Mode {
	case "react", "iterative":
	default:
		return fmt.Errorf("mode must be react or iterative, got %q", c.Mode)
	}

	return nil
}
