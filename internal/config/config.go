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

const envPrefix = "TRUSTGRAPH_"

type ProjectConfig struct {
	Root string `yaml:"root"`
}

type IndexConfig struct {
	DataDir       string `yaml:"data_dir"`
	Workers       int    `yaml:"workers"`
	MaxChunkLines int    `yaml:"max_chunk_lines"`
}

type TraversalConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

type GroundTruthConfig struct {
	Path string `yaml:"path"`
}

// AIConfig configures the optional completion service. An empty provider
// disables it.
type AIConfig struct {
	Provider       string        `yaml:"provider"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	Timeout        time.Duration `yaml:"timeout"`
	SemanticVerify bool          `yaml:"semantic_verify"`
	Tier2Fallback  bool          `yaml:"tier2_fallback"`
}

// Enabled reports whether a provider is configured.
func (a AIConfig) Enabled() bool {
	return a.Provider != ""
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Project     ProjectConfig     `yaml:"project"`
	Index       IndexConfig       `yaml:"index"`
	Traversal   TraversalConfig   `yaml:"traversal"`
	GroundTruth GroundTruthConfig `yaml:"ground_truth"`
	AI          AIConfig          `yaml:"ai"`
	Log         LogConfig         `yaml:"log"`
	// Aliases maps a canonical function name to its other spellings.
	Aliases map[string][]string `yaml:"aliases"`
}

func Default() *Config {
	return &Config{
		Project:     ProjectConfig{Root: "."},
		Index:       IndexConfig{DataDir: ".trustgraph", MaxChunkLines: 500},
		Traversal:   TraversalConfig{MaxDepth: 50},
		GroundTruth: GroundTruthConfig{Path: "flows.yaml"},
		AI:          AIConfig{MaxConcurrent: 4, Timeout: 30 * time.Second},
		Log:         LogConfig{Level: "info"},
	}
}

// LoadConfig reads .env, then the YAML file over the defaults, then
// TRUSTGRAPH_* environment overrides. A missing file leaves the defaults.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"ROOT":         &c.Project.Root,
		"DATA_DIR":     &c.Index.DataDir,
		"GROUND_TRUTH": &c.GroundTruth.Path,
		"AI_PROVIDER":  &c.AI.Provider,
		"AI_MODEL":     &c.AI.Model,
		"AI_BASE_URL":  &c.AI.BaseURL,
		"API_KEY":      &c.AI.APIKey,
		"LOG_LEVEL":    &c.Log.Level,
	}
	for name, dst := range strs {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv(envPrefix + "MAX_DEPTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_DEPTH: %w", envPrefix, err)
		}
		c.Traversal.MaxDepth = n
	}

	if c.AI.APIKey == "" {
		switch c.AI.Provider {
		case "gemini":
			c.AI.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Traversal.MaxDepth <= 0 {
		return fmt.Errorf("traversal.max_depth must be positive, got %d", c.Traversal.MaxDepth)
	}
	if c.Index.MaxChunkLines <= 0 {
		return fmt.Errorf("index.max_chunk_lines must be positive, got %d", c.Index.MaxChunkLines)
	}
	if c.Index.Workers < 0 {
		return fmt.Errorf("index.workers must not be negative, got %d", c.Index.Workers)
	}
	switch c.AI.Provider {
	case "", "gemini", "openai":
	default:
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}
	if c.AI.MaxConcurrent <= 0 {
		return fmt.Errorf("ai.max_concurrent must be positive, got %d", c.AI.MaxConcurrent)
	}
	return nil
}
