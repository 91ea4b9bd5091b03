package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources    Sources    `yaml:"sources"`
	Keywords   []string   `yaml:"keywords"`
	Quality    Quality    `yaml:"quality"`
	Enrichment Enrichment `yaml:"enrichment"`
	Output     Output     `yaml:"output"`
	Logging    Logging    `yaml:"logging"`
}

type Sources struct {
	ArXiv ArXiv  `yaml:"arxiv"`
	SEC   SEC    `yaml:"sec"`
	Feeds []Feed `yaml:"feeds"`
}

type ArXiv struct {
	Enabled          bool     `yaml:"enabled"`
	Categories       []string `yaml:"categories"`
	MaxResults       int      `yaml:"max_results"`
	RateLimitSeconds float64  `yaml:"rate_limit_seconds"`
}

type SEC struct {
	Enabled          bool     `yaml:"enabled"`
	FormTypes        []string `yaml:"form_types"`
	Keywords         []string `yaml:"keywords"`
	UserAgent        string   `yaml:"user_agent"`
	RateLimitSeconds float64  `yaml:"rate_limit_seconds"`
}

type Feed struct {
	URL   string `yaml:"url"`
	Name  string `yaml:"name"`
	Scope string `yaml:"scope"`
}

// Quality holds the calibration values for the quality gate. These change
// over time, so they live in the config file rather than in code.
type Quality struct {
	MinScore         float64           `yaml:"min_score"`
	DefaultAuthority float64           `yaml:"default_authority"`
	AuthorityWeights []AuthorityWeight `yaml:"authority_weights"`
	LookbackDays     int               `yaml:"lookback_days"`
}

// AuthorityWeight maps a publisher-name substring to an authority weight.
// The list is an explicit priority order: the first entry whose Match is a
// case-insensitive substring of the publisher wins.
type AuthorityWeight struct {
	Match  string  `yaml:"match"`
	Weight float64 `yaml:"weight"`
}

type Enrichment struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`
	MaxTokens   int    `yaml:"max_tokens"`
	MaxAttempts int    `yaml:"max_attempts"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// AuthorityFor returns the authority weight for a publisher, walking the
// configured priority list in order. The default weight applies when no
// entry matches.
func (q Quality) AuthorityFor(publisher string) float64 {
	lower := strings.ToLower(publisher)
	for _, w := range q.AuthorityWeights {
		if w.Match != "" && strings.Contains(lower, strings.ToLower(w.Match)) {
			return w.Weight
		}
	}
	return q.DefaultAuthority
}

// RateLimit converts a rate-limit value in seconds to a delay duration.
func RateLimit(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// ConfigDir returns the XDG config directory for pasis.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "pasis")
}

// DataDir returns the XDG data directory for pasis.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "pasis")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/pasis/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'pasis init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults for anything
// the file leaves out.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			ArXiv: ArXiv{
				Enabled:          true,
				Categories:       []string{"cs.RO", "cs.AI", "cs.CV", "cs.LG"},
				MaxResults:       30,
				RateLimitSeconds: 3.0,
			},
			SEC: SEC{
				Enabled:          true,
				FormTypes:        []string{"10-K", "8-K", "S-1"},
				UserAgent:        "pasis-research (research@pasis.dev)",
				RateLimitSeconds: 0.1,
			},
		},
		Quality: Quality{
			MinScore:         0.5,
			DefaultAuthority: 0.60,
			LookbackDays:     14,
		},
		Enrichment: Enrichment{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-5",
			APIKeyEnv:   "ANTHROPIC_API_KEY",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "qwen2.5:7b",
			MaxTokens:   2048,
			MaxAttempts: 3,
		},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
