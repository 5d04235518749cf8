// Package config loads chatloop settings from an optional YAML file, a .env
// file and the process environment, in that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/chatloop/flow"
	"github.com/hupe1980/chatloop/logging"
)

const (
	defaultConfigDir  = ".config/chatloop"
	defaultConfigFile = "config.yaml"
)

// Supported values for the enumerated settings.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreFile   = "file"

	SearchGoogle     = "google"
	SearchDuckDuckGo = "duckduckgo"
)

// Config holds the complete configuration of the CLI and examples.
type Config struct {
	Model struct {
		Provider    string  `yaml:"provider"`
		Name        string  `yaml:"name"`
		Temperature float64 `yaml:"temperature"`
		MaxTokens   int64   `yaml:"max_tokens"`
		BaseURL     string  `yaml:"base_url,omitempty"`
		APIKey      string  `yaml:"api_key,omitempty"`
	} `yaml:"model"`

	Loop struct {
		MaxRounds          int           `yaml:"max_rounds"`
		MaxParallelTools   int           `yaml:"max_parallel_tools"`
		ToolTimeout        time.Duration `yaml:"tool_timeout"`
		MaxHistoryMessages int           `yaml:"max_history_messages"`
		Instructions       string        `yaml:"instructions"`
	} `yaml:"loop"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Store struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"store"`

	Search struct {
		Backend      string `yaml:"backend"`
		GoogleAPIKey string `yaml:"google_api_key,omitempty"`
		GoogleCSEID  string `yaml:"google_cse_id,omitempty"`
		MaxResults   int    `yaml:"max_results"`
	} `yaml:"search"`

	Railway struct {
		APIKey  string `yaml:"api_key,omitempty"`
		Host    string `yaml:"host"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"railway"`
}

// DefaultConfig returns a configuration usable for local development.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Model.Provider = ProviderOpenAI
	cfg.Model.Name = "gpt-4o-mini"
	cfg.Model.Temperature = 0
	cfg.Model.MaxTokens = 4096

	cfg.Loop.MaxRounds = flow.DefaultMaxRounds
	cfg.Loop.MaxParallelTools = 4
	cfg.Loop.ToolTimeout = 30 * time.Second
	cfg.Loop.MaxHistoryMessages = 0
	cfg.Loop.Instructions = "You are a helpful assistant. Use the available tools when they help answer the user's question."

	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "text"

	cfg.Store.Driver = StoreMemory

	cfg.Search.Backend = SearchDuckDuckGo
	cfg.Search.MaxResults = 5

	cfg.Railway.Host = "irctc1.p.rapidapi.com"
	cfg.Railway.BaseURL = "https://irctc1.p.rapidapi.com"

	return cfg
}

// DefaultPath returns ~/.config/chatloop/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, defaultConfigDir, defaultConfigFile), nil
}

// Load builds the effective configuration. path may be empty, in which case
// only defaults, .env and the environment are used. A .env file in the
// working directory is loaded when present; variables already set in the
// environment are not overridden by it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("CHATLOOP_PROVIDER"); val != "" {
		c.Model.Provider = val
	}
	if val := os.Getenv("CHATLOOP_MODEL"); val != "" {
		c.Model.Name = val
	}
	if val := os.Getenv("CHATLOOP_BASE_URL"); val != "" {
		c.Model.BaseURL = val
	}
	if val := os.Getenv("CHATLOOP_TEMPERATURE"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.Model.Temperature = v
		}
	}

	if val := os.Getenv("CHATLOOP_MAX_ROUNDS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.Loop.MaxRounds = v
		}
	}
	if val := os.Getenv("CHATLOOP_MAX_PARALLEL_TOOLS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.Loop.MaxParallelTools = v
		}
	}
	if val := os.Getenv("CHATLOOP_TOOL_TIMEOUT"); val != "" {
		if v, err := time.ParseDuration(val); err == nil {
			c.Loop.ToolTimeout = v
		}
	}

	if val := os.Getenv("CHATLOOP_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("CHATLOOP_LOG_FORMAT"); val != "" {
		c.Logging.Format = val
	}

	if val := os.Getenv("CHATLOOP_STORE"); val != "" {
		c.Store.Driver = val
	}
	if val := os.Getenv("CHATLOOP_STORE_PATH"); val != "" {
		c.Store.Path = val
	}

	if val := os.Getenv("CHATLOOP_SEARCH_BACKEND"); val != "" {
		c.Search.Backend = val
	}

	// provider keys are only taken from the environment when the file left them empty
	if c.Model.APIKey == "" {
		switch c.Model.Provider {
		case ProviderOpenAI:
			c.Model.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderAnthropic:
			c.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if c.Search.GoogleAPIKey == "" {
		c.Search.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if c.Search.GoogleCSEID == "" {
		c.Search.GoogleCSEID = os.Getenv("GOOGLE_CSE_ID")
	}
	if c.Railway.APIKey == "" {
		c.Railway.APIKey = os.Getenv("RAPIDAPI_KEY")
	}
}

// Validate checks that enumerated settings hold supported values.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("model.provider %q is not supported", c.Model.Provider)
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Loop.MaxParallelTools < 0 {
		return fmt.Errorf("loop.max_parallel_tools must not be negative")
	}
	if c.Loop.ToolTimeout < 0 {
		return fmt.Errorf("loop.tool_timeout must not be negative")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported", c.Logging.Format)
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite, StoreFile:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s store", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}
	switch c.Search.Backend {
	case SearchGoogle, SearchDuckDuckGo:
	default:
		return fmt.Errorf("search.backend %q is not supported", c.Search.Backend)
	}
	return nil
}

// Marshal renders the configuration as YAML with secrets masked.
func (c *Config) Marshal() ([]byte, error) {
	masked := *c
	masked.Model.APIKey = mask(c.Model.APIKey)
	masked.Search.GoogleAPIKey = mask(c.Search.GoogleAPIKey)
	masked.Railway.APIKey = mask(c.Railway.APIKey)

	data, err := yaml.Marshal(&masked)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save writes the configuration (secrets included) to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
