// Package config loads the dossier YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Duration is a time.Duration written in YAML as a string such as "30s" or "75d".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string. A plain "<n>d" is read as days.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*d = 0
		return nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		var n int
		if _, err := fmt.Sscanf(days, "%d", &n); err == nil && fmt.Sprint(n) == days {
			*d = Duration(time.Duration(n) * 24 * time.Hour)
			return nil
		}
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// Config is the full dossier configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	HTTP      HTTPConfig      `yaml:"http"`
	Cache     CacheConfig     `yaml:"cache"`
	Search    SearchConfig    `yaml:"search"`
	Email     EmailConfig     `yaml:"email"`
	Phone     PhoneConfig     `yaml:"phone"`
	Usernames UsernameConfig  `yaml:"usernames"`
	WebSearch WebSearchConfig `yaml:"websearch"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// HTTPConfig holds outbound HTTP client settings.
type HTTPConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// CacheConfig holds HTTP response cache settings. RedisAddr, when set, replaces the
// local disk cache with a shared Redis cache.
type CacheConfig struct {
	Enabled   *bool    `yaml:"enabled"`
	TTL       Duration `yaml:"ttl"`
	Dir       string   `yaml:"dir"`
	RedisAddr string   `yaml:"redis_addr"`
}

// On reports whether caching is enabled. It defaults to true.
func (c CacheConfig) On() bool { return c.Enabled == nil || *c.Enabled }

// SearchConfig tunes smart searches.
type SearchConfig struct {
	MaxConcurrency int      `yaml:"max_concurrency"`
	WebResults     int      `yaml:"web_results"`
	ExcludeNSFW    bool     `yaml:"exclude_nsfw"`
	Timeout        Duration `yaml:"timeout"`
	Persist        bool     `yaml:"persist"`
}

// EmailConfig holds email intelligence credentials.
type EmailConfig struct {
	HIBPAPIKey     string `yaml:"hibp_api_key"`
	GitHubToken    string `yaml:"github_token"`
	SearchProfiles *bool  `yaml:"search_profiles"`
}

// Profiles reports whether email lookups search for linked profiles. It defaults to true.
func (c EmailConfig) Profiles() bool { return c.SearchProfiles == nil || *c.SearchProfiles }

// PhoneConfig holds phone intelligence settings.
type PhoneConfig struct {
	NumLookupAPIKey string `yaml:"numlookup_api_key"`
	DefaultRegion   string `yaml:"default_region"`
}

// UsernameConfig restricts and authenticates username searches.
type UsernameConfig struct {
	Platforms      []string `yaml:"platforms"` // empty means every registered platform
	BrowserCookies *bool    `yaml:"browser_cookies"`
}

// Browser reports whether browser cookie stores are read. It defaults to true.
func (c UsernameConfig) Browser() bool { return c.BrowserCookies == nil || *c.BrowserCookies }

// WebSearchConfig selects web search engines.
type WebSearchConfig struct {
	Engines []string `yaml:"engines"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // memory, postgres
	DSN    string `yaml:"dsn"`
}

// ServerConfig holds HTTP API server settings.
type ServerConfig struct {
	Listen          string   `yaml:"listen"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// Load reads the YAML file at path, expands ${VAR} and ${VAR:-default} references,
// applies defaults, and validates the result. An empty path yields Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = Duration(10 * time.Second)
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = Duration(75 * 24 * time.Hour)
	}
	if c.Search.MaxConcurrency <= 0 {
		c.Search.MaxConcurrency = 8
	}
	if c.Search.WebResults <= 0 {
		c.Search.WebResults = 10
	}
	if c.Search.Timeout <= 0 {
		c.Search.Timeout = Duration(30 * time.Second)
	}
	if len(c.WebSearch.Engines) == 0 {
		c.WebSearch.Engines = []string{"duckduckgo", "bing"}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = Duration(10 * time.Second)
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = Duration(2 * time.Minute)
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be debug, info, warn, or error, got %q", ErrInvalid, c.Logging.Level)
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for the postgres driver", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: database.driver must be memory or postgres, got %q", ErrInvalid, c.Database.Driver)
	}
	for _, e := range c.WebSearch.Engines {
		switch e {
		case "duckduckgo", "bing":
		default:
			return fmt.Errorf("%w: unknown websearch engine %q", ErrInvalid, e)
		}
	}
	if r := c.Phone.DefaultRegion; r != "" && len(r) != 2 {
		return fmt.Errorf("%w: phone.default_region must be a two-letter region code, got %q", ErrInvalid, r)
	}
	return nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
