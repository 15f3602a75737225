package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Cache drivers.
const (
	DriverValkey = "valkey"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Source types.
const (
	SourceOpenSearch = "opensearch"
	SourceLocal      = "local"
)

// Config holds the fedcat server configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Cache      CacheConfig      `yaml:"cache"`
	Federation FederationConfig `yaml:"federation"`
	Local      LocalConfig      `yaml:"local"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CacheConfig holds resource cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Driver           string   `yaml:"driver"` // valkey, redis, memory (default: memory)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Standalone       bool     `yaml:"standalone"` // skip cluster topology discovery
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// FederationConfig describes this node and the sources it federates.
type FederationConfig struct {
	ID                string         `yaml:"id"`
	Version           string         `yaml:"version"`
	QueryTimeoutSec   int            `yaml:"query_timeout_sec"`
	ResolveTimeoutSec int            `yaml:"resolve_timeout_sec"`
	MaxConcurrency    int            `yaml:"max_concurrency"` // 0 = one worker per source
	Sources           []SourceConfig `yaml:"sources"`
}

// SourceConfig describes one remote source.
type SourceConfig struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"` // opensearch
	URL  string `yaml:"url"`
	// Connected sources serve resources but are never queried by an enterprise search.
	Connected        bool     `yaml:"connected"`
	RateLimit        float64  `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst            int      `yaml:"burst"`
	TimeoutSec       int      `yaml:"timeout_sec"`
	MaxResourceBytes int64    `yaml:"max_resource_bytes"`
	ContentTypes     []string `yaml:"content_types"`
}

// LocalConfig holds settings of the catalog this node owns.
type LocalConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ID           string `yaml:"id"`
	SeedFile     string `yaml:"seed_file"`
	ResourceRoot string `yaml:"resource_root"`
	// Federated also queries the local catalog in enterprise searches.
	Federated bool `yaml:"federated"`
	// MaxDeletes caps the records one seed reload may remove; 0 means no cap.
	MaxDeletes int `yaml:"max_deletes"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = DriverMemory
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 3600
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Federation.ID == "" {
		c.Federation.ID = "fedcat"
	}
	if c.Federation.QueryTimeoutSec <= 0 {
		c.Federation.QueryTimeoutSec = 30
	}
	if c.Federation.ResolveTimeoutSec <= 0 {
		c.Federation.ResolveTimeoutSec = 30
	}
	for i := range c.Federation.Sources {
		s := &c.Federation.Sources[i]
		if s.Type == "" {
			s.Type = SourceOpenSearch
		}
		if s.TimeoutSec <= 0 {
			s.TimeoutSec = 15
		}
	}
	if c.Local.ID == "" {
		c.Local.ID = "local"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	if c.Cache.Enabled {
		switch c.Cache.Driver {
		case DriverValkey, DriverRedis:
			if len(c.Cache.Addrs) == 0 {
				return fmt.Errorf("cache.addrs is required for driver %q", c.Cache.Driver)
			}
		case DriverMemory:
		default:
			return fmt.Errorf("cache.driver must be \"valkey\", \"redis\" or \"memory\", got %q", c.Cache.Driver)
		}
	}

	if c.Federation.MaxConcurrency < 0 {
		return fmt.Errorf("federation.max_concurrency must not be negative")
	}
	if c.Local.MaxDeletes < 0 {
		return fmt.Errorf("local.max_deletes must not be negative")
	}

	seen := make(map[string]struct{}, len(c.Federation.Sources)+1)
	if c.Local.Enabled {
		seen[c.Local.ID] = struct{}{}
	}
	for i, s := range c.Federation.Sources {
		if s.ID == "" {
			return fmt.Errorf("federation.sources[%d].id is required", i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("federation.sources[%d]: duplicate source id %q", i, s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Type != SourceOpenSearch {
			return fmt.Errorf("federation.sources.%s.type must be %q, got %q", s.ID, SourceOpenSearch, s.Type)
		}
		if s.URL == "" {
			return fmt.Errorf("federation.sources.%s.url is required", s.ID)
		}
		if s.RateLimit < 0 {
			return fmt.Errorf("federation.sources.%s.rate_limit must not be negative", s.ID)
		}
	}

	if !c.Local.Enabled && len(c.Federation.Sources) == 0 {
		return fmt.Errorf("at least one federation source or the local catalog is required")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
