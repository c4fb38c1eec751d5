// Package config loads server and indexer settings from
// ~/.docindex/config.yaml, an optional .env file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EngineBleve = "bleve"
	EngineScan  = "scan"

	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config is the in-memory representation of ~/.docindex/config.yaml
type Config struct {
	DataDir    string        `yaml:"data_dir,omitempty"`
	SourceURL  string        `yaml:"source_url,omitempty"`
	CacheTTL   time.Duration `yaml:"cache_ttl,omitempty"`
	Engine     string        `yaml:"engine,omitempty"`
	MaxResults int           `yaml:"max_results,omitempty"`
	Transport  string        `yaml:"transport,omitempty"`
	HTTPAddr   string        `yaml:"http_addr,omitempty"`

	// path the settings were read from, empty when no file was found
	path string `yaml:"-"`
}

// Default returns the settings used when nothing overrides them
func Default() *Config {
	return &Config{
		CacheTTL:   7 * 24 * time.Hour,
		Engine:     EngineBleve,
		MaxResults: 10,
		Transport:  TransportStdio,
		HTTPAddr:   "127.0.0.1:8080",
	}
}

// Dir returns the absolute path to ~/.docindex/
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".docindex"), nil
}

// Path returns the absolute path to ~/.docindex/config.yaml
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// Load reads the YAML file at path (a missing file leaves the defaults),
// loads .env from the working directory when present and applies
// environment overrides. An empty path means ~/.docindex/config.yaml.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &InvalidConfigError{
				Path:    path,
				Message: err.Error(),
				Hint:    "Check the YAML syntax of the config file",
			}
		}
		cfg.path = path
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	// .env is for local development; a missing file is not an error
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.DataDir, err = ExpandPath(cfg.DataDir); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Source returns the file the settings were read from, or "" for defaults
func (c *Config) Source() string {
	return c.path
}

func (c *Config) applyEnv() error {
	c.DataDir = getEnv("DOCINDEX_DATA_DIR", c.DataDir)
	c.SourceURL = getEnv("DOCINDEX_SOURCE_URL", c.SourceURL)
	c.Engine = getEnv("DOCINDEX_ENGINE", c.Engine)
	c.Transport = getEnv("DOCINDEX_TRANSPORT", c.Transport)
	c.HTTPAddr = getEnv("DOCINDEX_HTTP_ADDR", c.HTTPAddr)

	if v := os.Getenv("DOCINDEX_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return &InvalidConfigError{
				Path:    "DOCINDEX_CACHE_TTL",
				Message: err.Error(),
				Hint:    "Use a Go duration such as 24h or 168h",
			}
		}
		c.CacheTTL = ttl
	}

	if v := os.Getenv("DOCINDEX_MAX_RESULTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &InvalidConfigError{
				Path:    "DOCINDEX_MAX_RESULTS",
				Message: err.Error(),
				Hint:    "Use a positive integer",
			}
		}
		c.MaxResults = n
	}
	return nil
}

// Validate checks the settings for values the server cannot run with
func (c *Config) Validate() error {
	where := c.path
	if where == "" {
		where = "environment"
	}

	invalid := func(msg, hint string) error {
		return &InvalidConfigError{Path: where, Message: msg, Hint: hint}
	}

	switch c.Engine {
	case EngineBleve, EngineScan:
	default:
		return invalid(fmt.Sprintf("unknown engine %q", c.Engine), "Use \"bleve\" or \"scan\"")
	}

	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return invalid(fmt.Sprintf("unknown transport %q", c.Transport), "Use \"stdio\" or \"http\"")
	}

	if c.MaxResults < 1 || c.MaxResults > 100 {
		return invalid(fmt.Sprintf("max_results must be between 1 and 100, got %d", c.MaxResults), "")
	}
	if c.CacheTTL <= 0 {
		return invalid(fmt.Sprintf("cache_ttl must be positive, got %s", c.CacheTTL), "")
	}
	if c.Transport == TransportHTTP && c.HTTPAddr == "" {
		return invalid("http_addr is required for the http transport", "Set DOCINDEX_HTTP_ADDR, e.g. 127.0.0.1:8080")
	}
	if c.SourceURL != "" && !strings.HasPrefix(c.SourceURL, "http://") && !strings.HasPrefix(c.SourceURL, "https://") {
		return invalid(fmt.Sprintf("source_url must be an http(s) URL, got %q", c.SourceURL), "")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
