package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/wesleywu/routefwd/internal/utils"
)

// Default file locations, relative to the working directory
const (
	DefaultListDir     = "list"
	DefaultTargetsFile = "extra.txt"
	DefaultStateFile   = "routefwd_state.json"
)

// Config represents the configuration for the route forwarding tool
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// CIDR lists live in ListDir as NAME.txt
	ListDir     string `yaml:"list_dir"`
	TargetsFile string `yaml:"targets_file"`
	StateFile   string `yaml:"state_file"`
	SysctlFile  string `yaml:"sysctl_file"`

	// Resolvers queried directly; empty means the system resolver
	DNSServers     []string      `yaml:"dns_servers"`
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`

	// Metric for created entries, -1 takes the outbound interface metric
	Metric int `yaml:"metric"`

	ConcurrencyLimit int    `yaml:"concurrency_limit"`
	MetricsFile      string `yaml:"metrics_file"`
}

// NewDefaultConfig creates a new config with default values
func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		ListDir:          DefaultListDir,
		TargetsFile:      DefaultTargetsFile,
		StateFile:        DefaultStateFile,
		ResolveTimeout:   5 * time.Second,
		Metric:           -1,
		ConcurrencyLimit: 16,
	}
}

// LoadConfig reads a YAML file over the defaults; a missing file yields the defaults
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}

	if c.ListDir == "" {
		return fmt.Errorf("list_dir must not be empty")
	}
	if c.TargetsFile == "" {
		return fmt.Errorf("targets_file must not be empty")
	}

	if c.Metric < -1 {
		return fmt.Errorf("metric must be -1 or non-negative, got %d", c.Metric)
	}

	if c.ResolveTimeout <= 0 {
		return fmt.Errorf("resolve_timeout must be positive")
	}

	if c.ConcurrencyLimit < 1 {
		return fmt.Errorf("concurrency_limit must be at least 1")
	}

	for _, server := range c.DNSServers {
		host := server
		if h, _, err := net.SplitHostPort(server); err == nil {
			host = h
		}
		if _, err := utils.ParseIPv4(host); err != nil {
			return fmt.Errorf("invalid dns server %q: %w", server, err)
		}
	}

	return nil
}
