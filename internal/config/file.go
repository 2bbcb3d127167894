// Package config handles ssrdiff configuration from a YAML file, with
// defaults for every field and struct-tag validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level ssrdiff configuration.
type Config struct {
	LogLevel string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	Server   ServerConfig  `yaml:"server"`
	Browser  BrowserConfig `yaml:"browser"`
	Fetch    FetchConfig   `yaml:"fetch"`
	Compare  CompareConfig `yaml:"compare"`
	History  HistoryConfig `yaml:"history"`
}

// ServerConfig controls the HTTP UI and API.
type ServerConfig struct {
	Addr    string `yaml:"addr" validate:"required"`
	MaxBody int64  `yaml:"max_body" validate:"gt=0"` // JSON API request cap, bytes
	MCP     bool   `yaml:"mcp"`                      // mount the MCP streamable HTTP handler on /mcp
}

// BrowserConfig controls how the rendered DOM is captured.
type BrowserConfig struct {
	Backend          string        `yaml:"backend" validate:"oneof=rod chromedp"`
	Remote           string        `yaml:"remote" validate:"omitempty,url"`
	Mode             string        `yaml:"mode" validate:"oneof=headless headful"`
	ExecPath         string        `yaml:"exec_path"`
	MemoryLimit      int64         `yaml:"memory_limit" validate:"gte=0"`
	RecycleInterval  time.Duration `yaml:"recycle_interval" validate:"gte=0"`
	ResourceBlocking []string      `yaml:"resource_blocking" validate:"dive,oneof=images fonts media stylesheets"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"` // per extraction round trip
	Settle           time.Duration `yaml:"settle" validate:"gte=0"` // wait after load before serialising
}

// FetchConfig controls the reference (HTTP) fetch.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	UserAgent    string        `yaml:"user_agent"`
	MaxBytes     int64         `yaml:"max_bytes" validate:"gt=0"`
	BlockPrivate bool          `yaml:"block_private"` // refuse private and loopback targets
}

// CompareConfig holds the default display options.
type CompareConfig struct {
	Rewrite   bool `yaml:"rewrite"`
	Highlight bool `yaml:"highlight"`
	Sanitize  bool `yaml:"sanitize"`
	Minify    bool `yaml:"minify"`
}

// HistoryConfig controls the comparison history store. An empty path
// disables it.
type HistoryConfig struct {
	Path        string        `yaml:"path"`
	Limit       int           `yaml:"limit" validate:"gte=0"`
	BusyTimeout time.Duration `yaml:"busy_timeout" validate:"gte=0"` // SQLite busy_timeout
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{
		Compare: CompareConfig{Rewrite: true, Sanitize: true},
	}
	c.applyDefaults()
	return c
}

// LoadFile reads a YAML configuration file. Fields absent from the file keep
// their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: validate: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8086"
	}
	if c.Server.MaxBody <= 0 {
		c.Server.MaxBody = 16 << 20
	}
	if c.Browser.Backend == "" {
		c.Browser.Backend = "rod"
	}
	if c.Browser.Mode == "" {
		c.Browser.Mode = "headless"
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.Timeout <= 0 {
		c.Browser.Timeout = 30 * time.Second
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Mozilla/5.0 (compatible; ssrdiff/1.0)"
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 10 << 20
	}
	if c.History.Limit <= 0 {
		c.History.Limit = 50
	}
	if c.History.BusyTimeout <= 0 {
		c.History.BusyTimeout = 5 * time.Second
	}
}
