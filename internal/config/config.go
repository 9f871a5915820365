// Package config loads client settings from defaults, an optional YAML file
// and CDP_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mstoykov/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CDP"

// Config holds connection and command settings.
type Config struct {
	// Endpoint is a ws://, wss://, http:// or https:// debugging endpoint.
	Endpoint string `yaml:"endpoint" envconfig:"ENDPOINT"`

	// ConnectTimeout bounds DNS check, discovery and handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT"`

	// CommandTimeout bounds each command that has no explicit deadline.
	CommandTimeout time.Duration `yaml:"command_timeout" envconfig:"COMMAND_TIMEOUT"`

	// CheckDNS resolves the endpoint host before connecting.
	CheckDNS bool `yaml:"check_dns" envconfig:"CHECK_DNS"`

	Debug bool `yaml:"debug" envconfig:"DEBUG"`

	// Headers are sent with discovery requests and the WebSocket handshake,
	// given as "Name: value" entries.
	Headers []string `yaml:"headers" envconfig:"HEADERS"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		CommandTimeout: 30 * time.Second,
		CheckDNS:       true,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges. The endpoint itself is validated on connect.
func (c Config) Validate() error {
	if c.ConnectTimeout <= 0 {
		return errors.New("connect_timeout must be positive")
	}
	if c.CommandTimeout <= 0 {
		return errors.New("command_timeout must be positive")
	}
	if _, err := c.Header(); err != nil {
		return err
	}
	return nil
}

// Header parses Headers into an http.Header.
func (c Config) Header() (http.Header, error) {
	h := make(http.Header)
	for _, entry := range c.Headers {
		name, value, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q (want \"Name: value\")", headerName(entry))
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h, nil
}

// headerName trims a malformed entry to what precedes any value so it can be
// echoed without leaking a credential.
func headerName(entry string) string {
	if i := strings.IndexAny(entry, " ="); i >= 0 {
		return entry[:i]
	}
	return entry
}
