// Package config loads the candid command's settings from a YAML file.
//
//	did: service.did
//	transport: tcp
//	addr: 127.0.0.1:7400
//	timeout: 5s
//	cache:
//	  size: 512
//	  ttl: 30s
//	metrics: 127.0.0.1:9100
//
// Command-line flags override file values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport kinds.
const (
	TransportLoopback = "loopback"
	TransportTCP      = "tcp"
	TransportGRPC     = "grpc"
	TransportJSONRPC  = "jsonrpc"
)

// DefaultAddr is used when no address is configured.
const DefaultAddr = "127.0.0.1:7400"

// Config holds command settings.
type Config struct {
	DID       string        `yaml:"did"`
	Transport string        `yaml:"transport"`
	Addr      string        `yaml:"addr"`
	Metrics   string        `yaml:"metrics"`
	Cache     Cache         `yaml:"cache"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Cache configures query caching. A zero Size disables it.
type Cache struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// Default returns the settings used without a config file.
func Default() Config {
	return Config{
		Transport: TransportLoopback,
		Addr:      DefaultAddr,
		Timeout:   30 * time.Second,
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults. Unknown keys are an error.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportLoopback, TransportTCP, TransportGRPC, TransportJSONRPC:
	default:
		return fmt.Errorf("config: unknown transport %q", c.Transport)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("config: negative cache size %d", c.Cache.Size)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: negative timeout %s", c.Timeout)
	}
	return nil
}
