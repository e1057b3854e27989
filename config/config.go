// Package config loads and validates the indexer gateway configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/akme/indexer/errors"
	"github.com/akme/indexer/gateway"
	"github.com/akme/indexer/processor"
	"github.com/akme/indexer/status"
)

// NATSConfig holds connection settings for the dispatch transport.
type NATSConfig struct {
	// URL is the NATS server URL
	URL string `json:"url"`

	// MaxReconnects limits reconnection attempts (-1 for infinite, the default)
	MaxReconnects int `json:"max_reconnects,omitempty"`

	// ReconnectWaitStr is the wait between reconnection attempts (default: "2s")
	ReconnectWaitStr string `json:"reconnect_wait,omitempty"`

	// reconnectWait is the parsed duration (internal use)
	reconnectWait time.Duration
}

// Validate ensures the NATS configuration is valid and applies defaults.
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "NATSConfig", "Validate",
			"nats url cannot be empty")
	}

	if c.ReconnectWaitStr == "" {
		c.reconnectWait = 2 * time.Second
	} else {
		parsed, err := time.ParseDuration(c.ReconnectWaitStr)
		if err != nil {
			return errors.WrapInvalid(err, "NATSConfig", "Validate",
				fmt.Sprintf("invalid reconnect_wait format: %s", c.ReconnectWaitStr))
		}
		c.reconnectWait = parsed
	}

	if c.MaxReconnects == 0 {
		c.MaxReconnects = -1
	}

	return nil
}

// ReconnectWait returns the parsed reconnect wait.
func (c *NATSConfig) ReconnectWait() time.Duration {
	return c.reconnectWait
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// ListenAddr is the API listen address (default: ":8080")
	ListenAddr string `json:"listen_addr,omitempty"`

	// MetricsAddr is the metrics listen address (default: ":9090")
	MetricsAddr string `json:"metrics_addr,omitempty"`
}

// Validate applies listener defaults.
func (c *ServerConfig) Validate() error {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}
	if c.ListenAddr == c.MetricsAddr {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "ServerConfig", "Validate",
			"listen_addr and metrics_addr cannot be the same")
	}
	return nil
}

// Config is the complete gateway service configuration.
type Config struct {
	Server    ServerConfig     `json:"server"`
	NATS      NATSConfig       `json:"nats"`
	Gateway   gateway.Config   `json:"gateway"`
	Processor processor.Config `json:"processor"`
	Status    status.Config    `json:"status"`
}

// Load reads and validates a JSON configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "Config", "Load", "read config file")
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates every section, applying defaults.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.NATS.Validate(); err != nil {
		return err
	}
	if err := c.Gateway.Validate(); err != nil {
		return err
	}
	if err := c.Processor.Validate(); err != nil {
		return err
	}
	if err := c.Status.Validate(); err != nil {
		return err
	}
	return nil
}
