package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/akme/indexer/errors"
)

// HeaderShape classifies how a header appeared on a request. Anything
// other than a single value is treated as invalid wherever the protocol
// requires a single string.
type HeaderShape int

const (
	// HeaderAbsent means the header was not present at all
	HeaderAbsent HeaderShape = iota
	// HeaderSingle means the header carried exactly one value
	HeaderSingle
	// HeaderMultiple means the header was duplicated
	HeaderMultiple
)

// String returns the string representation of HeaderShape
func (s HeaderShape) String() string {
	switch s {
	case HeaderAbsent:
		return "absent"
	case HeaderSingle:
		return "single"
	case HeaderMultiple:
		return "multiple"
	default:
		return "unknown"
	}
}

// ExtractHeader returns the value and shape of a header. The value is only
// meaningful when the shape is HeaderSingle.
func ExtractHeader(h http.Header, name string) (string, HeaderShape) {
	values := h.Values(name)
	switch len(values) {
	case 0:
		return "", HeaderAbsent
	case 1:
		return values[0], HeaderSingle
	default:
		return "", HeaderMultiple
	}
}

// Whitelist is an immutable set of source addresses exempt from mandatory
// payment. It is built once at construction and shared read-only across
// concurrent requests; updating it requires reconstructing the gateway.
type Whitelist struct {
	addresses map[string]struct{}
}

// NewWhitelist builds a whitelist from the given addresses.
func NewWhitelist(addresses []string) *Whitelist {
	set := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		set[addr] = struct{}{}
	}
	return &Whitelist{addresses: set}
}

// Contains reports whether the address is whitelisted.
func (w *Whitelist) Contains(address string) bool {
	_, ok := w.addresses[address]
	return ok
}

// Len returns the number of whitelisted addresses.
func (w *Whitelist) Len() int {
	return len(w.addresses)
}

// Config holds configuration for the admission gateway.
type Config struct {
	// WhitelistedAddresses lists source addresses exempt from mandatory payment
	WhitelistedAddresses []string `json:"whitelisted_addresses,omitempty"`

	// MaxRequestSize limits query body size in bytes (default: 1MB)
	MaxRequestSize int64 `json:"max_request_size,omitempty"`

	// DispatchTimeoutStr bounds a single processor dispatch (default: "30s")
	DispatchTimeoutStr string `json:"dispatch_timeout,omitempty"`

	// dispatchTimeout is the parsed duration (internal use)
	dispatchTimeout time.Duration
}

// Validate ensures the gateway configuration is valid and applies defaults.
func (c *Config) Validate() error {
	if c.MaxRequestSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_request_size cannot be negative")
	}

	if c.MaxRequestSize == 0 {
		c.MaxRequestSize = 1024 * 1024 // 1MB default
	}

	if c.MaxRequestSize > 100*1024*1024 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_request_size cannot exceed 100MB")
	}

	if c.DispatchTimeoutStr == "" {
		c.dispatchTimeout = 30 * time.Second
	} else {
		parsed, err := time.ParseDuration(c.DispatchTimeoutStr)
		if err != nil {
			return errors.WrapInvalid(err, "Config", "Validate",
				fmt.Sprintf("invalid dispatch_timeout format: %s", c.DispatchTimeoutStr))
		}
		c.dispatchTimeout = parsed
	}

	if c.dispatchTimeout < 100*time.Millisecond || c.dispatchTimeout > 5*time.Minute {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"dispatch_timeout must be between 100ms and 5m")
	}

	return nil
}

// DispatchTimeout returns the parsed dispatch timeout.
func (c *Config) DispatchTimeout() time.Duration {
	return c.dispatchTimeout
}

// DefaultConfig returns default gateway configuration.
func DefaultConfig() Config {
	return Config{
		WhitelistedAddresses: []string{},
		MaxRequestSize:       1024 * 1024, // 1MB
		DispatchTimeoutStr:   "30s",
	}
}
