// Package natsclient manages the NATS connection used to reach the query
// processor, with reconnect handling and a failure-count circuit breaker.
package natsclient

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/akme/indexer/errors"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error variables
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
)

// Client manages a NATS connection for request/reply dispatch
type Client struct {
	url      string
	status   atomic.Value // stores ConnectionStatus
	failures atomic.Int32
	logger   Logger

	conn *nats.Conn

	// Circuit breaker
	circuitFailures  atomic.Int32
	circuitThreshold int32
	circuitOpenedAt  atomic.Value // stores time.Time
	circuitCooldown  time.Duration

	// Connection options
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	clientName    string

	mu sync.RWMutex
}

// NewClient creates a NATS client with optional configuration
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:              url,
		logger:           &defaultLogger{},
		maxReconnects:    -1, // infinite by default
		reconnectWait:    2 * time.Second,
		timeout:          5 * time.Second,
		circuitThreshold: 5,
		circuitCooldown:  30 * time.Second,
		clientName:       "indexer-gateway",
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.status.Store(StatusDisconnected)
	c.circuitOpenedAt.Store(time.Time{})

	return c, nil
}

// Connect establishes the NATS connection. Reconnects are handled by the
// underlying library; the client only tracks status for health reporting.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.conn.IsConnected() {
		return nil
	}

	c.setStatus(StatusConnecting)

	opts := []nats.Option{
		nats.Name(c.clientName),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.Timeout(c.timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.setStatus(StatusReconnecting)
			if err != nil {
				c.logger.Errorf("disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.setStatus(StatusConnected)
			c.logger.Printf("reconnected to %s", c.url)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.setStatus(StatusDisconnected)
		}),
	}

	conn, err := nats.Connect(c.url, opts...)
	if err != nil {
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(err, "Client", "Connect", "nats connect")
	}

	select {
	case <-ctx.Done():
		conn.Close()
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "nats connect")
	default:
	}

	c.conn = conn
	c.setStatus(StatusConnected)
	c.logger.Printf("connected to %s", c.url)
	return nil
}

// Request performs a request/reply exchange, honoring the context deadline.
func (c *Client) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	if c.circuitIsOpen() {
		return nil, errors.WrapTransient(ErrCircuitOpen, "Client", "Request", "dispatch")
	}

	conn := c.GetConnection()
	if conn == nil || !conn.IsConnected() {
		return nil, errors.WrapTransient(ErrNotConnected, "Client", "Request", "dispatch")
	}

	msg, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "Request", "nats request to "+subject)
	}

	c.circuitFailures.Store(0)
	return msg.Data, nil
}

// Close drains and closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		if err := c.conn.Drain(); err != nil {
			c.conn.Close()
		}
		c.conn = nil
	}
	c.setStatus(StatusDisconnected)
}

// URL returns the NATS server URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	val := c.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

// GetConnection returns the current NATS connection
func (c *Client) GetConnection() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// SetConnection sets the NATS connection (for testing)
func (c *Client) SetConnection(conn *nats.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	if conn != nil && conn.IsConnected() {
		c.setStatus(StatusConnected)
	}
}

// IsHealthy returns true if the connection is usable
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected && !c.circuitIsOpen()
}

// Failures returns the total failure count
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
}

// recordFailure tracks a dispatch failure and opens the circuit once the
// threshold is reached. The circuit closes again after the cooldown.
func (c *Client) recordFailure() {
	c.failures.Add(1)

	if c.circuitFailures.Add(1) >= c.circuitThreshold {
		c.circuitOpenedAt.Store(time.Now())
		c.circuitFailures.Store(0)
		c.logger.Errorf("circuit breaker opened after %d consecutive failures", c.circuitThreshold)
	}
}

func (c *Client) circuitIsOpen() bool {
	openedAt := c.circuitOpenedAt.Load().(time.Time)
	if openedAt.IsZero() {
		return false
	}
	if time.Since(openedAt) > c.circuitCooldown {
		c.circuitOpenedAt.Store(time.Time{})
		return false
	}
	return true
}
