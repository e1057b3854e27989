// Package status proxies GraphQL status queries to the external indexing
// status service. Queries are parsed before forwarding and only supported
// status root fields pass through; everything else is rejected without
// touching the upstream service.
package status

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/akme/indexer/errors"
)

// defaultAllowedRootFields lists the status root fields the proxy forwards.
var defaultAllowedRootFields = []string{
	"indexingStatuses",
	"indexingStatusForCurrentVersion",
	"indexingStatusForPendingVersion",
	"subgraphDeployments",
}

// Config holds configuration for the status proxy.
type Config struct {
	// Endpoint is the URL of the external GraphQL status service
	Endpoint string `json:"endpoint"`

	// TimeoutStr bounds a single upstream request (default: "10s")
	TimeoutStr string `json:"timeout,omitempty"`

	// timeout is the parsed duration (internal use)
	timeout time.Duration
}

// Validate ensures the proxy configuration is valid and applies defaults.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"status endpoint cannot be empty")
	}

	if c.TimeoutStr == "" {
		c.timeout = 10 * time.Second
	} else {
		parsed, err := time.ParseDuration(c.TimeoutStr)
		if err != nil {
			return errors.WrapInvalid(err, "Config", "Validate",
				fmt.Sprintf("invalid timeout format: %s", c.TimeoutStr))
		}
		c.timeout = parsed
	}

	return nil
}

// Proxy forwards allowed status queries to the upstream service.
type Proxy struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
	allowed  map[string]struct{}
}

// NewProxy creates a status proxy for the configured endpoint.
func NewProxy(config Config, logger *slog.Logger) (*Proxy, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Proxy", "NewProxy", "config validation")
	}
	if logger == nil {
		logger = slog.Default()
	}

	allowed := make(map[string]struct{}, len(defaultAllowedRootFields))
	for _, field := range defaultAllowedRootFields {
		allowed[field] = struct{}{}
	}

	return &Proxy{
		endpoint: config.Endpoint,
		client:   &http.Client{Timeout: config.timeout},
		logger:   logger,
		allowed:  allowed,
	}, nil
}

// graphqlRequest is the subset of the GraphQL-over-HTTP request body the
// proxy inspects; the raw body is forwarded untouched.
type graphqlRequest struct {
	Query string `json:"query"`
}

// ServeHTTP handles a status query: parse, filter root fields, forward.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		p.writeErrors(w, http.StatusMethodNotAllowed, "Only POST requests are supported")
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		p.writeErrors(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var req graphqlRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Query == "" {
		p.writeErrors(w, http.StatusBadRequest, "Invalid GraphQL request body")
		return
	}

	if msg, ok := p.checkQuery(req.Query); !ok {
		p.logger.Info("rejected status query", "reason", msg)
		p.writeErrors(w, http.StatusBadRequest, msg)
		return
	}

	p.forward(w, r, body)
}

// checkQuery parses the query and verifies every top-level field is an
// allowed status root field.
func (p *Proxy) checkQuery(query string) (string, bool) {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return "Invalid GraphQL query", false
	}

	for _, op := range doc.Operations {
		if op.Operation != ast.Query {
			return "Only query operations are supported", false
		}
		for _, sel := range op.SelectionSet {
			field, ok := sel.(*ast.Field)
			if !ok {
				return "Unsupported root selection", false
			}
			if _, ok := p.allowed[field.Name]; !ok {
				return fmt.Sprintf("Query field %q is not supported", field.Name), false
			}
		}
	}

	return "", true
}

// forward relays the original body to the upstream status service and
// streams the response back verbatim.
func (p *Proxy) forward(w http.ResponseWriter, r *http.Request, body []byte) {
	upstream, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
		p.endpoint, bytes.NewReader(body))
	if err != nil {
		p.writeErrors(w, http.StatusInternalServerError, "Failed to build upstream request")
		return
	}
	upstream.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(upstream)
	if err != nil {
		p.logger.Error("status upstream request failed", "endpoint", p.endpoint, "error", err)
		p.writeErrors(w, http.StatusBadGateway, "Status service unavailable")
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.Error("status response copy failed", "error", err)
	}
}

// writeErrors writes a GraphQL-style error body.
func (p *Proxy) writeErrors(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	body := map[string]any{
		"errors": gqlerror.List{{Message: message}},
	}
	data, _ := json.Marshal(body)
	_, _ = w.Write(data)
}
