// Package processor provides the NATS-backed client for the downstream
// query processor. The gateway dispatches admitted queries as JSON
// envelopes over request/reply subjects, one for each execution path, and
// translates reply envelopes into query results or processing errors.
package processor

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/akme/indexer/errors"
	"github.com/akme/indexer/gateway"
)

// Default dispatch subjects
const (
	DefaultPaidSubject = "indexer.query.paid"
	DefaultFreeSubject = "indexer.query.free"
)

// Config holds dispatch configuration for the processor client.
type Config struct {
	// PaidSubject is the request subject for the paid path (default: indexer.query.paid)
	PaidSubject string `json:"paid_subject,omitempty"`

	// FreeSubject is the request subject for the free path (default: indexer.query.free)
	FreeSubject string `json:"free_subject,omitempty"`
}

// Validate applies defaults to the processor configuration.
func (c *Config) Validate() error {
	if c.PaidSubject == "" {
		c.PaidSubject = DefaultPaidSubject
	}
	if c.FreeSubject == "" {
		c.FreeSubject = DefaultFreeSubject
	}
	return nil
}

// Requester performs a request/reply exchange on a subject.
type Requester interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

// queryEnvelope is the wire format for a dispatched query. Query bytes are
// base64-encoded by encoding/json; the content identifier travels as
// 0x-prefixed hex so the processor can match it against payment records.
type queryEnvelope struct {
	SubgraphID     string `json:"subgraph_id"`
	PaymentID      string `json:"payment_id,omitempty"`
	StateChannelID string `json:"state_channel_id,omitempty"`
	Query          []byte `json:"query"`
	RequestCID     string `json:"request_cid"`
}

// replyEnvelope is the wire format for a processor outcome. Exactly one of
// Result or Error is set; a zero status means the protocol default.
type replyEnvelope struct {
	Status int             `json:"status,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *replyError     `json:"error,omitempty"`
}

type replyError struct {
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

// Client implements gateway.QueryProcessor over NATS request/reply.
type Client struct {
	requester   Requester
	paidSubject string
	freeSubject string
	logger      *slog.Logger
}

// NewClient creates a processor client. The requester is typically a
// *natsclient.Client.
func NewClient(requester Requester, config Config, logger *slog.Logger) (*Client, error) {
	if requester == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Client", "NewClient",
			"requester is required")
	}
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "NewClient", "config validation")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		requester:   requester,
		paidSubject: config.PaidSubject,
		freeSubject: config.FreeSubject,
		logger:      logger,
	}, nil
}

// AddPaidQuery dispatches a query on the paid path.
func (c *Client) AddPaidQuery(ctx context.Context, q gateway.PaidQuery) (*gateway.QueryResult, error) {
	return c.dispatch(ctx, c.paidSubject, queryEnvelope{
		SubgraphID: q.SubgraphID,
		PaymentID:  q.PaymentID,
		Query:      q.Query,
		RequestCID: q.RequestCID.String(),
	})
}

// AddFreeQuery dispatches a query on the free path.
func (c *Client) AddFreeQuery(ctx context.Context, q gateway.FreeQuery) (*gateway.QueryResult, error) {
	return c.dispatch(ctx, c.freeSubject, queryEnvelope{
		SubgraphID:     q.SubgraphID,
		StateChannelID: q.StateChannelID,
		Query:          q.Query,
		RequestCID:     q.RequestCID.String(),
	})
}

// dispatch sends the envelope and decodes the reply. Processor-reported
// failures come back as *gateway.ProcessingError; transport and decoding
// failures are classified errors without a protocol status.
func (c *Client) dispatch(ctx context.Context, subject string, env queryEnvelope) (*gateway.QueryResult, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Client", "dispatch", "envelope marshal")
	}

	reply, err := c.requester.Request(ctx, subject, data)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "dispatch", "request to "+subject)
	}

	var out replyEnvelope
	if err := json.Unmarshal(reply, &out); err != nil {
		c.logger.Error("malformed processor reply", "subject", subject, "error", err)
		return nil, errors.WrapInvalid(err, "Client", "dispatch", "reply unmarshal")
	}

	if out.Error != nil {
		return nil, &gateway.ProcessingError{
			Status:  out.Error.Status,
			Message: out.Error.Message,
		}
	}

	return &gateway.QueryResult{
		Status: out.Status,
		Result: out.Result,
	}, nil
}
