package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/akme/indexer/cid"
)

// PaidQuery is a query dispatched on the paid execution path.
type PaidQuery struct {
	SubgraphID string
	PaymentID  string
	Query      []byte
	RequestCID cid.CID
}

// FreeQuery is a query dispatched on the free execution path.
type FreeQuery struct {
	SubgraphID     string
	StateChannelID string
	Query          []byte
	RequestCID     cid.CID
}

// QueryResult is a successful processor outcome. A zero Status means 200.
type QueryResult struct {
	Status int
	Result json.RawMessage
}

// StatusCode returns the HTTP status for the result, defaulting to 200.
func (r *QueryResult) StatusCode() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

// ProcessingError is a failure raised by the query processor. A zero
// Status means 500.
type ProcessingError struct {
	Status  int
	Message string
}

// Error implements the error interface
func (e *ProcessingError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status for the failure, defaulting to 500.
func (e *ProcessingError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// QueryProcessor executes admitted queries. Implementations return a
// *ProcessingError for protocol-level failures; any other error is treated
// as an unclassified internal failure by the gateway.
type QueryProcessor interface {
	// AddPaidQuery executes a query on the paid path.
	AddPaidQuery(ctx context.Context, q PaidQuery) (*QueryResult, error)

	// AddFreeQuery executes a query on the free path.
	AddFreeQuery(ctx context.Context, q FreeQuery) (*QueryResult, error)
}
