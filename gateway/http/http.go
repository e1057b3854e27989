// Package http provides the HTTP admission gateway for subgraph queries.
package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/akme/indexer/cid"
	"github.com/akme/indexer/errors"
	"github.com/akme/indexer/gateway"
	"github.com/akme/indexer/metric"
)

// Headers consumed by the gateway. Lookup through http.Header is
// canonicalization-safe, so the wire names below match regardless of the
// client's casing.
const (
	HeaderPaymentID      = "X-Graph-Payment-ID"
	HeaderStateChannelID = "X-Graph-State-Channel-ID"
	HeaderRequestID      = "X-Request-ID"
)

// Admission rejection messages. These are protocol constants; the
// state-channel message deliberately covers both the absent and the
// malformed case.
const (
	msgInvalidPaymentID      = "Invalid X-Graph-Payment-ID provided"
	msgNoPaymentID           = "No X-Graph-Payment-ID provided"
	msgInvalidStateChannelID = "Invalid X-Graph-State-Channel-ID provided"
)

// getOrGenerateRequestID extracts the request ID from headers or generates
// a new one for tracing across the gateway and the query processor
func getOrGenerateRequestID(r *http.Request) string {
	if reqID := r.Header.Get(HeaderRequestID); reqID != "" {
		return reqID
	}
	return uuid.NewString()
}

// sourceAddress returns the host part of a transport remote address. An
// address without a port is returned as-is; an address that matches no
// whitelist entry simply stays non-exempt.
func sourceAddress(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// Gateway is the admission gateway for subgraph queries. It classifies
// each request as paid or free, validates the required identifiers,
// computes the content identifier over the raw query bytes, and dispatches
// to the query processor.
type Gateway struct {
	config    gateway.Config
	whitelist *gateway.Whitelist
	processor gateway.QueryProcessor
	metrics   *metric.Metrics
	logger    *slog.Logger
}

// NewGateway creates an admission gateway. The whitelist is built once
// from the configuration and is immutable afterwards.
func NewGateway(config gateway.Config, processor gateway.QueryProcessor,
	metrics *metric.Metrics, logger *slog.Logger) (*Gateway, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Gateway", "NewGateway", "config validation")
	}

	if processor == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Gateway", "NewGateway",
			"query processor is required")
	}
	if metrics == nil {
		metrics = metric.NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		config:    config,
		whitelist: gateway.NewWhitelist(config.WhitelistedAddresses),
		processor: processor,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// RegisterHTTPHandlers registers the query endpoint with the HTTP mux.
func (g *Gateway) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /subgraphs/id/{id}", g.HandleQuery)
}

// HandleQuery is the query gateway entry point. Validation and dispatch
// proceed as an ordered decision sequence; every terminal branch produces
// exactly one JSON response.
func (g *Gateway) HandleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	requestID := getOrGenerateRequestID(r)
	w.Header().Set(HeaderRequestID, requestID)

	subgraphID := r.PathValue("id")
	source := sourceAddress(r.RemoteAddr)
	logger := g.logger.With("request_id", requestID, "subgraph", subgraphID, "source", source)

	defer r.Body.Close()

	// Read body with size limit + 1 to detect oversize requests
	bodyReader := io.LimitReader(r.Body, g.config.MaxRequestSize+1)
	query, err := io.ReadAll(bodyReader)
	if err != nil {
		logger.Info("rejected query", "reason", "unreadable body")
		g.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if int64(len(query)) > g.config.MaxRequestSize {
		logger.Info("rejected query", "reason", "oversize body")
		g.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds maximum size of %d bytes", g.config.MaxRequestSize))
		return
	}
	g.metrics.RequestBytes.WithLabelValues("received").Add(float64(len(query)))

	// 1. Payment header type check, independent of whitelist status
	paymentID, paymentShape := gateway.ExtractHeader(r.Header, HeaderPaymentID)
	if paymentShape == gateway.HeaderMultiple {
		logger.Info("rejected query", "reason", "invalid payment ID",
			"header_shape", paymentShape.String())
		g.metrics.AdmissionRejections.WithLabelValues(metric.ReasonInvalidPaymentID).Inc()
		g.writeError(w, http.StatusPaymentRequired, msgInvalidPaymentID)
		return
	}

	// 2. Payment is mandatory unless the source address is whitelisted
	paymentMandatory := !g.whitelist.Contains(source)
	if paymentMandatory && paymentShape == gateway.HeaderAbsent {
		logger.Info("rejected query", "reason", "no payment ID")
		g.metrics.AdmissionRejections.WithLabelValues(metric.ReasonMissingPaymentID).Inc()
		g.writeError(w, http.StatusPaymentRequired, msgNoPaymentID)
		return
	}

	// 3. A supplied payment ID always selects the paid path; the whitelist
	// only ever waives the requirement, it never blocks payment
	if paymentShape == gateway.HeaderSingle {
		g.handlePaidQuery(r.Context(), w, logger, subgraphID, paymentID, query, start)
		return
	}

	g.handleFreeQuery(r.Context(), w, logger, subgraphID, r.Header, query, start)
}

// handlePaidQuery dispatches a query on the paid path.
func (g *Gateway) handlePaidQuery(ctx context.Context, w http.ResponseWriter,
	logger *slog.Logger, subgraphID, paymentID string, query []byte, start time.Time) {
	requestCID := cid.Hash(query)
	logger.Info("received paid query", "payment_id", paymentID, "request_cid", requestCID.String())

	dispatchCtx, cancel := context.WithTimeout(ctx, g.config.DispatchTimeout())
	defer cancel()

	result, err := g.processor.AddPaidQuery(dispatchCtx, gateway.PaidQuery{
		SubgraphID: subgraphID,
		PaymentID:  paymentID,
		Query:      query,
		RequestCID: requestCID,
	})
	g.writeOutcome(w, logger, metric.PathPaid, result, err, start)
}

// handleFreeQuery validates the state-channel header and dispatches a
// query on the free path.
func (g *Gateway) handleFreeQuery(ctx context.Context, w http.ResponseWriter,
	logger *slog.Logger, subgraphID string, header http.Header, query []byte, start time.Time) {
	// 5. The state-channel ID must be a single string; one message covers
	// both the absent and the malformed case
	stateChannelID, shape := gateway.ExtractHeader(header, HeaderStateChannelID)
	if shape != gateway.HeaderSingle {
		logger.Info("rejected query", "reason", "invalid state channel ID",
			"header_shape", shape.String())
		g.metrics.AdmissionRejections.WithLabelValues(metric.ReasonInvalidStateChannelID).Inc()
		g.writeError(w, http.StatusPaymentRequired, msgInvalidStateChannelID)
		return
	}

	requestCID := cid.Hash(query)
	logger.Info("received free query", "state_channel_id", stateChannelID,
		"request_cid", requestCID.String())

	dispatchCtx, cancel := context.WithTimeout(ctx, g.config.DispatchTimeout())
	defer cancel()

	result, err := g.processor.AddFreeQuery(dispatchCtx, gateway.FreeQuery{
		SubgraphID:     subgraphID,
		StateChannelID: stateChannelID,
		Query:          query,
		RequestCID:     requestCID,
	})
	g.writeOutcome(w, logger, metric.PathFree, result, err, start)
}

// writeOutcome maps a processor outcome to the HTTP response. Processor
// failures are surfaced verbatim with their status and message; failures
// without a protocol status become a 500 so no request goes unanswered.
func (g *Gateway) writeOutcome(w http.ResponseWriter, logger *slog.Logger,
	path string, result *gateway.QueryResult, err error, start time.Time) {
	g.metrics.QueryDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())

	if err != nil {
		status := http.StatusInternalServerError
		message := err.Error()

		var pe *gateway.ProcessingError
		if stderrors.As(err, &pe) {
			status = pe.StatusCode()
			message = pe.Message
		}

		logger.Error("query processing failed", "path", path, "status", status, "error", message)
		g.metrics.QueriesTotal.WithLabelValues(path, metric.ResultError).Inc()
		g.writeError(w, status, message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.StatusCode())
	if _, err := w.Write(result.Result); err != nil {
		// Response already committed, nothing more to send
		g.metrics.QueriesTotal.WithLabelValues(path, metric.ResultError).Inc()
		return
	}

	g.metrics.RequestBytes.WithLabelValues("sent").Add(float64(len(result.Result)))
	g.metrics.QueriesTotal.WithLabelValues(path, metric.ResultOK).Inc()
}

// writeError writes a JSON error response of the form {"error": message}.
func (g *Gateway) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	data, _ := json.Marshal(map[string]string{"error": message})
	_, _ = w.Write(data)
}
