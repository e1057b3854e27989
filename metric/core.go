package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Query path label values
const (
	PathPaid = "paid"
	PathFree = "free"
)

// Query result label values
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Admission rejection reason label values
const (
	ReasonInvalidPaymentID      = "invalid_payment_id"
	ReasonMissingPaymentID      = "missing_payment_id"
	ReasonInvalidStateChannelID = "invalid_state_channel_id"
)

// Metrics holds the core gateway metrics.
type Metrics struct {
	// QueriesTotal counts dispatched queries by path and result
	QueriesTotal *prometheus.CounterVec

	// AdmissionRejections counts admission failures by reason
	AdmissionRejections *prometheus.CounterVec

	// QueryDuration tracks end-to-end query handling time by path
	QueryDuration *prometheus.HistogramVec

	// RequestBytes counts body bytes by direction (received, sent)
	RequestBytes *prometheus.CounterVec
}

// NewMetrics creates the core gateway metrics, unregistered.
func NewMetrics() *Metrics {
	return &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_queries_total",
				Help: "Total queries handled by the gateway, by path and result",
			},
			[]string{"path", "result"},
		),
		AdmissionRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_admission_rejections_total",
				Help: "Admission rejections by reason",
			},
			[]string{"reason"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexer_query_duration_seconds",
				Help:    "Query handling duration in seconds, by path",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		RequestBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexer_request_bytes_total",
				Help: "Body bytes through the gateway, by direction",
			},
			[]string{"direction"},
		),
	}
}

// collectors returns all core metrics for registration.
func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.QueriesTotal,
		m.AdmissionRejections,
		m.QueryDuration,
		m.RequestBytes,
	}
}
