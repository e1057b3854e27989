package metric

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_CoreMetricsRegistered(t *testing.T) {
	r := NewRegistry()
	m := r.CoreMetrics()
	require.NotNil(t, m)

	m.QueriesTotal.WithLabelValues(PathPaid, ResultOK).Inc()
	m.AdmissionRejections.WithLabelValues(ReasonMissingPaymentID).Add(2)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.QueriesTotal.WithLabelValues(PathPaid, ResultOK)))
	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.AdmissionRejections.WithLabelValues(ReasonMissingPaymentID)))
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.CoreMetrics().QueriesTotal.WithLabelValues(PathFree, ResultOK).Inc()
	r.CoreMetrics().QueryDuration.WithLabelValues(PathFree).Observe(0.05)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "indexer_queries_total"),
		"expected indexer_queries_total in metrics output")
	assert.True(t, strings.Contains(body, "indexer_query_duration_seconds"),
		"expected indexer_query_duration_seconds in metrics output")
}

func TestNewRegistry_Isolated(t *testing.T) {
	// Two registries must not conflict (private prometheus registries)
	a := NewRegistry()
	b := NewRegistry()

	a.CoreMetrics().QueriesTotal.WithLabelValues(PathPaid, ResultOK).Inc()

	assert.Equal(t, float64(0),
		testutil.ToFloat64(b.CoreMetrics().QueriesTotal.WithLabelValues(PathPaid, ResultOK)))
}
