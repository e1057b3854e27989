package status

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProxy(t *testing.T, endpoint string) *Proxy {
	t.Helper()

	p, err := NewProxy(Config{Endpoint: endpoint}, nil)
	require.NoError(t, err)
	return p
}

func statusRequest(body string) *http.Request {
	return httptest.NewRequest("POST", "/status", strings.NewReader(body))
}

func TestNewProxy_Validation(t *testing.T) {
	_, err := NewProxy(Config{}, nil)
	require.Error(t, err, "empty endpoint must be rejected")

	_, err = NewProxy(Config{Endpoint: "http://localhost:8030/graphql", TimeoutStr: "soon"}, nil)
	require.Error(t, err, "malformed timeout must be rejected")

	p, err := NewProxy(Config{Endpoint: "http://localhost:8030/graphql"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestCheckQuery(t *testing.T) {
	p := newTestProxy(t, "http://localhost:8030/graphql")

	tests := []struct {
		name    string
		query   string
		allowed bool
	}{
		{
			name:    "allowed root field",
			query:   `{ indexingStatuses { subgraph health } }`,
			allowed: true,
		},
		{
			name:    "multiple allowed root fields",
			query:   `{ indexingStatuses { health } subgraphDeployments { id } }`,
			allowed: true,
		},
		{
			name:    "named query operation",
			query:   `query Statuses { indexingStatusForCurrentVersion(subgraphName: "a/b") { health } }`,
			allowed: true,
		},
		{
			name:    "disallowed root field",
			query:   `{ indexerRegistration { url } }`,
			allowed: false,
		},
		{
			name:    "allowed and disallowed mixed",
			query:   `{ indexingStatuses { health } secrets { key } }`,
			allowed: false,
		},
		{
			name:    "mutation rejected",
			query:   `mutation { reassign(id: "x") }`,
			allowed: false,
		},
		{
			name:    "unparsable query",
			query:   `{ indexingStatuses `,
			allowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := p.checkQuery(tt.query)
			if ok != tt.allowed {
				t.Errorf("expected allowed=%v, got %v (msg: %s)", tt.allowed, ok, msg)
			}
		})
	}
}

func TestServeHTTP_ForwardsAllowedQuery(t *testing.T) {
	var upstreamBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		upstreamBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"indexingStatuses":[]}}`))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL)

	reqBody := `{"query":"{ indexingStatuses { health } }"}`
	w := httptest.NewRecorder()
	p.ServeHTTP(w, statusRequest(reqBody))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"indexingStatuses":[]}}`, w.Body.String())
	assert.JSONEq(t, reqBody, upstreamBody, "original body must be forwarded untouched")
}

func TestServeHTTP_RejectsWithoutForwarding(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL)

	tests := []struct {
		name           string
		request        *http.Request
		expectedStatus int
	}{
		{
			name:           "disallowed field",
			request:        statusRequest(`{"query":"{ indexerRegistration { url } }"}`),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid body",
			request:        statusRequest(`not json`),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing query",
			request:        statusRequest(`{}`),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "GET not supported",
			request:        httptest.NewRequest("GET", "/status", nil),
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			p.ServeHTTP(w, tt.request)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.False(t, called, "rejected query must not reach upstream")

			var body struct {
				Errors []struct {
					Message string `json:"message"`
				} `json:"errors"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.NotEmpty(t, body.Errors)
			assert.NotEmpty(t, body.Errors[0].Message)
		})
	}
}

func TestServeHTTP_UpstreamUnavailable(t *testing.T) {
	// Closed server: connection refused
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	upstream.Close()

	p := newTestProxy(t, upstream.URL)

	w := httptest.NewRecorder()
	p.ServeHTTP(w, statusRequest(`{"query":"{ indexingStatuses { health } }"}`))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestServeHTTP_UpstreamStatusPassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"errors":[{"message":"indexing paused"}]}`))
	}))
	defer upstream.Close()

	p := newTestProxy(t, upstream.URL)

	w := httptest.NewRecorder()
	p.ServeHTTP(w, statusRequest(`{"query":"{ indexingStatuses { health } }"}`))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"errors":[{"message":"indexing paused"}]}`, w.Body.String())
}
