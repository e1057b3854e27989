package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Minimal(t *testing.T) {
	path := writeConfig(t, `{
		"nats": {"url": "nats://127.0.0.1:4222"},
		"status": {"endpoint": "http://127.0.0.1:8030/graphql"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	// Defaults applied throughout
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)
	assert.Equal(t, -1, cfg.NATS.MaxReconnects)
	assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait())
	assert.Equal(t, int64(1024*1024), cfg.Gateway.MaxRequestSize)
	assert.Equal(t, 30*time.Second, cfg.Gateway.DispatchTimeout())
	assert.Equal(t, "indexer.query.paid", cfg.Processor.PaidSubject)
	assert.Equal(t, "indexer.query.free", cfg.Processor.FreeSubject)
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"listen_addr": ":7600", "metrics_addr": ":7601"},
		"nats": {"url": "nats://nats:4222", "max_reconnects": 10, "reconnect_wait": "5s"},
		"gateway": {
			"whitelisted_addresses": ["10.0.0.1"],
			"max_request_size": 2048,
			"dispatch_timeout": "10s"
		},
		"processor": {"paid_subject": "q.paid", "free_subject": "q.free"},
		"status": {"endpoint": "http://graph-node:8030/graphql", "timeout": "3s"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7600", cfg.Server.ListenAddr)
	assert.Equal(t, 10, cfg.NATS.MaxReconnects)
	assert.Equal(t, 5*time.Second, cfg.NATS.ReconnectWait())
	assert.Equal(t, []string{"10.0.0.1"}, cfg.Gateway.WhitelistedAddresses)
	assert.Equal(t, int64(2048), cfg.Gateway.MaxRequestSize)
	assert.Equal(t, "q.paid", cfg.Processor.PaidSubject)
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing nats url",
			content: `{"status": {"endpoint": "http://x/graphql"}}`,
		},
		{
			name:    "missing status endpoint",
			content: `{"nats": {"url": "nats://127.0.0.1:4222"}}`,
		},
		{
			name:    "malformed json",
			content: `{"nats": `,
		},
		{
			name: "invalid reconnect wait",
			content: `{
				"nats": {"url": "nats://127.0.0.1:4222", "reconnect_wait": "soon"},
				"status": {"endpoint": "http://x/graphql"}
			}`,
		},
		{
			name: "conflicting listeners",
			content: `{
				"server": {"listen_addr": ":8080", "metrics_addr": ":8080"},
				"nats": {"url": "nats://127.0.0.1:4222"},
				"status": {"endpoint": "http://x/graphql"}
			}`,
		},
		{
			name: "invalid gateway section",
			content: `{
				"nats": {"url": "nats://127.0.0.1:4222"},
				"gateway": {"max_request_size": -5},
				"status": {"endpoint": "http://x/graphql"}
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
