package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMetrics(t *testing.T) {
	m := NewClient(nil)

	m.ObserveRequest("GET", "OK", 0.05)
	m.ObserveRequest("GET", "OK", 0.07)
	m.ObserveRequest("POST", "UNAUTHORIZED", 0.01)
	m.IncrementReauth("logged_out")
	m.SetPending(3)
	m.SetCircuitOpen(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("POST", "UNAUTHORIZED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reauth.WithLabelValues("logged_out")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PendingRequests))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitOpen))

	m.SetCircuitOpen(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CircuitOpen))
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClient(reg)
	m.IncrementRetries("service_unavailable")

	path := filepath.Join(t.TempDir(), "nested", "client.prom")
	require.NoError(t, WriteTextfile(path, reg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `margem_admin_api_retries_total{reason="service_unavailable"} 1`)
}

func TestWriteTextfile_EmptyPathIsNoop(t *testing.T) {
	assert.NoError(t, WriteTextfile("", prometheus.NewRegistry()))
}
