package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := New()

	m.ObserveRequest("CopyObject", 10*time.Millisecond, nil)
	m.ObserveRequest("CopyObject", 10*time.Millisecond, errors.New("x"))
	m.ObserveRetry("CopyObject")
	m.ObservePart(5 << 20)
	m.ObservePart(1 << 20)
	m.ObserveSession("completed")
	m.ObserveRename("renamed")
	m.ObserveRename("renamed")
	m.ObserveScanned(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("CopyObject", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("CopyObject", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("CopyObject")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PartsCopied))
	assert.Equal(t, float64(6<<20), testutil.ToFloat64(m.BytesCopied))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Renames.WithLabelValues("renamed")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ObjectsScanned))
}

// TestMetrics_NilSafe verifies a nil *Metrics can be used everywhere.
func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveRequest("op", time.Second, nil)
		m.ObserveRetry("op")
		m.ObservePart(1)
		m.ObserveSession("aborted")
		m.ObserveRename("failed")
		m.ObserveScanned(1)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "none.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.ObserveSession("aborted")

	path := filepath.Join(t.TempDir(), "s3utils.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `s3utils_concat_sessions_total{state="aborted"} 1`)
}
