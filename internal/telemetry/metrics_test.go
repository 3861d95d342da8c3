package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetricsWithNoopProvider(t *testing.T) {
	m, err := InitMetrics()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		m.RecordRequest("GET", "/api/health", "200", 0.01)
		m.RecordChat(120.5, "answered")
		m.RecordUpsert("mongo", 10)
		m.RecordBatchFailure("embed")
		m.RecordCircuitBreakerState("gemini", "open")
	})
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordChat(1, "answered")
		m.RecordUpsert("qdrant", 1)
	})
}
