package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	ChatQueries         metric.Int64Counter
	ChatDuration        metric.Float64Histogram
	ChunksUpserted      metric.Int64Counter
	BatchFailures       metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics against the global meter
// provider. Without a configured provider the instruments are no-ops.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("medical-rag-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chatQueries, err := meter.Int64Counter(
		"chat.queries.total",
		metric.WithDescription("Total answered chat queries"),
	)
	if err != nil {
		return nil, err
	}

	chatDuration, err := meter.Float64Histogram(
		"chat.query.duration",
		metric.WithDescription("End-to-end chat latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	chunksUpserted, err := meter.Int64Counter(
		"index.chunks.upserted",
		metric.WithDescription("Chunks written to the vector index"),
	)
	if err != nil {
		return nil, err
	}

	batchFailures, err := meter.Int64Counter(
		"index.batch.failures",
		metric.WithDescription("Embedding or upsert batches that failed"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"llm.circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		ChatQueries:         chatQueries,
		ChatDuration:        chatDuration,
		ChunksUpserted:      chunksUpserted,
		BatchFailures:       batchFailures,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordChat records one completed chat query.
func (m *Metrics) RecordChat(latencyMs float64, status string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("chat.status", status))
	m.ChatQueries.Add(context.Background(), 1, attrs)
	m.ChatDuration.Record(context.Background(), latencyMs, attrs)
}

// RecordUpsert records a successfully written batch.
func (m *Metrics) RecordUpsert(backend string, chunks int) {
	if m == nil {
		return
	}
	m.ChunksUpserted.Add(context.Background(), int64(chunks),
		metric.WithAttributes(attribute.String("index.backend", backend)))
}

// RecordBatchFailure records a failed embedding or upsert batch.
func (m *Metrics) RecordBatchFailure(stage string) {
	if m == nil {
		return
	}
	m.BatchFailures.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("index.stage", stage)))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
