// Package vectorstore adapts external and in-process vector indexes to the
// single contract used by indexing and retrieval.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"medical-rag-platform/models"
)

// Supported similarity metrics.
const (
	MetricCosine    = "cosine"
	MetricDot       = "dot"
	MetricEuclidean = "euclidean"
)

// DefaultMaxBatch is the per-call item bound applied to upserts and deletes.
const DefaultMaxBatch = 1000

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Record is one chunk ready to be written, keyed by its chunk identifier.
type Record struct {
	ID     string
	Vector []float32
	Chunk  models.Chunk
}

// Index is a vector index. Upsert and Delete must be idempotent and never be
// handed more than MaxBatchSize items per call.
type Index interface {
	EnsureIndex(ctx context.Context, dimension int, metric string) error
	Upsert(ctx context.Context, records []Record) error
	Delete(ctx context.Context, ids []string) error
	Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error)
	MaxBatchSize() int
	Close() error
}

// PartialBatchError reports items of a single batch that were not written.
// Failed holds offsets into the batch passed to Upsert or Delete; all other
// items of that batch succeeded.
type PartialBatchError struct {
	Failed []int
	Err    error
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("%d item(s) failed in batch: %v", len(e.Failed), e.Err)
}

func (e *PartialBatchError) Unwrap() error { return e.Err }

// Batches splits items into consecutive slices of at most size elements,
// covering every item exactly once in order.
func Batches[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultMaxBatch
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

func validMetric(metric string) error {
	switch metric {
	case MetricCosine, MetricDot, MetricEuclidean:
		return nil
	}
	return fmt.Errorf("unsupported similarity metric %q", metric)
}
