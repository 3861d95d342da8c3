package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"medical-rag-platform/models"
)

// Local is a brute-force in-process index. It backs the local retriever and
// tests; contents are lost on restart.
type Local struct {
	mu        sync.RWMutex
	dimension int
	metric    string
	order     []string
	records   map[string]Record
}

func NewLocal() *Local {
	return &Local{metric: MetricCosine, records: make(map[string]Record)}
}

func (l *Local) EnsureIndex(_ context.Context, dimension int, metric string) error {
	if err := validMetric(metric); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dimension == 0 {
		l.dimension = dimension
		l.metric = metric
	}
	return nil
}

func (l *Local) Upsert(_ context.Context, records []Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range records {
		if l.dimension == 0 {
			l.dimension = len(r.Vector)
		}
		if len(r.Vector) != l.dimension {
			return ErrDimensionMismatch
		}
	}
	for _, r := range records {
		if _, ok := l.records[r.ID]; !ok {
			l.order = append(l.order, r.ID)
		}
		l.records[r.ID] = r
	}
	return nil
}

func (l *Local) Delete(_ context.Context, ids []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := l.records[id]; ok {
			drop[id] = struct{}{}
			delete(l.records, id)
		}
	}
	if len(drop) == 0 {
		return nil
	}
	kept := l.order[:0]
	for _, id := range l.order {
		if _, gone := drop[id]; !gone {
			kept = append(kept, id)
		}
	}
	l.order = kept
	return nil
}

// Search returns the k most similar chunks, best first. Ties keep insertion
// order.
func (l *Local) Search(_ context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.order) == 0 {
		return nil, nil
	}
	if len(vector) != l.dimension {
		return nil, ErrDimensionMismatch
	}

	results := make([]models.ScoredChunk, 0, len(l.order))
	for _, id := range l.order {
		r := l.records[id]
		chunk := r.Chunk
		chunk.ID = id
		results = append(results, models.ScoredChunk{Chunk: chunk, Score: score(l.metric, vector, r.Vector)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Len reports how many records are stored.
func (l *Local) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

func (l *Local) MaxBatchSize() int { return DefaultMaxBatch }

func (l *Local) Close() error { return nil }

// score is higher-is-better for every metric.
func score(metric string, a, b []float32) float32 {
	switch metric {
	case MetricDot:
		return dot(a, b)
	case MetricEuclidean:
		var sum float64
		for i := range a {
			d := float64(a[i] - b[i])
			sum += d * d
		}
		return -float32(math.Sqrt(sum))
	default:
		return CosineSimilarity(a, b)
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// CosineSimilarity returns a value in [-1, 1], or 0 for mismatched or zero
// vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
