package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"medical-rag-platform/models"
)

func TestBatchesCoverEveryItemOnce(t *testing.T) {
	tests := []struct {
		n, size   int
		wantSizes []int
	}{
		{0, 1000, []int{}},
		{1, 1000, []int{1}},
		{1000, 1000, []int{1000}},
		{1001, 1000, []int{1000, 1}},
		{2500, 1000, []int{1000, 1000, 500}},
		{7, 3, []int{3, 3, 1}},
	}
	for _, tt := range tests {
		items := make([]int, tt.n)
		for i := range items {
			items[i] = i
		}

		batches := Batches(items, tt.size)

		sizes := make([]int, 0, len(batches))
		var flat []int
		for _, b := range batches {
			sizes = append(sizes, len(b))
			flat = append(flat, b...)
		}
		assert.Equal(t, tt.wantSizes, sizes, "n=%d size=%d", tt.n, tt.size)
		if tt.n > 0 {
			assert.Equal(t, items, flat)
		}
	}
}

func TestBatchesDefaultsNonPositiveSize(t *testing.T) {
	assert.Len(t, Batches(make([]int, 1500), 0), 2)
}

func rec(id string, vec ...float32) Record {
	return Record{ID: id, Vector: vec, Chunk: models.Chunk{
		Content:  "text " + id,
		Metadata: &models.ChunkMetadata{Source: "a.pdf", Page: "1"},
	}}
}

func TestLocalSearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	require.NoError(t, l.EnsureIndex(ctx, 2, MetricCosine))
	require.NoError(t, l.Upsert(ctx, []Record{
		rec("east", 1, 0),
		rec("north", 0, 1),
		rec("northeast", 1, 1),
		rec("west", -1, 0),
	}))

	got, err := l.Search(ctx, []float32{1, 0.1}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "east", got[0].Chunk.ID)
	assert.Equal(t, "northeast", got[1].Chunk.ID)
	assert.Equal(t, "north", got[2].Chunk.ID)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
	assert.Equal(t, "a.pdf", got[0].Chunk.Source())
}

func TestLocalUpsertIsIdempotentAndDeleteRemoves(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	require.NoError(t, l.Upsert(ctx, []Record{rec("a", 1, 0), rec("b", 0, 1)}))
	require.NoError(t, l.Upsert(ctx, []Record{rec("a", 1, 0)}))
	assert.Equal(t, 2, l.Len())

	require.NoError(t, l.Delete(ctx, []string{"a", "missing"}))
	assert.Equal(t, 1, l.Len())

	got, err := l.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Chunk.ID)
}

func TestLocalRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	require.NoError(t, l.EnsureIndex(ctx, 3, MetricCosine))
	assert.ErrorIs(t, l.Upsert(ctx, []Record{rec("a", 1, 0)}), ErrDimensionMismatch)

	require.NoError(t, l.Upsert(ctx, []Record{rec("a", 1, 0, 0)}))
	_, err := l.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestLocalEmptySearch(t *testing.T) {
	got, err := NewLocal().Search(context.Background(), []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEnsureIndexRejectsUnknownMetric(t *testing.T) {
	assert.Error(t, NewLocal().EnsureIndex(context.Background(), 4, "manhattan"))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, float32(0), CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, float32(0), CosineSimilarity([]float32{1}, []float32{1, 1}))
}

func TestBulkErrorReportsFailedOffsets(t *testing.T) {
	err := bulkError(mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{
			{WriteError: mongo.WriteError{Index: 1, Code: 11000, Message: "duplicate"}},
			{WriteError: mongo.WriteError{Index: 4, Code: 2, Message: "bad value"}},
		},
	})

	var partial *PartialBatchError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, []int{1, 4}, partial.Failed)

	assert.NoError(t, bulkError(nil))

	err = bulkError(errors.New("connection reset"))
	require.Error(t, err)
	assert.False(t, errors.As(err, &partial))
}

func TestMongoSimilarityNames(t *testing.T) {
	for metric, want := range map[string]string{
		MetricCosine:    "cosine",
		MetricDot:       "dotProduct",
		MetricEuclidean: "euclidean",
	} {
		got, err := mongoSimilarity(metric)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := mongoSimilarity("l1")
	assert.Error(t, err)
}

func TestQdrantPayloadKeepsChunkAttribution(t *testing.T) {
	r := Record{ID: "abc123", Vector: []float32{0.1, 0.2}, Chunk: models.Chunk{
		Content:     "Insulin regulates glucose.",
		ContentHash: "deadbeef",
		Position:    4,
		Metadata:    &models.ChunkMetadata{Source: "diabetes.pdf", Page: "12"},
	}}

	point := toPoint(r)
	assert.Equal(t, PointID("abc123"), point.GetId().GetUuid())

	chunk := fromPayload(point.GetPayload())
	assert.Equal(t, "abc123", chunk.ID)
	assert.Equal(t, "Insulin regulates glucose.", chunk.Content)
	assert.Equal(t, 4, chunk.Position)
	assert.Equal(t, "diabetes.pdf", chunk.Source())
	assert.Equal(t, "12", chunk.Page())

	bare := fromPayload(toPoint(Record{ID: "x", Vector: []float32{1}}).GetPayload())
	assert.Nil(t, bare.Metadata)
}

func TestPointIDIsStable(t *testing.T) {
	assert.Equal(t, PointID("chunk-1"), PointID("chunk-1"))
	assert.NotEqual(t, PointID("chunk-1"), PointID("chunk-2"))
}
