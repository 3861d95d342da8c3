package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"medical-rag-platform/internal/logger"
	"medical-rag-platform/models"
)

// Payload keys stored next to each point.
const (
	payloadChunkID  = "chunk_id"
	payloadText     = "text"
	payloadHash     = "hash"
	payloadPosition = "position"
	payloadSource   = "source"
	payloadPage     = "page"
)

// Qdrant keeps chunks in a Qdrant collection. Qdrant only accepts integer or
// UUID point ids, so chunk ids are mapped to name-based UUIDs and the
// original id is kept in the payload.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	maxBatch   int
}

func NewQdrant(client *qdrant.Client, collection string, maxBatch int) *Qdrant {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &Qdrant{client: client, collection: collection, maxBatch: maxBatch}
}

// PointID maps a chunk id onto a stable UUID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

func qdrantDistance(metric string) (qdrant.Distance, error) {
	switch metric {
	case MetricCosine:
		return qdrant.Distance_Cosine, nil
	case MetricDot:
		return qdrant.Distance_Dot, nil
	case MetricEuclidean:
		return qdrant.Distance_Euclid, nil
	}
	return qdrant.Distance_UnknownDistance, validMetric(metric)
}

func (q *Qdrant) EnsureIndex(ctx context.Context, dimension int, metric string) error {
	distance, err := qdrantDistance(metric)
	if err != nil {
		return err
	}
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: distance,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	logger.Info("Created Qdrant collection", "collection", q.collection, "dimension", dimension)
	return nil
}

func toPoint(r Record) *qdrant.PointStruct {
	payload := map[string]any{
		payloadChunkID:  r.ID,
		payloadText:     r.Chunk.Content,
		payloadHash:     r.Chunk.ContentHash,
		payloadPosition: int64(r.Chunk.Position),
	}
	if r.Chunk.Metadata != nil {
		payload[payloadSource] = r.Chunk.Metadata.Source
		payload[payloadPage] = r.Chunk.Metadata.Page
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewID(PointID(r.ID)),
		Vectors: qdrant.NewVectors(r.Vector...),
		Payload: qdrant.NewValueMap(payload),
	}
}

func fromPayload(payload map[string]*qdrant.Value) models.Chunk {
	chunk := models.Chunk{
		ID:          payload[payloadChunkID].GetStringValue(),
		Content:     payload[payloadText].GetStringValue(),
		ContentHash: payload[payloadHash].GetStringValue(),
		Position:    int(payload[payloadPosition].GetIntegerValue()),
	}
	_, hasSource := payload[payloadSource]
	_, hasPage := payload[payloadPage]
	if hasSource || hasPage {
		chunk.Metadata = &models.ChunkMetadata{
			Source: payload[payloadSource].GetStringValue(),
			Page:   payload[payloadPage].GetStringValue(),
		}
	}
	return chunk
}

// Upsert writes one batch. Qdrant applies a batch atomically, so failures
// are never partial.
func (q *Qdrant) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		points = append(points, toPoint(r))
	}
	wait := true
	if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

func (q *Qdrant) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(PointID(id)))
	}
	wait := true
	if _, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	}); err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	return nil
}

func (q *Qdrant) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	limit := uint64(k)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}

	results := make([]models.ScoredChunk, 0, len(points))
	for _, p := range points {
		results = append(results, models.ScoredChunk{Chunk: fromPayload(p.GetPayload()), Score: p.GetScore()})
	}
	return results, nil
}

func (q *Qdrant) MaxBatchSize() int { return q.maxBatch }

func (q *Qdrant) Close() error { return q.client.Close() }
