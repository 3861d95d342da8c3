package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"medical-rag-platform/internal/logger"
	"medical-rag-platform/models"
)

const embeddingPath = "embedding"

type chunkDoc struct {
	models.Chunk `bson:",inline"`
	Embedding    []float32 `bson:"embedding"`
}

type scoredDoc struct {
	models.Chunk `bson:",inline"`
	Score        float64 `bson:"score"`
}

// Mongo stores chunks in a MongoDB Atlas collection and searches them with
// an Atlas Vector Search index of the same name.
type Mongo struct {
	coll      *mongo.Collection
	indexName string
	maxBatch  int
}

func NewMongo(db *mongo.Database, indexName string, maxBatch int) *Mongo {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &Mongo{coll: db.Collection(indexName), indexName: indexName, maxBatch: maxBatch}
}

func mongoSimilarity(metric string) (string, error) {
	switch metric {
	case MetricCosine:
		return "cosine", nil
	case MetricDot:
		return "dotProduct", nil
	case MetricEuclidean:
		return "euclidean", nil
	}
	return "", validMetric(metric)
}

// EnsureIndex creates the vector search index when it does not exist yet.
func (m *Mongo) EnsureIndex(ctx context.Context, dimension int, metric string) error {
	similarity, err := mongoSimilarity(metric)
	if err != nil {
		return err
	}

	view := m.coll.SearchIndexes()
	cursor, err := view.List(ctx, options.SearchIndexes().SetName(m.indexName))
	if err != nil {
		return fmt.Errorf("list search indexes: %w", err)
	}
	defer cursor.Close(ctx)
	if cursor.Next(ctx) {
		return nil
	}

	definition := bson.D{{Key: "fields", Value: bson.A{
		bson.D{
			{Key: "type", Value: "vector"},
			{Key: "path", Value: embeddingPath},
			{Key: "numDimensions", Value: dimension},
			{Key: "similarity", Value: similarity},
		},
		bson.D{
			{Key: "type", Value: "filter"},
			{Key: "path", Value: "metadata.source"},
		},
	}}}

	_, err = view.CreateOne(ctx, mongo.SearchIndexModel{
		Definition: definition,
		Options:    options.SearchIndexes().SetName(m.indexName).SetType("vectorSearch"),
	})
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}
	logger.Info("Created vector search index", "index", m.indexName, "dimension", dimension, "similarity", similarity)
	return nil
}

// Upsert replaces documents by _id in one unordered bulk write. Individual
// write errors are reported as a PartialBatchError.
func (m *Mongo) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		chunk := r.Chunk
		chunk.ID = r.ID
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": r.ID}).
			SetReplacement(chunkDoc{Chunk: chunk, Embedding: r.Vector}).
			SetUpsert(true))
	}

	_, err := m.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return bulkError(err)
}

func bulkError(err error) error {
	if err == nil {
		return nil
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && bwe.WriteConcernError == nil && len(bwe.WriteErrors) > 0 {
		failed := make([]int, 0, len(bwe.WriteErrors))
		for _, we := range bwe.WriteErrors {
			failed = append(failed, we.Index)
		}
		return &PartialBatchError{Failed: failed, Err: err}
	}
	return fmt.Errorf("bulk write: %w", err)
}

func (m *Mongo) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := m.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func (m *Mongo) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: m.indexName},
			{Key: "path", Value: embeddingPath},
			{Key: "queryVector", Value: vector},
			{Key: "numCandidates", Value: k * 20},
			{Key: "limit", Value: k},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: embeddingPath, Value: 0},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}

	cursor, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []scoredDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode search results: %w", err)
	}

	results := make([]models.ScoredChunk, 0, len(docs))
	for _, d := range docs {
		results = append(results, models.ScoredChunk{Chunk: d.Chunk, Score: float32(d.Score)})
	}
	return results, nil
}

func (m *Mongo) MaxBatchSize() int { return m.maxBatch }

// Close is a no-op; the client is owned by the caller.
func (m *Mongo) Close() error { return nil }
