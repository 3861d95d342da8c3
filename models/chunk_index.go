package models

const (
	// UnknownSource is recorded for chunks whose loader supplied no source.
	UnknownSource = "unknown"
	// UnknownTitle is shown in attributions for chunks without a source.
	UnknownTitle = "Unknown Source"
	// NoPage marks content that has no page number (plain text, html).
	NoPage = "N/A"
)

// ChunkMetadata carries attribution for a chunk. A nil *ChunkMetadata means
// the chunk has no attribution at all; the accessors return explicit defaults.
type ChunkMetadata struct {
	Source string `json:"source" bson:"source"`
	Page   string `json:"page" bson:"page"`
}

// SourceOr returns the recorded source or def when absent.
func (m *ChunkMetadata) SourceOr(def string) string {
	if m == nil || m.Source == "" {
		return def
	}
	return m.Source
}

// PageOr returns the recorded page or def when absent.
func (m *ChunkMetadata) PageOr(def string) string {
	if m == nil || m.Page == "" {
		return def
	}
	return m.Page
}

// Chunk is a contiguous span of extracted document text.
type Chunk struct {
	ID          string         `json:"id,omitempty" bson:"_id,omitempty"`
	Content     string         `json:"content" bson:"text"`
	ContentHash string         `json:"content_hash,omitempty" bson:"hash,omitempty"`
	Position    int            `json:"position" bson:"position"`
	Metadata    *ChunkMetadata `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// Source is shorthand for the chunk's source with the indexing default.
func (c Chunk) Source() string { return c.Metadata.SourceOr(UnknownSource) }

// Page is shorthand for the chunk's page with the indexing default.
func (c Chunk) Page() string { return c.Metadata.PageOr(NoPage) }

// ScoredChunk is a chunk returned by similarity search.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}
