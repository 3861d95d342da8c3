package models

// Document is one unit of loaded text, usually a single PDF page.
type Document struct {
	Source  string
	Page    string
	Content string
}

// ManifestEntry records a chunk that is present in the vector index.
type ManifestEntry struct {
	Source string `json:"source"`
	Page   string `json:"page"`
	Hash   string `json:"hash"`
}

// SourceSummary aggregates the manifest per source.
type SourceSummary struct {
	Source      string   `json:"source"`
	TotalChunks int      `json:"total_chunks"`
	Pages       []string `json:"pages"`
}

// DeleteResult reports the outcome of removing a source.
type DeleteResult struct {
	DeletedChunks int    `json:"deleted_chunks"`
	Source        string `json:"source,omitempty"`
	Message       string `json:"message"`
}

// IndexResponse is returned by the indexing endpoints.
type IndexResponse struct {
	IndexedChunks int    `json:"indexed_chunks"`
	TaskID        string `json:"task_id,omitempty"`
	Message       string `json:"message,omitempty"`
}
