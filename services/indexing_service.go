package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"medical-rag-platform/internal/ai"
	"medical-rag-platform/internal/chunkid"
	"medical-rag-platform/internal/logger"
	"medical-rag-platform/internal/manifest"
	"medical-rag-platform/internal/telemetry"
	"medical-rag-platform/internal/vectorstore"
	"medical-rag-platform/models"
)

// Retriever returns the chunks most similar to a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]models.Chunk, error)
}

type IndexingOptions struct {
	Dimension int
	Metric    string
	BatchSize int
	TopK      int
	// LocalDir is the corpus embedded into the in-process retriever.
	LocalDir string
	// Backend labels index metrics.
	Backend string
}

// IndexingService pushes new or changed chunks to the vector index and keeps
// the manifest in step with it.
type IndexingService struct {
	loader   DocumentLoader
	splitter *TextSplitter
	manifest *manifest.Store
	embedder ai.Embedder
	index    vectorstore.Index
	metrics  *telemetry.Metrics
	opts     IndexingOptions

	// serializes Index and DeleteSource runs
	runMu sync.Mutex

	retrieverMu sync.Mutex
	retriever   Retriever
}

func NewIndexingService(
	loader DocumentLoader,
	splitter *TextSplitter,
	store *manifest.Store,
	embedder ai.Embedder,
	index vectorstore.Index,
	metrics *telemetry.Metrics,
	opts IndexingOptions,
) *IndexingService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = vectorstore.DefaultMaxBatch
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.Metric == "" {
		opts.Metric = vectorstore.MetricCosine
	}
	return &IndexingService{
		loader:   loader,
		splitter: splitter,
		manifest: store,
		embedder: embedder,
		index:    index,
		metrics:  metrics,
		opts:     opts,
	}
}

func (s *IndexingService) batchSize() int {
	if limit := s.index.MaxBatchSize(); limit > 0 && limit < s.opts.BatchSize {
		return limit
	}
	return s.opts.BatchSize
}

type pending struct {
	chunk models.Chunk
	id    string
}

// Index embeds and upserts every chunk under folder that the manifest does
// not know yet, and returns how many were indexed. A failed batch stops the
// run; chunks from earlier batches, and the items of the failed batch that
// were written, stay recorded.
func (s *IndexingService) Index(ctx context.Context, folder string) (int, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx, span := otel.Tracer("indexing").Start(ctx, "index.run")
	defer span.End()
	span.SetAttributes(attribute.String("index.folder", folder))

	indexed, err := s.run(ctx, folder)
	span.SetAttributes(attribute.Int("index.chunks", indexed))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return indexed, err
}

func (s *IndexingService) run(ctx context.Context, folder string) (int, error) {
	docs, err := s.loader.LoadFolder(ctx, folder)
	if err != nil {
		return 0, fmt.Errorf("load documents: %w", err)
	}
	chunks := s.splitter.Split(docs)

	newChunks, ids, err := s.manifest.Diff(chunks)
	if err != nil {
		return 0, fmt.Errorf("diff manifest: %w", err)
	}
	if len(newChunks) == 0 {
		logger.Info("Index up to date", "folder", folder, "chunks", len(chunks))
		return 0, nil
	}

	if err := s.index.EnsureIndex(ctx, s.opts.Dimension, s.opts.Metric); err != nil {
		return 0, upstream("ensure index", err)
	}

	work := make([]pending, len(newChunks))
	for i := range newChunks {
		work[i] = pending{chunk: newChunks[i], id: ids[i]}
	}

	indexed := 0
	for _, batch := range vectorstore.Batches(work, s.batchSize()) {
		n, err := s.indexBatch(ctx, batch)
		indexed += n
		if err != nil {
			logger.Error("Indexing stopped", "folder", folder, "indexed", indexed, "error", err)
			return indexed, err
		}
	}

	logger.Info("Indexed new chunks", "folder", folder, "chunks", indexed, "skipped", len(chunks)-len(newChunks))
	return indexed, nil
}

// indexBatch embeds, upserts and records one batch, returning how many of
// its chunks were recorded.
func (s *IndexingService) indexBatch(ctx context.Context, batch []pending) (int, error) {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.chunk.Content
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err == nil && len(vectors) != len(batch) {
		err = fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
	}
	if err != nil {
		s.metrics.RecordBatchFailure("embed")
		return 0, upstream("embed", err)
	}

	records := make([]vectorstore.Record, len(batch))
	for i, p := range batch {
		records[i] = vectorstore.Record{ID: p.id, Vector: vectors[i], Chunk: p.chunk}
	}

	written := batch
	upsertErr := s.index.Upsert(ctx, records)
	if upsertErr != nil {
		s.metrics.RecordBatchFailure("upsert")
		var partial *vectorstore.PartialBatchError
		if !errors.As(upsertErr, &partial) {
			return 0, upstream("upsert", upsertErr)
		}
		written = withoutOffsets(batch, partial.Failed)
	}

	if err := s.record(written); err != nil {
		return 0, err
	}
	s.metrics.RecordUpsert(s.opts.Backend, len(written))

	if upsertErr != nil {
		return len(written), upstream("upsert", upsertErr)
	}
	return len(written), nil
}

func (s *IndexingService) record(items []pending) error {
	chunks := make([]models.Chunk, len(items))
	ids := make([]string, len(items))
	for i, p := range items {
		chunks[i] = p.chunk
		ids[i] = p.id
	}
	if err := s.manifest.Record(chunks, ids); err != nil {
		return fmt.Errorf("record manifest: %w", err)
	}
	return nil
}

func withoutOffsets(batch []pending, failed []int) []pending {
	skip := make(map[int]struct{}, len(failed))
	for _, i := range failed {
		skip[i] = struct{}{}
	}
	out := make([]pending, 0, len(batch))
	for i, p := range batch {
		if _, bad := skip[i]; !bad {
			out = append(out, p)
		}
	}
	return out
}

// ListSources summarizes the manifest per source, sorted by source name.
func (s *IndexingService) ListSources(_ context.Context) ([]models.SourceSummary, error) {
	entries, err := s.manifest.Load()
	if err != nil {
		return nil, err
	}

	bySource := make(map[string]*models.SourceSummary)
	pageSets := make(map[string]map[string]struct{})
	for _, e := range entries {
		sum, ok := bySource[e.Source]
		if !ok {
			sum = &models.SourceSummary{Source: e.Source}
			bySource[e.Source] = sum
			pageSets[e.Source] = make(map[string]struct{})
		}
		sum.TotalChunks++
		pageSets[e.Source][e.Page] = struct{}{}
	}

	out := make([]models.SourceSummary, 0, len(bySource))
	for src, sum := range bySource {
		pages := make([]string, 0, len(pageSets[src]))
		for p := range pageSets[src] {
			pages = append(pages, p)
		}
		sortPages(pages)
		sum.Pages = pages
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}

// sortPages orders numeric pages numerically, ahead of any non-numeric ones.
func sortPages(pages []string) {
	sort.Slice(pages, func(i, j int) bool {
		a, errA := strconv.Atoi(pages[i])
		b, errB := strconv.Atoi(pages[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return pages[i] < pages[j]
	})
}

// DeleteSource removes every chunk of source from the index and then from
// the manifest. Only ids whose delete batch succeeded leave the manifest.
func (s *IndexingService) DeleteSource(ctx context.Context, source string) (*models.DeleteResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	ids, err := s.manifest.IDsForSource(source)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &models.DeleteResult{Source: source, Message: "No chunks found for source"}, nil
	}
	sort.Strings(ids)

	var deleted []string
	var deleteErr error
	for _, batch := range vectorstore.Batches(ids, s.batchSize()) {
		if err := s.index.Delete(ctx, batch); err != nil {
			deleteErr = upstream("delete", err)
			break
		}
		deleted = append(deleted, batch...)
	}

	if err := s.manifest.Remove(deleted); err != nil {
		return nil, fmt.Errorf("update manifest: %w", err)
	}

	result := &models.DeleteResult{
		DeletedChunks: len(deleted),
		Source:        source,
		Message:       fmt.Sprintf("Deleted %d chunks", len(deleted)),
	}
	if deleteErr != nil {
		logger.Error("Source deletion incomplete", "source", source, "deleted", len(deleted), "remaining", len(ids)-len(deleted), "error", deleteErr)
		return result, deleteErr
	}
	logger.Info("Deleted source", "source", source, "chunks", len(deleted))
	return result, nil
}

// PruneMissing deletes every indexed source whose file no longer exists.
func (s *IndexingService) PruneMissing(ctx context.Context) ([]models.DeleteResult, error) {
	sources, err := s.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	var results []models.DeleteResult
	for _, sum := range sources {
		if _, err := os.Stat(sum.Source); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		res, err := s.DeleteSource(ctx, sum.Source)
		if res != nil {
			results = append(results, *res)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

type vectorRetriever struct {
	embedder ai.Embedder
	index    vectorstore.Index
	k        int
}

func (r *vectorRetriever) Retrieve(ctx context.Context, query string) ([]models.Chunk, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, upstream("embed query", err)
	}
	scored, err := r.index.Search(ctx, vec, r.k)
	if err != nil {
		return nil, upstream("search", err)
	}
	chunks := make([]models.Chunk, len(scored))
	for i, sc := range scored {
		chunks[i] = sc.Chunk
	}
	return chunks, nil
}

// IndexRetriever searches the external vector index.
func (s *IndexingService) IndexRetriever() Retriever {
	return &vectorRetriever{embedder: s.embedder, index: s.index, k: s.opts.TopK}
}

// Retriever returns a retriever over an in-process index of LocalDir. It is
// built on first use and reused afterwards; a failed build is retried on the
// next call.
func (s *IndexingService) Retriever(ctx context.Context) (Retriever, error) {
	s.retrieverMu.Lock()
	defer s.retrieverMu.Unlock()

	if s.retriever != nil {
		return s.retriever, nil
	}

	local := vectorstore.NewLocal()
	if err := local.EnsureIndex(ctx, s.opts.Dimension, s.opts.Metric); err != nil {
		return nil, err
	}

	docs, err := s.loader.LoadFolder(ctx, s.opts.LocalDir)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	chunks := s.splitter.Split(docs)

	for _, batch := range vectorstore.Batches(chunks, s.batchSize()) {
		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Content
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, upstream("embed", err)
		}
		if len(vectors) != len(batch) {
			return nil, upstream("embed", fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch)))
		}
		records := make([]vectorstore.Record, len(batch))
		for i, ch := range batch {
			ch.ContentHash = chunkid.Fingerprint(ch.Content)
			id := chunkid.ID(ch.Source(), ch.Page(), ch.Position, ch.ContentHash)
			records[i] = vectorstore.Record{ID: id, Vector: vectors[i], Chunk: ch}
		}
		if err := local.Upsert(ctx, records); err != nil {
			return nil, err
		}
	}

	logger.Info("Built local retriever", "folder", s.opts.LocalDir, "chunks", local.Len())
	s.retriever = &vectorRetriever{embedder: s.embedder, index: local, k: s.opts.TopK}
	return s.retriever, nil
}
