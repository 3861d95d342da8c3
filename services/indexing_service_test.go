package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medical-rag-platform/internal/manifest"
	"medical-rag-platform/internal/vectorstore"
	"medical-rag-platform/models"
)

type indexFixture struct {
	loader   *fakeLoader
	embedder *fakeEmbedder
	index    *fakeIndex
	store    *manifest.Store
	svc      *IndexingService
}

func newIndexFixture(t *testing.T, docs []models.Document, batchSize, indexMax int) *indexFixture {
	t.Helper()
	f := &indexFixture{
		loader:   &fakeLoader{docs: docs},
		embedder: &fakeEmbedder{},
		index:    newFakeIndex(indexMax),
		store:    manifest.NewStore(filepath.Join(t.TempDir(), "storage", "index_manifest.json")),
	}
	f.svc = NewIndexingService(f.loader, NewTextSplitter(1000, 200), f.store, f.embedder, f.index, nil, IndexingOptions{
		Dimension: 8,
		Metric:    vectorstore.MetricCosine,
		BatchSize: batchSize,
		TopK:      3,
		LocalDir:  "data/pdfs",
		Backend:   "test",
	})
	return f
}

// pages returns n single-chunk pages of one source.
func pages(source string, n int) []models.Document {
	docs := make([]models.Document, n)
	for i := range docs {
		docs[i] = models.Document{Source: source, Page: fmt.Sprint(i + 1), Content: fmt.Sprintf("%s page %d text", source, i+1)}
	}
	return docs
}

func TestIndexSkipsUnchangedContent(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t, pages("a.pdf", 5), 1000, 1000)

	n, err := f.svc.Index(ctx, "data/pdfs")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.Len(t, f.index.upserts, 1)

	n, err = f.svc.Index(ctx, "data/pdfs")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.index.upserts, 1, "second run must not upsert")
	assert.Equal(t, 1, f.index.ensureCalls, "second run must not touch the index")
	assert.Equal(t, 1, f.embedder.batches)
}

func TestIndexDetectsChangedChunk(t *testing.T) {
	ctx := context.Background()
	docs := pages("a.pdf", 3)
	f := newIndexFixture(t, docs, 1000, 1000)

	_, err := f.svc.Index(ctx, "data/pdfs")
	require.NoError(t, err)

	f.loader.docs[1].Content = "edited page two"
	n, err := f.svc.Index(ctx, "data/pdfs")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, f.index.upserts, 2)
	assert.Len(t, f.index.upserts[1], 1)

	entries, err := f.store.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 4, "the changed chunk is a new entry next to the old one")
}

func TestIndexBatchCoverage(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t, pages("a.pdf", 7), 3, 1000)

	n, err := f.svc.Index(ctx, "data/pdfs")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	require.Len(t, f.index.upserts, 3)
	assert.Len(t, f.index.upserts[0], 3)
	assert.Len(t, f.index.upserts[1], 3)
	assert.Len(t, f.index.upserts[2], 1)

	chunks := NewTextSplitter(1000, 200).Split(pages("a.pdf", 7))
	_, wantIDs, err := manifest.NewStore(filepath.Join(t.TempDir(), "m.json")).Diff(chunks)
	require.NoError(t, err)

	var got []string
	for _, b := range f.index.upserts {
		got = append(got, b...)
	}
	assert.Equal(t, wantIDs, got, "every chunk exactly once, in order")
}

func TestIndexBatchBoundedByIndexLimit(t *testing.T) {
	f := newIndexFixture(t, pages("a.pdf", 5), 1000, 2)

	_, err := f.svc.Index(context.Background(), "data/pdfs")
	require.NoError(t, err)
	assert.Len(t, f.index.upserts, 3)
}

func TestIndexPartialBatchRecordsOnlyWrittenChunks(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t, pages("a.pdf", 7), 3, 1000)
	f.index.partialOn = 2
	f.index.partialItems = []int{1}

	n, err := f.svc.Index(ctx, "data/pdfs")
	require.Error(t, err)
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	var partial *vectorstore.PartialBatchError
	assert.True(t, errors.As(err, &partial))

	assert.Equal(t, 5, n, "3 from the first batch and 2 of the failed one")
	assert.Len(t, f.index.upserts, 2, "processing stops at the failed batch")

	entries, err := f.store.Load()
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.NotContains(t, entries, f.index.upserts[1][1])

	// a healthy rerun sends exactly what is missing
	f.index.partialOn = 0
	n, err = f.svc.Index(ctx, "data/pdfs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 7, f.index.Len())
}

func TestIndexUpsertFailureRecordsNothingFromBatch(t *testing.T) {
	f := newIndexFixture(t, pages("a.pdf", 4), 2, 1000)
	f.index.failUpsertOn = 2

	n, err := f.svc.Index(context.Background(), "data/pdfs")
	require.Error(t, err)
	assert.Equal(t, 2, n)

	entries, _ := f.store.Load()
	assert.Len(t, entries, 2)
}

func TestIndexEmbeddingFailureIsUpstream(t *testing.T) {
	f := newIndexFixture(t, pages("a.pdf", 2), 1000, 1000)
	f.embedder.failOn = 1
	f.embedder.failWith = errors.New("quota exceeded")

	n, err := f.svc.Index(context.Background(), "data/pdfs")
	assert.Zero(t, n)
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "embed", ue.Op)
	assert.Empty(t, f.index.upserts)

	entries, _ := f.store.Load()
	assert.Empty(t, entries)
}

func TestListSourcesAggregatesPages(t *testing.T) {
	docs := append(pages("b.pdf", 2), pages("a.pdf", 11)...)
	docs = append(docs, models.Document{Source: "notes.txt", Page: models.NoPage, Content: "plain text"})
	f := newIndexFixture(t, docs, 1000, 1000)
	_, err := f.svc.Index(context.Background(), "data/pdfs")
	require.NoError(t, err)

	got, err := f.svc.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "a.pdf", got[0].Source)
	assert.Equal(t, 11, got[0].TotalChunks)
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}, got[0].Pages)
	assert.Equal(t, "b.pdf", got[1].Source)
	assert.Equal(t, []string{models.NoPage}, got[2].Pages)
}

func TestSortPagesPutsNumbersFirst(t *testing.T) {
	p := []string{"N/A", "10", "2", "appendix", "1"}
	sortPages(p)
	assert.Equal(t, []string{"1", "2", "10", "N/A", "appendix"}, p)
}

func TestDeleteSourceWithoutChunksSkipsIndex(t *testing.T) {
	f := newIndexFixture(t, nil, 1000, 1000)

	res, err := f.svc.DeleteSource(context.Background(), "missing.pdf")
	require.NoError(t, err)
	assert.Zero(t, res.DeletedChunks)
	assert.Empty(t, f.index.deletes)
}

func TestDeleteSourceRemovesOnlyThatSource(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t, append(pages("a.pdf", 5), pages("b.pdf", 2)...), 2, 1000)
	_, err := f.svc.Index(ctx, "data/pdfs")
	require.NoError(t, err)

	res, err := f.svc.DeleteSource(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 5, res.DeletedChunks)
	assert.Len(t, f.index.deletes, 3)
	assert.Equal(t, 2, f.index.Len())

	sources, err := f.svc.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "b.pdf", sources[0].Source)
}

func TestDeleteSourceKeepsIDsOfFailedBatches(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t, pages("a.pdf", 5), 2, 1000)
	_, err := f.svc.Index(ctx, "data/pdfs")
	require.NoError(t, err)
	f.index.failDeleteOn = 2

	res, err := f.svc.DeleteSource(ctx, "a.pdf")
	require.Error(t, err)
	assert.Equal(t, 2, res.DeletedChunks)

	left, err := f.store.IDsForSource("a.pdf")
	require.NoError(t, err)
	assert.Len(t, left, 3)
}

func TestPruneMissingDeletesVanishedSources(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	kept := filepath.Join(dir, "kept.pdf")
	require.NoError(t, os.WriteFile(kept, []byte("%PDF-1.4"), 0o600))
	gone := filepath.Join(dir, "gone.pdf")

	f := newIndexFixture(t, append(pages(kept, 2), pages(gone, 3)...), 1000, 1000)
	_, err := f.svc.Index(ctx, dir)
	require.NoError(t, err)

	results, err := f.svc.PruneMissing(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, gone, results[0].Source)
	assert.Equal(t, 3, results[0].DeletedChunks)

	sources, err := f.svc.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, kept, sources[0].Source)
}

func TestRetrieverIsBuiltOnce(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t, pages("a.pdf", 6), 1000, 1000)

	r1, err := f.svc.Retriever(ctx)
	require.NoError(t, err)
	r2, err := f.svc.Retriever(ctx)
	require.NoError(t, err)
	assert.Same(t, r1, r2)
	assert.Equal(t, 1, f.loader.calls)

	got, err := r1.Retrieve(ctx, "a.pdf page 4 text")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a.pdf page 4 text", got[0].Content)
	assert.Equal(t, "4", got[0].Page())
}

func TestIndexRetrieverSearchesIndex(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t, pages("a.pdf", 4), 1000, 1000)
	_, err := f.svc.Index(ctx, "data/pdfs")
	require.NoError(t, err)

	got, err := f.svc.IndexRetriever().Retrieve(ctx, "a.pdf page 2 text")
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "a.pdf page 2 text", got[0].Content)
	assert.Equal(t, "a.pdf", got[0].Source())
}
