package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"medical-rag-platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(source, page string, pos int, content string) models.Chunk {
	return models.Chunk{
		Content:  content,
		Position: pos,
		Metadata: &models.ChunkMetadata{Source: source, Page: page},
	}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "storage", "index_manifest.json"))
}

func TestLoadCreatesEmptyManifest(t *testing.T) {
	s := newStore(t)

	entries, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{"chunks": {}}`, string(data))
}

func TestCorruptManifestIsTreatedAsEmpty(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	entries, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The next write heals the file.
	c := chunk("a.pdf", "1", 0, "text")
	newChunks, ids, err := s.Diff([]models.Chunk{c})
	require.NoError(t, err)
	require.NoError(t, s.Record(newChunks, ids))

	entries, err = s.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDiffSkipsRecordedChunks(t *testing.T) {
	s := newStore(t)
	chunks := []models.Chunk{
		chunk("a.pdf", "1", 0, "first"),
		chunk("a.pdf", "1", 1, "second"),
	}

	newChunks, ids, err := s.Diff(chunks)
	require.NoError(t, err)
	require.Len(t, newChunks, 2)
	assert.Equal(t, ids[0], newChunks[0].ID)
	assert.NotEmpty(t, newChunks[0].ContentHash)
	require.NoError(t, s.Record(newChunks, ids))

	again, againIDs, err := s.Diff(chunks)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Empty(t, againIDs)
}

func TestDiffDetectsChangedContent(t *testing.T) {
	s := newStore(t)
	chunks := []models.Chunk{
		chunk("a.pdf", "1", 0, "unchanged"),
		chunk("a.pdf", "1", 1, "before edit"),
	}
	newChunks, ids, err := s.Diff(chunks)
	require.NoError(t, err)
	require.NoError(t, s.Record(newChunks, ids))

	chunks[1].Content = "after edit"
	changed, changedIDs, err := s.Diff(chunks)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "after edit", changed[0].Content)
	assert.NotEqual(t, ids[1], changedIDs[0])
}

func TestDiffCollapsesDuplicatesInOneRun(t *testing.T) {
	s := newStore(t)
	c := chunk("a.pdf", "1", 0, "same")

	newChunks, ids, err := s.Diff([]models.Chunk{c, c})
	require.NoError(t, err)
	assert.Len(t, newChunks, 1)
	assert.Len(t, ids, 1)
}

func TestRecordWithNoIDsIsNoop(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Record(nil, nil))
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestRecordRejectsMismatchedInput(t *testing.T) {
	s := newStore(t)
	err := s.Record([]models.Chunk{chunk("a.pdf", "1", 0, "x")}, []string{"a", "b"})
	assert.Error(t, err)
}

func TestRecordStoresDefaultsForMissingMetadata(t *testing.T) {
	s := newStore(t)
	c := models.Chunk{Content: "orphan"}
	newChunks, ids, err := s.Diff([]models.Chunk{c})
	require.NoError(t, err)
	require.NoError(t, s.Record(newChunks, ids))

	entries, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, models.ManifestEntry{
		Source: models.UnknownSource,
		Page:   models.NoPage,
		Hash:   newChunks[0].ContentHash,
	}, entries[ids[0]])
}

func TestRemoveBySource(t *testing.T) {
	s := newStore(t)
	chunks := []models.Chunk{
		chunk("a.pdf", "1", 0, "a0"),
		chunk("a.pdf", "2", 1, "a1"),
		chunk("b.pdf", "1", 0, "b0"),
	}
	newChunks, ids, err := s.Diff(chunks)
	require.NoError(t, err)
	require.NoError(t, s.Record(newChunks, ids))

	aIDs, err := s.IDsForSource("a.pdf")
	require.NoError(t, err)
	assert.ElementsMatch(t, ids[:2], aIDs)

	removed, err := s.RemoveBySource("a.pdf")
	require.NoError(t, err)
	assert.ElementsMatch(t, ids[:2], removed)

	entries, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Contains(t, entries, ids[2])

	removed, err = s.RemoveBySource("missing.pdf")
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestConcurrentRecordsAreNotLost(t *testing.T) {
	s := newStore(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var chunks []models.Chunk
			for i := 0; i < 10; i++ {
				chunks = append(chunks, chunk(fmt.Sprintf("doc-%d.pdf", w), "1", i, fmt.Sprintf("w%d-c%d", w, i)))
			}
			newChunks, ids, err := s.Diff(chunks)
			assert.NoError(t, err)
			assert.NoError(t, s.Record(newChunks, ids))
		}(w)
	}
	wg.Wait()

	entries, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 80)
}

func TestStoresSharingAFileDoNotLoseRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index_manifest.json")
	stores := []*Store{NewStore(path), NewStore(path)}

	var wg sync.WaitGroup
	for n, s := range stores {
		wg.Add(1)
		go func(n int, s *Store) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				ch := chunk(fmt.Sprintf("store-%d.pdf", n), "1", i, fmt.Sprintf("s%d-c%d", n, i))
				assert.NoError(t, s.Record([]models.Chunk{ch}, []string{fmt.Sprintf("s%d-%d", n, i)}))
			}
		}(n, s)
	}
	wg.Wait()

	entries, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.Len(t, entries, 100)
	assert.FileExists(t, path+".lock")
}
