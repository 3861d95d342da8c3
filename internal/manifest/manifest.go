// Package manifest persists the ledger of chunks already pushed to the
// vector index. The ledger is a single JSON document keyed by chunk id.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"medical-rag-platform/internal/chunkid"
	"medical-rag-platform/internal/logger"
	"medical-rag-platform/models"
)

type fileFormat struct {
	Chunks map[string]models.ManifestEntry `json:"chunks"`
}

// Store owns the manifest file. Every load-modify-save cycle holds mu and an
// exclusive lock on "<path>.lock", so ingestions in this process and in the
// worker or CLI processes never lose each other's entries.
type Store struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewStore returns a store backed by path. The file is created on first use.
func NewStore(path string) *Store {
	return &Store{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

func (s *Store) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock manifest: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			logger.Warn("Failed to release manifest lock", "path", s.lock.Path(), "error", err)
		}
	}()
	return fn()
}

// Load returns a snapshot of every entry.
func (s *Store) Load() (map[string]models.ManifestEntry, error) {
	var entries map[string]models.ManifestEntry
	err := s.locked(func() error {
		var err error
		entries, err = s.read()
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Save replaces the persisted entry set.
func (s *Store) Save(entries map[string]models.ManifestEntry) error {
	return s.locked(func() error { return s.write(entries) })
}

// Update runs fn against the current entries and persists the result. fn
// returning an error aborts the write.
func (s *Store) Update(fn func(entries map[string]models.ManifestEntry) error) error {
	return s.locked(func() error {
		entries, err := s.read()
		if err != nil {
			return err
		}
		if err := fn(entries); err != nil {
			return err
		}
		return s.write(entries)
	})
}

// Diff assigns a content hash and identifier to every chunk and returns the
// ones not yet recorded, in input order, along with their identifiers.
func (s *Store) Diff(chunks []models.Chunk) ([]models.Chunk, []string, error) {
	known, err := s.Load()
	if err != nil {
		return nil, nil, err
	}

	var newChunks []models.Chunk
	var newIDs []string
	seen := make(map[string]struct{})
	for _, ch := range chunks {
		ch.ContentHash = chunkid.Fingerprint(ch.Content)
		ch.ID = chunkid.ID(ch.Source(), ch.Page(), ch.Position, ch.ContentHash)

		if _, ok := known[ch.ID]; ok {
			continue
		}
		if _, ok := seen[ch.ID]; ok {
			continue
		}
		seen[ch.ID] = struct{}{}
		newChunks = append(newChunks, ch)
		newIDs = append(newIDs, ch.ID)
	}
	return newChunks, newIDs, nil
}

// Record adds entries for the given chunk/id pairs.
func (s *Store) Record(chunks []models.Chunk, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if len(chunks) != len(ids) {
		return fmt.Errorf("manifest record: %d chunks for %d ids", len(chunks), len(ids))
	}

	return s.Update(func(entries map[string]models.ManifestEntry) error {
		for i, ch := range chunks {
			hash := ch.ContentHash
			if hash == "" {
				hash = chunkid.Fingerprint(ch.Content)
			}
			entries[ids[i]] = models.ManifestEntry{
				Source: ch.Source(),
				Page:   ch.Page(),
				Hash:   hash,
			}
		}
		return nil
	})
}

// IDsForSource lists the identifiers recorded for source.
func (s *Store) IDsForSource(source string) ([]string, error) {
	entries, err := s.Load()
	if err != nil {
		return nil, err
	}
	var ids []string
	for id, e := range entries {
		if e.Source == source {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Remove deletes the given identifiers.
func (s *Store) Remove(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.Update(func(entries map[string]models.ManifestEntry) error {
		for _, id := range ids {
			delete(entries, id)
		}
		return nil
	})
}

// RemoveBySource deletes and returns every identifier recorded for source.
func (s *Store) RemoveBySource(source string) ([]string, error) {
	var removed []string
	err := s.Update(func(entries map[string]models.ManifestEntry) error {
		for id, e := range entries {
			if e.Source == source {
				removed = append(removed, id)
				delete(entries, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *Store) read() (map[string]models.ManifestEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		empty := make(map[string]models.ManifestEntry)
		if err := s.write(empty); err != nil {
			return nil, err
		}
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Warn("Manifest unreadable, starting from an empty ledger", "path", s.path, "error", err)
		return make(map[string]models.ManifestEntry), nil
	}
	if f.Chunks == nil {
		f.Chunks = make(map[string]models.ManifestEntry)
	}
	return f.Chunks, nil
}

// write replaces the file atomically via a temp file in the same directory.
func (s *Store) write(entries map[string]models.ManifestEntry) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}

	data, err := json.MarshalIndent(fileFormat{Chunks: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
