package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"medical-rag-platform/internal/logger"
)

const reindexTag = "reindex"

// FolderIndexer runs one incremental indexing pass over a folder.
type FolderIndexer interface {
	Index(ctx context.Context, folder string) (int, error)
}

// ReindexScheduler periodically re-ingests a folder. Runs never overlap; a
// tick that arrives while a run is in progress is skipped.
type ReindexScheduler struct {
	scheduler *gocron.Scheduler
	indexer   FolderIndexer
	folder    string
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewReindexScheduler(indexer FolderIndexer, folder string, interval time.Duration) (*ReindexScheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("reindex interval must be positive, got %s", interval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()

	r := &ReindexScheduler{
		scheduler: s,
		indexer:   indexer,
		folder:    folder,
		ctx:       ctx,
		cancel:    cancel,
	}
	if _, err := s.Every(interval).Tag(reindexTag).Do(r.run); err != nil {
		cancel()
		return nil, fmt.Errorf("schedule reindex: %w", err)
	}
	return r, nil
}

func (r *ReindexScheduler) run() {
	start := time.Now()
	n, err := r.indexer.Index(r.ctx, r.folder)
	if err != nil {
		logger.Error("Scheduled re-index failed", "folder", r.folder, "error", err)
		return
	}
	logger.Info("Scheduled re-index finished", "folder", r.folder, "chunks", n, "took", time.Since(start).String())
}

// Start runs the first pass immediately and then one per interval.
func (r *ReindexScheduler) Start() {
	r.scheduler.StartAsync()
}

// Stop halts scheduling and cancels a run in progress.
func (r *ReindexScheduler) Stop() {
	r.cancel()
	r.scheduler.Stop()
}
