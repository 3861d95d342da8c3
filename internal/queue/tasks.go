package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"medical-rag-platform/internal/logger"
)

const (
	TaskIndexFolder = "index:folder"

	// QueueCritical carries indexing work triggered by uploads.
	QueueCritical = "critical"
)

type IndexFolderPayload struct {
	Folder      string    `json:"folder"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewIndexFolderTask builds a task that runs an incremental index pass over
// folder. Re-running it is safe since unchanged chunks are skipped.
func NewIndexFolderTask(folder string) (*asynq.Task, error) {
	payload, err := json.Marshal(IndexFolderPayload{
		Folder:      folder,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexFolder,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
		asynq.Queue(QueueCritical),
	), nil
}

// FolderIndexer runs one incremental indexing pass over a folder.
type FolderIndexer interface {
	Index(ctx context.Context, folder string) (int, error)
}

// Task handlers
type TaskProcessor struct {
	indexer FolderIndexer
}

func NewTaskProcessor(indexer FolderIndexer) *TaskProcessor {
	return &TaskProcessor{indexer: indexer}
}

// Register wires every handler into mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskIndexFolder, p.ProcessIndexFolder)
}

func (p *TaskProcessor) ProcessIndexFolder(ctx context.Context, t *asynq.Task) error {
	var payload IndexFolderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	if payload.Folder == "" {
		return fmt.Errorf("empty folder: %w", asynq.SkipRetry)
	}

	log := logger.With("task", t.Type(), "folder", payload.Folder)
	log.Info("Indexing folder", "queued_for", time.Since(payload.RequestedAt).String())

	n, err := p.indexer.Index(ctx, payload.Folder)
	if err != nil {
		// retried by asynq
		log.Error("Folder indexing failed", "indexed", n, "error", err)
		return err
	}

	log.Info("Folder indexed", "chunks", n)
	return nil
}
