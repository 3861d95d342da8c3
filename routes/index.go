package routes

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"medical-rag-platform/internal/config"
	"medical-rag-platform/internal/logger"
	"medical-rag-platform/internal/queue"
	"medical-rag-platform/models"
	"medical-rag-platform/utils"
)

// Indexer maintains the vector index over the document folder.
type Indexer interface {
	Index(ctx context.Context, folder string) (int, error)
	ListSources(ctx context.Context) ([]models.SourceSummary, error)
	DeleteSource(ctx context.Context, source string) (*models.DeleteResult, error)
}

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type indexRoutes struct {
	cfg     *config.Config
	indexer Indexer
	tasks   TaskEnqueuer
}

// SetupIndexRoutes registers upload, re-index and source management. tasks
// may be nil, in which case indexing always runs in the request.
func SetupIndexRoutes(router *gin.Engine, cfg *config.Config, indexer Indexer, tasks TaskEnqueuer, apiKey gin.HandlerFunc) {
	h := &indexRoutes{cfg: cfg, indexer: indexer, tasks: tasks}

	index := router.Group("/api/index")
	index.Use(apiKey)
	index.POST("/upload", h.upload)
	index.POST("/reindex", h.reindex)
	index.GET("/sources", h.listSources)
	index.DELETE("/sources", h.deleteSource)

	router.POST("/upload_pdf", h.upload)
	router.Static("/files", cfg.PDFDir)
}

func (h *indexRoutes) upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("pdf")
	if err != nil {
		// the original frontend posts the file as "file"
		file, header, err = c.Request.FormFile("file")
	}
	if err != nil {
		utils.RespondWithBadRequest(c, "No PDF file provided", nil)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type", "Only PDF files are allowed", nil)
		return
	}
	if header.Size > h.cfg.MaxFileSize {
		utils.RespondWithError(c, http.StatusBadRequest, "file_too_large", "File size exceeds maximum limit",
			gin.H{"max_size": h.cfg.MaxFileSize})
		return
	}

	// Basic PDF header validation without loading whole file
	magic := make([]byte, 4)
	if _, err := io.ReadFull(file, magic); err != nil || string(magic) != "%PDF" {
		utils.RespondWithError(c, http.StatusBadRequest, "invalid_pdf", "File does not appear to be a valid PDF", nil)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		utils.RespondWithInternalError(c, "Failed to reset file for saving", nil)
		return
	}

	if err := saveUpload(h.cfg.PDFDir, name, io.LimitReader(file, h.cfg.MaxFileSize)); err != nil {
		logger.Error("Failed to save upload", "file", name, "error", err)
		utils.RespondWithInternalError(c, "Failed to save file", nil)
		return
	}
	logger.Info("PDF uploaded", "file", name, "size", header.Size)

	h.indexFolder(c, "PDF uploaded and indexed successfully")
}

// saveUpload writes the upload next to its final name and renames it into
// place so the loader never sees a partial file.
func saveUpload(dir, name string, src io.Reader) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}

func (h *indexRoutes) reindex(c *gin.Context) {
	h.indexFolder(c, "Re-index completed")
}

// indexFolder indexes PDF_DIR in the request, or hands it to the worker
// when async indexing is enabled.
func (h *indexRoutes) indexFolder(c *gin.Context, message string) {
	if h.cfg.AsyncIndexing && h.tasks != nil {
		task, err := queue.NewIndexFolderTask(h.cfg.PDFDir)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create indexing task", nil)
			return
		}
		info, err := h.tasks.EnqueueContext(c.Request.Context(), task)
		if err != nil {
			logger.Error("Failed to enqueue indexing task", "error", err)
			utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_error", "Failed to enqueue indexing task", nil)
			return
		}
		c.JSON(http.StatusAccepted, models.IndexResponse{TaskID: info.ID, Message: "Indexing scheduled"})
		return
	}

	ctx, cancel := utils.WithIndexTimeout(c.Request.Context())
	defer cancel()

	n, err := h.indexer.Index(ctx, h.cfg.PDFDir)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.IndexResponse{IndexedChunks: n, Message: message})
}

func (h *indexRoutes) listSources(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	sources, err := h.indexer.ListSources(ctx)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources, "total": len(sources)})
}

func (h *indexRoutes) deleteSource(c *gin.Context) {
	source := c.Query("source")
	if source == "" {
		utils.RespondWithInvalidInput(c, "Query parameter 'source' is required", nil)
		return
	}

	ctx, cancel := utils.WithIndexTimeout(c.Request.Context())
	defer cancel()

	res, err := h.indexer.DeleteSource(ctx, source)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
