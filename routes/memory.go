package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"medical-rag-platform/models"
)

// ConversationStore exposes stored conversation turns.
type ConversationStore interface {
	History(ctx context.Context, conversationID string) ([]models.Turn, error)
	ClearConversation(ctx context.Context, conversationID string) error
}

func SetupMemoryRoutes(router *gin.Engine, store ConversationStore, apiKey gin.HandlerFunc) {
	mem := router.Group("/api/memory")

	mem.DELETE("/:conversation_id", func(c *gin.Context) {
		if err := store.ClearConversation(c.Request.Context(), c.Param("conversation_id")); err != nil {
			respondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cleared"})
	})

	mem.GET("/:conversation_id", apiKey, func(c *gin.Context) {
		id := c.Param("conversation_id")
		turns, err := store.History(c.Request.Context(), id)
		if err != nil {
			respondWithServiceError(c, err)
			return
		}
		if turns == nil {
			turns = []models.Turn{}
		}
		c.JSON(http.StatusOK, gin.H{"conversation_id": id, "turns": turns})
	})
}
