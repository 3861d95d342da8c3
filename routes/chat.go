package routes

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"medical-rag-platform/models"
	"medical-rag-platform/utils"
)

// ChatHandler answers questions within a conversation.
type ChatHandler interface {
	Ask(ctx context.Context, conversationID, message string) (*models.ChatResponse, error)
	Stream(ctx context.Context, conversationID, message string) (<-chan models.StreamEvent, error)
}

func SetupChatRoutes(router *gin.Engine, chat ChatHandler, apiKey gin.HandlerFunc) {
	api := router.Group("/api/chat")
	api.Use(apiKey)
	api.POST("", handleChat(chat, true))

	// Top-level endpoints used by the bundled frontend
	router.POST("/chat", handleChat(chat, false))
	router.POST("/new_chat", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"conversation_id": uuid.NewString()})
	})
}

// handleChat answers a ChatRequest. A missing conversation id is assigned
// and echoed back so the caller can continue the conversation.
func handleChat(chat ChatHandler, allowStream bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithInvalidInput(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if req.ConversationID == "" {
			req.ConversationID = uuid.NewString()
		}

		if allowStream && c.Query("stream") == "true" {
			streamChat(c, chat, req)
			return
		}

		ctx, cancel := utils.WithChatTimeout(c.Request.Context())
		defer cancel()

		resp, err := chat.Ask(ctx, req.ConversationID, req.Message)
		if err != nil {
			respondWithServiceError(c, err)
			return
		}
		resp.ConversationID = req.ConversationID
		c.JSON(http.StatusOK, resp)
	}
}

// streamChat relays stream events as server-sent events named after the
// event type. A client disconnect cancels the request context, which stops
// generation.
func streamChat(c *gin.Context, chat ChatHandler, req models.ChatRequest) {
	events, err := chat.Stream(c.Request.Context(), req.ConversationID, req.Message)
	if err != nil {
		respondWithServiceError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Header("X-Conversation-ID", req.ConversationID)
	c.Stream(func(io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(ev.Type, ev)
		return true
	})
}
