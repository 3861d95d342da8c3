package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medical-rag-platform/internal/logger"
	"medical-rag-platform/middleware"
	"medical-rag-platform/services"
	"medical-rag-platform/utils"
)

// respondWithServiceError maps the service error taxonomy onto HTTP.
func respondWithServiceError(c *gin.Context, err error) {
	var (
		safety   *services.SafetyRejection
		upstream *services.UpstreamError
	)
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithInvalidInput(c, err.Error(), nil)

	case errors.As(err, &safety):
		utils.RespondWithError(c, http.StatusBadRequest, "safety_rejected", safety.Advisory, nil)

	case errors.As(err, &upstream):
		logger.Error("Upstream call failed", "op", upstream.Op, "error", upstream.Err, "request_id", middleware.GetRequestID(c))
		utils.RespondWithUpstreamFailure(c, "A model or index provider failed to respond", gin.H{"operation": upstream.Op})

	default:
		logger.Error("Request failed", "path", c.FullPath(), "error", err, "request_id", middleware.GetRequestID(c))
		utils.RespondWithInternalError(c, "Internal server error", nil)
	}
}
