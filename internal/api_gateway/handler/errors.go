package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mortgage-deed-signing/internal/api_gateway/middleware"
	"github.com/mortgage-deed-signing/internal/domain/shared"
)

// respondError maps workflow errors to their HTTP status and stable code.
// Anything without a code is logged and reported as an internal error.
func respondError(c *gin.Context, logger *slog.Logger, err error, msg string) {
	var coded shared.CodedError
	if !errors.As(err, &coded) {
		logger.Error(msg, "correlation_id", middleware.GetCorrelationID(c), "error", err)
		RespondInternalError(c)
		return
	}

	switch coded.Code() {
	case shared.CodeInvalidState:
		RespondWithError(c, http.StatusConflict, string(coded.Code()), coded.Error())
	case shared.CodeForbidden:
		RespondWithError(c, http.StatusForbidden, string(coded.Code()), coded.Error())
	case shared.CodeNotFound:
		RespondWithError(c, http.StatusNotFound, string(coded.Code()), coded.Error())
	case shared.CodeValidation:
		RespondWithError(c, http.StatusBadRequest, string(coded.Code()), coded.Error())
	case shared.CodeStorage:
		logger.Error(msg, "correlation_id", middleware.GetCorrelationID(c), "error", err)
		RespondWithError(c, http.StatusInternalServerError, string(coded.Code()), "The operation could not be completed, please retry")
	default:
		logger.Error(msg, "correlation_id", middleware.GetCorrelationID(c), "error", err)
		RespondInternalError(c)
	}
}
