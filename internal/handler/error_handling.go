package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"film-generator/internal/authutils"
	"film-generator/internal/models"
)

// handleServiceError - единственное место превращения доменных ошибок
// в HTTP-ответы.
func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var errResp models.ErrorResponse

	switch {
	case errors.Is(err, authutils.ErrTokenExpired):
		statusCode = http.StatusUnauthorized
		errResp = models.ErrorResponse{Code: models.ErrCodeTokenExpired, Message: "Token has expired"}
	case errors.Is(err, authutils.ErrTokenInvalid), errors.Is(err, authutils.ErrTokenMalformed):
		statusCode = http.StatusUnauthorized
		errResp = models.ErrorResponse{Code: models.ErrCodeTokenInvalid, Message: "Token is invalid or malformed"}
	case errors.Is(err, models.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		errResp = models.ErrorResponse{Code: models.ErrCodeTokenInvalid, Message: "Unauthorized"}
	case errors.Is(err, models.ErrForbidden):
		statusCode = http.StatusForbidden
		errResp = models.ErrorResponse{Code: models.ErrCodeForbidden, Message: "Action requires admin privileges"}
	case errors.Is(err, models.ErrNotRequester):
		statusCode = http.StatusForbidden
		errResp = models.ErrorResponse{Code: models.ErrCodeNotRequester, Message: "Only the requesting collaborator may perform this action"}
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrJobNotFound):
		statusCode = http.StatusNotFound
		errResp = models.ErrorResponse{Code: models.ErrCodeNotFound, Message: "Resource not found"}
	case errors.Is(err, models.ErrJobAlreadyActive):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeJobActive, Message: "A job of this kind is already running for the project"}
	case errors.Is(err, models.ErrJobConflict):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeJobConflict, Message: "An equivalent job is already running"}
	case errors.Is(err, models.ErrInsufficientCredits):
		statusCode = http.StatusPaymentRequired
		errResp = models.ErrorResponse{Code: models.ErrCodeInsufficientFunds, Message: "Insufficient platform credits"}
	case errors.Is(err, models.ErrLockedResource):
		statusCode = http.StatusLocked
		errResp = models.ErrorResponse{Code: models.ErrCodeLockedResource, Message: "Artifact is locked; use a regeneration or deletion request"}
	case errors.Is(err, models.ErrAttemptsExhausted):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeAttemptsExhausted, Message: "Regeneration attempt budget exhausted; a candidate must be selected"}
	case errors.Is(err, models.ErrUnknownCandidate):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Code: models.ErrCodeUnknownCandidate, Message: "Selected url is not a generated candidate"}
	case errors.Is(err, models.ErrRequestTerminal):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeRequestTerminal, Message: "Request is already in a terminal state"}
	case errors.Is(err, models.ErrInvalidTransition):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeInvalidTransition, Message: "Invalid request state transition"}
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrBadRequest):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Code: models.ErrCodeValidation, Message: err.Error()}
	case errors.Is(err, models.ErrTransient):
		// Ретраи уже исчерпаны нижним слоем - наружу уходит 503
		statusCode = http.StatusServiceUnavailable
		errResp = models.ErrorResponse{Code: models.ErrCodeUpstreamUnavailable, Message: "Upstream service is temporarily unavailable"}
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Code: models.ErrCodeInternal, Message: "An unexpected internal error occurred"}
	}

	c.AbortWithStatusJSON(statusCode, errResp)
}
