package handlers

import (
	"errors"
	"net/http"

	"github.com/ask4sham/letsrevise-attempts/internal/services"
	"github.com/gin-gonic/gin"
)

// Machine readable error codes.
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeSubscriptionRequired = "SUBSCRIPTION_REQUIRED"
	CodePaperNotFound        = "PAPER_NOT_FOUND"
	CodeQuestionNotFound     = "QUESTION_NOT_FOUND"
	CodeAttemptNotFound      = "ATTEMPT_NOT_FOUND"
	CodeNotFound             = "NOT_FOUND"
	CodeAttemptNotActive     = "ATTEMPT_NOT_ACTIVE"
	CodeAttemptNotSubmitted  = "ATTEMPT_NOT_SUBMITTED"
	CodeConflict             = "CONFLICT"
	CodeInternal             = "INTERNAL_ERROR"
)

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	// Handle custom error types first
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
			Code:    CodeValidationFailed,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
			},
			Code: CodeForbidden,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrSubscriptionRequired):
		c.JSON(http.StatusPaymentRequired, ErrorResponse{
			Message: "An active subscription is required",
			Code:    CodeSubscriptionRequired,
		})
	case errors.Is(err, services.ErrAttemptNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt is no longer in progress",
			Code:    CodeAttemptNotActive,
		})
	case errors.Is(err, services.ErrAttemptNotSubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt has not been submitted yet",
			Code:    CodeAttemptNotSubmitted,
		})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Resource conflict",
			Code:    CodeConflict,
		})
	case errors.Is(err, services.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Attempt not found",
			Code:    CodeAttemptNotFound,
		})
	case errors.Is(err, services.ErrPaperNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Assessment paper not found",
			Code:    CodePaperNotFound,
		})
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question is not part of this paper",
			Details: err.Error(),
			Code:    CodeQuestionNotFound,
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Resource not found",
			Code:    CodeNotFound,
		})
	// Generic errors
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
			Code:    CodeValidationFailed,
		})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "Unauthorized access",
			Code:    CodeUnauthorized,
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Forbidden - insufficient permissions",
			Code:    CodeForbidden,
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
			Code:    CodeInternal,
		})
	}
}
