package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/ask4sham/letsrevise-attempts/internal/auth"
	"github.com/ask4sham/letsrevise-attempts/internal/services"
	"github.com/ask4sham/letsrevise-attempts/internal/utils"
	"github.com/gin-gonic/gin"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response. Code is stable and meant for
// clients to branch on.
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

// LogRequest logs incoming HTTP requests with context information
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"remote_addr", c.ClientIP(),
		"request_id", requestID(c),
		"user_id", h.extractUserID(c),
	}
	fields = append(fields, additionalFields...)

	h.logger.Info(message, fields...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"request_id", requestID(c),
		"user_id", h.extractUserID(c),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	fields = append(fields, additionalFields...)

	h.logger.LogError(err, message, fields...)
}

func (h *BaseHandler) LogWarn(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := []interface{}{
		"request_id", requestID(c),
		"user_id", h.extractUserID(c),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
	fields = append(fields, additionalFields...)

	h.logger.Warn(message, fields...)
}

// Helper method to extract user ID from context
func (h *BaseHandler) extractUserID(c *gin.Context) interface{} {
	if userID, exists := c.Get("user_id"); exists {
		return userID
	}
	return nil
}

// identity aborts with 401 when the auth middleware did not run.
func (h *BaseHandler) identity(c *gin.Context) (services.Identity, bool) {
	id, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
			Code:    CodeUnauthorized,
		})
		return services.Identity{}, false
	}
	return id, true
}

// bindJSON writes a 400 and returns false when the body cannot be decoded.
func (h *BaseHandler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.rejectPayload(c, err)
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints where an empty body, chunked or
// not, leaves req at its zero value.
func (h *BaseHandler) bindOptionalJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		h.rejectPayload(c, err)
		return false
	}
	return true
}

func (h *BaseHandler) rejectPayload(c *gin.Context, err error) {
	h.LogWarn(c, "Invalid request payload", "error", err.Error())
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Message: "Invalid request payload",
		Details: err.Error(),
		Code:    CodeInvalidRequest,
	})
}

func requestID(c *gin.Context) string {
	if id := c.Writer.Header().Get(utils.RequestIDHeader); id != "" {
		return id
	}
	return c.GetHeader(utils.RequestIDHeader)
}
