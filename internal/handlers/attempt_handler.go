package handlers

import (
	"fmt"
	"net/http"

	"github.com/ask4sham/letsrevise-attempts/internal/services"
	"github.com/ask4sham/letsrevise-attempts/internal/utils"
	"github.com/gin-gonic/gin"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// StartAttempt starts a new attempt or resumes the caller's in-progress one
// @Summary Start or resume attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param request body services.StartAttemptRequest true "Paper to attempt"
// @Success 200 {object} services.AttemptResponse
// @Failure 402 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessment-attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	var req services.StartAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Starting attempt", "paper_id", req.PaperID)

	attempt, err := h.attemptService.StartOrResume(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetInProgress returns the caller's active attempt for a paper
// @Router /assessment-attempts/in-progress/{paper_id} [get]
func (h *AttemptHandler) GetInProgress(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	paperID := ParseStringIDParam(c, "paper_id")
	if paperID == "" {
		return
	}

	attempt, err := h.attemptService.GetInProgress(c.Request.Context(), id, paperID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// RecordAnswer saves one answer and advances the time used
// @Summary Record answer
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param request body services.RecordAnswerRequest true "Answer"
// @Success 200 {object} services.AckResponse
// @Failure 409 {object} ErrorResponse
// @Router /assessment-attempts/{id}/answers [put]
func (h *AttemptHandler) RecordAnswer(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	var req services.RecordAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ack, err := h.attemptService.RecordAnswer(c.Request.Context(), id, attemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ack)
}

// Heartbeat reports elapsed time without an answer
// @Router /assessment-attempts/{id}/heartbeat [post]
func (h *AttemptHandler) Heartbeat(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	var req services.HeartbeatRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ack, err := h.attemptService.Heartbeat(c.Request.Context(), id, attemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ack)
}

// SubmitAttempt finalizes and scores an attempt
// @Summary Submit attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param request body services.SubmitAttemptRequest false "Submission"
// @Success 200 {object} services.AttemptResponse
// @Router /assessment-attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	var req services.SubmitAttemptRequest
	// An empty body is a manual submit.
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID, "auto_submitted", req.AutoSubmitted)

	attempt, err := h.attemptService.Submit(c.Request.Context(), id, attemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetResults returns the scored breakdown of a submitted attempt
// @Router /assessment-attempts/{id}/results [get]
func (h *AttemptHandler) GetResults(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	results, err := h.attemptService.GetResults(c.Request.Context(), id, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// ExportResults downloads the results as an Excel workbook
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /assessment-attempts/{id}/results/export [get]
func (h *AttemptHandler) ExportResults(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	file, err := h.attemptService.ExportResults(c.Request.Context(), id, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// GetAttempt returns one attempt with its answers
// @Router /assessment-attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	attemptID := ParseStringIDParam(c, "id")
	if attemptID == "" {
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), id, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// ListAttempts lists the caller's attempts
// @Param paper_id query string false "Filter by paper"
// @Param status query string false "in_progress or submitted"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Router /assessment-attempts [get]
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}

	var req services.ListAttemptsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
			Code:    CodeInvalidRequest,
		})
		return
	}

	list, err := h.attemptService.List(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}
