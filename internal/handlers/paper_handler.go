package handlers

import (
	"net/http"

	"github.com/ask4sham/letsrevise-attempts/internal/services"
	"github.com/ask4sham/letsrevise-attempts/internal/utils"
	"github.com/gin-gonic/gin"
)

type PaperHandler struct {
	BaseHandler
	paperService services.PaperService
}

func NewPaperHandler(paperService services.PaperService, logger utils.Logger) *PaperHandler {
	return &PaperHandler{
		BaseHandler:  NewBaseHandler(logger),
		paperService: paperService,
	}
}

// GetPaper returns the paper as a student sees it, without answer keys
// @Summary Get paper
// @Tags papers
// @Produce json
// @Param id path string true "Paper ID"
// @Success 200 {object} services.PaperView
// @Failure 402 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessment-papers/{id} [get]
func (h *PaperHandler) GetPaper(c *gin.Context) {
	id, ok := h.identity(c)
	if !ok {
		return
	}
	paperID := ParseStringIDParam(c, "id")
	if paperID == "" {
		return
	}

	paper, err := h.paperService.GetPaper(c.Request.Context(), id, paperID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, paper)
}
