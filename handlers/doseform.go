package handlers

import (
	"errors"
	"net/http"

	"github.com/ammiranda/medicine_service/models"
	"github.com/ammiranda/medicine_service/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DoseFormHandler handles dose form HTTP requests
type DoseFormHandler struct {
	repo   repository.DoseFormRepository
	logger *zap.Logger
}

// NewDoseFormHandler creates a new DoseFormHandler instance
func NewDoseFormHandler(repo repository.DoseFormRepository, logger *zap.Logger) *DoseFormHandler {
	return &DoseFormHandler{
		repo:   repo,
		logger: logger,
	}
}

func toDoseFormResponse(d *repository.DoseForm) *models.DoseFormResponse {
	return &models.DoseFormResponse{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
	}
}

// CreateDoseForm creates a new dose form
func (h *DoseFormHandler) CreateDoseForm(c *gin.Context) {
	var req models.CreateDoseFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	form := &repository.DoseForm{
		Name:        req.Name,
		Description: req.Description,
	}
	id, err := h.repo.CreateDoseForm(c.Request.Context(), form)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("create dose form failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	form.ID = id
	c.JSON(http.StatusCreated, toDoseFormResponse(form))
}

// GetDoseForm retrieves one dose form
func (h *DoseFormHandler) GetDoseForm(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	form, err := h.repo.GetDoseForm(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "dose form not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toDoseFormResponse(form))
}

// ListDoseForms retrieves all dose forms
func (h *DoseFormHandler) ListDoseForms(c *gin.Context) {
	forms, err := h.repo.ListDoseForms(c.Request.Context())
	if err != nil {
		h.logger.Error("list dose forms failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	responses := make([]*models.DoseFormResponse, 0, len(forms))
	for _, f := range forms {
		responses = append(responses, toDoseFormResponse(f))
	}
	c.JSON(http.StatusOK, responses)
}

// UpdateDoseForm updates a dose form
func (h *DoseFormHandler) UpdateDoseForm(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateDoseFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	form := &repository.DoseForm{
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.repo.UpdateDoseForm(c.Request.Context(), id, form); err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "dose form not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// DeleteDoseForm removes a dose form
func (h *DoseFormHandler) DeleteDoseForm(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteDoseForm(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "dose form not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
