package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ammiranda/medicine_service/models"
	"github.com/ammiranda/medicine_service/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MedicineHandler handles medicine and strength HTTP requests
type MedicineHandler struct {
	repo   repository.MedicineRepository
	logger *zap.Logger
}

// NewMedicineHandler creates a new MedicineHandler instance
func NewMedicineHandler(repo repository.MedicineRepository, logger *zap.Logger) *MedicineHandler {
	return &MedicineHandler{
		repo:   repo,
		logger: logger,
	}
}

func toMedicineResponse(m *repository.Medicine) *models.MedicineResponse {
	return &models.MedicineResponse{
		ID:          m.ID,
		Name:        m.Name,
		Slug:        m.Slug,
		GenericName: m.GenericName,
		Status:      m.Status,
		Description: m.Description,
		CategoryIDs: m.CategoryIDs,
		ATCCodeIDs:  m.ATCCodeIDs,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// CreateMedicine creates a new medicine
func (h *MedicineHandler) CreateMedicine(c *gin.Context) {
	var req models.CreateMedicineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slug := req.Slug
	if slug == "" {
		slug = models.Slugify(req.Name)
	}
	status := req.Status
	if status == "" {
		status = "active"
	}
	medicine := &repository.Medicine{
		Name:        req.Name,
		Slug:        slug,
		GenericName: req.GenericName,
		Status:      status,
		Description: req.Description,
		CategoryIDs: req.CategoryIDs,
		ATCCodeIDs:  req.ATCCodeIDs,
	}

	id, err := h.repo.CreateMedicine(c.Request.Context(), medicine)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("create medicine failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	medicine.ID = id
	c.JSON(http.StatusCreated, toMedicineResponse(medicine))
}

// GetMedicine retrieves one medicine
func (h *MedicineHandler) GetMedicine(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	medicine, err := h.repo.GetMedicine(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "medicine not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toMedicineResponse(medicine))
}

// ListMedicines retrieves one page of medicines
func (h *MedicineHandler) ListMedicines(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	medicines, total, err := h.repo.ListMedicines(c.Request.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("list medicines failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]*models.MedicineResponse, 0, len(medicines))
	for _, m := range medicines {
		items = append(items, toMedicineResponse(m))
	}
	c.JSON(http.StatusOK, &models.MedicineListResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// UpdateMedicine replaces a medicine's payload and associations
func (h *MedicineHandler) UpdateMedicine(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateMedicineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slug := req.Slug
	if slug == "" {
		slug = models.Slugify(req.Name)
	}
	status := req.Status
	if status == "" {
		status = "active"
	}
	medicine := &repository.Medicine{
		Name:        req.Name,
		Slug:        slug,
		GenericName: req.GenericName,
		Status:      status,
		Description: req.Description,
		CategoryIDs: req.CategoryIDs,
		ATCCodeIDs:  req.ATCCodeIDs,
	}

	if err := h.repo.UpdateMedicine(c.Request.Context(), id, medicine); err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "medicine not found"})
			return
		}
		if errors.Is(err, repository.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// DeleteMedicine removes a medicine with its strengths and associations
func (h *MedicineHandler) DeleteMedicine(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.DeleteMedicine(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "medicine not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func toStrengthResponse(s *repository.Strength) *models.StrengthResponse {
	return &models.StrengthResponse{
		ID:                  s.ID,
		MedicineID:          s.MedicineID,
		DoseFormID:          s.DoseFormID,
		ConcentrationAmount: s.ConcentrationAmount,
		ConcentrationUnit:   s.ConcentrationUnit,
		VolumeAmount:        s.VolumeAmount,
		VolumeUnit:          s.VolumeUnit,
		ChemicalForm:        s.ChemicalForm,
		Description:         s.Description,
	}
}

// AddStrength adds a dosage strength to a medicine
func (h *MedicineHandler) AddStrength(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.CreateStrengthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.repo.GetMedicine(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "medicine not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	strength := &repository.Strength{
		MedicineID:          id,
		DoseFormID:          req.DoseFormID,
		ConcentrationAmount: req.ConcentrationAmount,
		ConcentrationUnit:   req.ConcentrationUnit,
		VolumeAmount:        req.VolumeAmount,
		VolumeUnit:          req.VolumeUnit,
		ChemicalForm:        req.ChemicalForm,
		Description:         req.Description,
	}
	strengthID, err := h.repo.AddStrength(ctx, id, strength)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	strength.ID = strengthID
	c.JSON(http.StatusCreated, toStrengthResponse(strength))
}

// ListStrengths retrieves all strengths of a medicine
func (h *MedicineHandler) ListStrengths(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.repo.GetMedicine(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "medicine not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	strengths, err := h.repo.ListStrengths(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	responses := make([]*models.StrengthResponse, 0, len(strengths))
	for _, s := range strengths {
		responses = append(responses, toStrengthResponse(s))
	}
	c.JSON(http.StatusOK, responses)
}

// DeleteStrength removes one strength
func (h *MedicineHandler) DeleteStrength(c *gin.Context) {
	strengthID, ok := parseIDParam(c, "strengthId")
	if !ok {
		return
	}
	if err := h.repo.DeleteStrength(c.Request.Context(), strengthID); err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "strength not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
