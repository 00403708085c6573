package models

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CreateNodeRequest represents the request body for creating a tree node.
// A nil ParentID creates the root of a new tree.
type CreateNodeRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Slug        string `json:"slug" validate:"omitempty,max=200"`
	Code        string `json:"code" validate:"omitempty,max=20"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Status      string `json:"status" validate:"omitempty,oneof=active inactive draft"`
	ParentID    *int64 `json:"parentId,omitempty" validate:"omitempty,gt=0"`
	CreatedBy   string `json:"createdBy" validate:"omitempty,max=100"`
}

// UpdateNodeRequest represents the request body for updating a node's
// payload attributes. Position is changed through MoveNodeRequest only.
type UpdateNodeRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Slug        string `json:"slug" validate:"omitempty,max=200"`
	Code        string `json:"code" validate:"omitempty,max=20"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Status      string `json:"status" validate:"omitempty,oneof=active inactive draft"`
	UpdatedBy   string `json:"updatedBy" validate:"omitempty,max=100"`
}

// MoveNodeRequest represents the request body for relocating a subtree.
// A nil NewParentID promotes the subtree to the root of a new tree.
type MoveNodeRequest struct {
	NewParentID *int64 `json:"newParentId,omitempty" validate:"omitempty,gt=0"`
}

// DeleteNodeRequest carries the optional actor for a soft delete.
type DeleteNodeRequest struct {
	DeletedBy string `json:"deletedBy" validate:"omitempty,max=100"`
}

// CreateMedicineRequest represents the request body for creating a medicine
type CreateMedicineRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=200"`
	Slug        string  `json:"slug" validate:"omitempty,max=200"`
	GenericName string  `json:"genericName" validate:"omitempty,max=200"`
	Status      string  `json:"status" validate:"omitempty,oneof=active inactive draft"`
	Description string  `json:"description" validate:"omitempty,max=2000"`
	CategoryIDs []int64 `json:"categoryIds" validate:"omitempty,dive,gt=0"`
	ATCCodeIDs  []int64 `json:"atcCodeIds" validate:"omitempty,dive,gt=0"`
}

// UpdateMedicineRequest represents the request body for updating a medicine
type UpdateMedicineRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=200"`
	Slug        string  `json:"slug" validate:"omitempty,max=200"`
	GenericName string  `json:"genericName" validate:"omitempty,max=200"`
	Status      string  `json:"status" validate:"omitempty,oneof=active inactive draft"`
	Description string  `json:"description" validate:"omitempty,max=2000"`
	CategoryIDs []int64 `json:"categoryIds" validate:"omitempty,dive,gt=0"`
	ATCCodeIDs  []int64 `json:"atcCodeIds" validate:"omitempty,dive,gt=0"`
}

// CreateStrengthRequest represents the request body for adding a strength
type CreateStrengthRequest struct {
	DoseFormID          int64  `json:"doseFormId" validate:"required,gt=0"`
	ConcentrationAmount string `json:"concentrationAmount" validate:"omitempty,max=50"`
	ConcentrationUnit   string `json:"concentrationUnit" validate:"omitempty,max=50"`
	VolumeAmount        string `json:"volumeAmount" validate:"omitempty,max=50"`
	VolumeUnit          string `json:"volumeUnit" validate:"omitempty,max=50"`
	ChemicalForm        string `json:"chemicalForm" validate:"omitempty,max=100"`
	Description         string `json:"description" validate:"omitempty,max=2000"`
}

// CreateDoseFormRequest represents the request body for creating a dose form
type CreateDoseFormRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

// UpdateDoseFormRequest represents the request body for updating a dose form
type UpdateDoseFormRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

// Validate validates the create node request
func (r *CreateNodeRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the update node request
func (r *UpdateNodeRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the move node request
func (r *MoveNodeRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the delete node request
func (r *DeleteNodeRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the create medicine request
func (r *CreateMedicineRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the update medicine request
func (r *UpdateMedicineRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the create strength request
func (r *CreateStrengthRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the create dose form request
func (r *CreateDoseFormRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the update dose form request
func (r *UpdateDoseFormRequest) Validate() error {
	return validate.Struct(r)
}
