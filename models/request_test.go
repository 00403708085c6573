package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateNodeRequestValidate(t *testing.T) {
	parent := int64(3)
	valid := CreateNodeRequest{
		Name:     "Analgesics",
		Code:     "N02",
		Status:   "active",
		ParentID: &parent,
	}
	assert.NoError(t, valid.Validate())

	t.Run("name required", func(t *testing.T) {
		req := valid
		req.Name = ""
		assert.Error(t, req.Validate())
	})

	t.Run("name too long", func(t *testing.T) {
		req := valid
		req.Name = strings.Repeat("x", 201)
		assert.Error(t, req.Validate())
	})

	t.Run("unknown status", func(t *testing.T) {
		req := valid
		req.Status = "archived"
		assert.Error(t, req.Validate())
	})

	t.Run("status optional", func(t *testing.T) {
		req := valid
		req.Status = ""
		assert.NoError(t, req.Validate())
	})

	t.Run("parent id must be positive", func(t *testing.T) {
		zero := int64(0)
		req := valid
		req.ParentID = &zero
		assert.Error(t, req.Validate())
	})

	t.Run("nil parent is a root", func(t *testing.T) {
		req := valid
		req.ParentID = nil
		assert.NoError(t, req.Validate())
	})
}

func TestMoveNodeRequestValidate(t *testing.T) {
	parent := int64(7)
	assert.NoError(t, (&MoveNodeRequest{NewParentID: &parent}).Validate())
	assert.NoError(t, (&MoveNodeRequest{}).Validate())

	negative := int64(-1)
	assert.Error(t, (&MoveNodeRequest{NewParentID: &negative}).Validate())
}

func TestCreateMedicineRequestValidate(t *testing.T) {
	valid := CreateMedicineRequest{
		Name:        "Paracetamol 500mg",
		GenericName: "Paracetamol",
		CategoryIDs: []int64{1, 2},
		ATCCodeIDs:  []int64{5},
	}
	assert.NoError(t, valid.Validate())

	t.Run("name required", func(t *testing.T) {
		req := valid
		req.Name = ""
		assert.Error(t, req.Validate())
	})

	t.Run("association ids must be positive", func(t *testing.T) {
		req := valid
		req.CategoryIDs = []int64{1, 0}
		assert.Error(t, req.Validate())
	})
}

func TestCreateStrengthRequestValidate(t *testing.T) {
	valid := CreateStrengthRequest{
		DoseFormID:          2,
		ConcentrationAmount: "500",
		ConcentrationUnit:   "mg",
	}
	assert.NoError(t, valid.Validate())

	t.Run("dose form required", func(t *testing.T) {
		req := valid
		req.DoseFormID = 0
		assert.Error(t, req.Validate())
	})
}

func TestCreateDoseFormRequestValidate(t *testing.T) {
	assert.NoError(t, (&CreateDoseFormRequest{Name: "Tablet"}).Validate())
	assert.Error(t, (&CreateDoseFormRequest{}).Validate())
}
