package models

import "time"

// TreeNode is the assembled hierarchical view of a stored node. Children
// are ordered by left coordinate, which is the stored sibling order.
type TreeNode struct {
	ID          int64       `json:"id"`
	ParentID    *int64      `json:"parentId,omitempty"`
	TreeID      int64       `json:"treeId"`
	Level       int         `json:"level"`
	Name        string      `json:"name"`
	Slug        string      `json:"slug,omitempty"`
	Code        string      `json:"code,omitempty"`
	Description string      `json:"description,omitempty"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	Children    []*TreeNode `json:"children"`
}

// AddChild appends a child to the node.
func (n *TreeNode) AddChild(child *TreeNode) {
	n.Children = append(n.Children, child)
}

// NodeResponse is the flat view of a stored node, coordinates included.
type NodeResponse struct {
	ID          int64      `json:"id"`
	ParentID    *int64     `json:"parentId,omitempty"`
	TreeID      int64      `json:"treeId"`
	Left        int64      `json:"left"`
	Right       int64      `json:"right"`
	Level       int        `json:"level"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug,omitempty"`
	Code        string     `json:"code,omitempty"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	CreatedBy   string     `json:"createdBy,omitempty"`
	UpdatedBy   string     `json:"updatedBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// ChildWithCount pairs a direct child with its own child count, so list
// views can render expand arrows without fetching grandchildren.
type ChildWithCount struct {
	NodeResponse
	ChildCount int64 `json:"childCount"`
}

// MedicineResponse is the API view of a medicine.
type MedicineResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	GenericName string    `json:"genericName,omitempty"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	CategoryIDs []int64   `json:"categoryIds"`
	ATCCodeIDs  []int64   `json:"atcCodeIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MedicineListResponse is one page of medicines with the total count.
type MedicineListResponse struct {
	Items    []*MedicineResponse `json:"items"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"pageSize"`
}

// StrengthResponse is the API view of a dosage strength.
type StrengthResponse struct {
	ID                  int64  `json:"id"`
	MedicineID          int64  `json:"medicineId"`
	DoseFormID          int64  `json:"doseFormId"`
	ConcentrationAmount string `json:"concentrationAmount,omitempty"`
	ConcentrationUnit   string `json:"concentrationUnit,omitempty"`
	VolumeAmount        string `json:"volumeAmount,omitempty"`
	VolumeUnit          string `json:"volumeUnit,omitempty"`
	ChemicalForm        string `json:"chemicalForm,omitempty"`
	Description         string `json:"description,omitempty"`
}

// DoseFormResponse is the API view of a dose form.
type DoseFormResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
