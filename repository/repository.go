package repository

import (
	"context"
	"errors"
	"time"
)

// Node represents a single record in a nested set tree (categories, ATC codes).
// The quintuple (TreeID, Left, Right, Level, ParentID) encodes the node's
// position: every descendant D of N satisfies N.Left < D.Left < D.Right < N.Right,
// and Level is the depth from the tree root (root level is 0).
type Node struct {
	ID          int64
	ParentID    *int64 // nil for root nodes
	TreeID      int64  // partition key; one value per independent tree
	Left        int64
	Right       int64
	Level       int
	Name        string
	Slug        string
	Code        string // ATC classification code, empty for plain categories
	Description string
	Status      string
	CreatedBy   string
	UpdatedBy   string
	DeletedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time // soft-delete tombstone; coordinates stay intact
}

// Width returns the nested set width of the node's subtree.
// It is always twice the number of nodes in the subtree.
func (n *Node) Width() int64 {
	return n.Right - n.Left + 1
}

// IsLeaf reports whether the node has no descendants.
func (n *Node) IsLeaf() bool {
	return n.Right == n.Left+1
}

// Contains reports whether other lies strictly inside n's interval,
// i.e. other is a descendant of n.
func (n *Node) Contains(other *Node) bool {
	return n.TreeID == other.TreeID && n.Left < other.Left && other.Right < n.Right
}

// TreeRepository defines the storage contract for one nested set forest.
// Reads are plain interval queries; every method that changes Left/Right/
// Level/TreeID/ParentID runs inside a single transaction serialized per
// tree, so callers never observe a partially shifted tree.
type TreeRepository interface {
	// GetNode retrieves a node by its ID.
	// Returns ErrNodeNotFound if no node exists with the given ID.
	GetNode(ctx context.Context, id int64) (*Node, error)

	// GetChildren retrieves the direct children of the given node,
	// ordered by their left coordinate. A leaf or unknown parent yields
	// an empty slice; callers that need to distinguish the two cases
	// should check existence with GetNode first.
	GetChildren(ctx context.Context, parentID int64) ([]*Node, error)

	// GetRoots retrieves every node without a parent, one per tree.
	GetRoots(ctx context.Context) ([]*Node, error)

	// GetSubtree retrieves the node with the given ID and all of its
	// descendants, ordered by left coordinate. The root is included.
	// Returns ErrNodeNotFound if the root does not exist.
	GetSubtree(ctx context.Context, rootID int64) ([]*Node, error)

	// GetAncestors retrieves the chain of ancestors of the given node
	// ordered root-first. The node itself is not included.
	// Returns ErrNodeNotFound if the node does not exist.
	GetAncestors(ctx context.Context, id int64) ([]*Node, error)

	// GetChildCount counts the direct children of the given node as a
	// single aggregate, without fetching the subtree.
	GetChildCount(ctx context.Context, parentID int64) (int64, error)

	// InsertRoot creates the given node as the root of a brand new tree.
	// A fresh TreeID is allocated and the coordinates are set to
	// (Left=1, Right=2, Level=0). The assigned ID is returned.
	InsertRoot(ctx context.Context, node *Node) (int64, error)

	// AppendChild creates the given node as the last child of parentID.
	// Every coordinate at or after the parent's right boundary is shifted
	// by two to open the gap the child occupies.
	// Returns ErrParentNotFound if the parent does not exist.
	AppendChild(ctx context.Context, parentID int64, node *Node) (int64, error)

	// MoveSubtree relocates the subtree rooted at id under newParentID,
	// or promotes it to the root of a new tree when newParentID is nil.
	// Relative coordinates and levels inside the subtree are preserved.
	// Returns ErrInvalidMove if the target is the node itself or one of
	// its descendants, ErrNodeNotFound if either ID is unknown.
	MoveSubtree(ctx context.Context, id int64, newParentID *int64) error

	// DeleteSubtree removes the node with the given ID together with its
	// full descendant set and closes the coordinate gap left behind.
	// Returns ErrNodeNotFound if the node does not exist.
	DeleteSubtree(ctx context.Context, id int64) error

	// UpdateNode updates the payload attributes of a node (name, slug,
	// code, description, status, updated_by). Coordinates are untouched.
	// Returns ErrNodeNotFound if the node does not exist.
	UpdateNode(ctx context.Context, id int64, node *Node) error

	// SoftDeleteNode sets the soft-delete tombstone on a node without
	// touching the tree structure. The node stays structurally present
	// until DeleteSubtree removes it for real.
	SoftDeleteNode(ctx context.Context, id int64, deletedBy string) error

	// Rebuild recomputes Left/Right/Level for the whole tree from the
	// ParentID links alone. It exists for operational recovery when the
	// coordinates are suspected corrupted; normal operation never needs it.
	Rebuild(ctx context.Context, treeID int64) error
}

// Medicine represents a medicine record. Hierarchy does not apply here;
// medicines reference categories and ATC codes through pivot tables.
type Medicine struct {
	ID          int64
	Name        string
	Slug        string
	GenericName string
	Status      string
	Description string
	CategoryIDs []int64
	ATCCodeIDs  []int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Strength represents one dosage strength of a medicine.
type Strength struct {
	ID                  int64
	MedicineID          int64
	DoseFormID          int64
	ConcentrationAmount string
	ConcentrationUnit   string
	VolumeAmount        string
	VolumeUnit          string
	ChemicalForm        string
	Description         string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// DoseForm represents a dose form (tablet, syrup, ...).
type DoseForm struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MedicineRepository defines data access for medicines and their strengths.
type MedicineRepository interface {
	// CreateMedicine stores a new medicine along with its category and
	// ATC code associations and returns the assigned ID.
	CreateMedicine(ctx context.Context, m *Medicine) (int64, error)

	// GetMedicine retrieves a medicine with its association IDs loaded.
	// Returns ErrNodeNotFound if no medicine exists with the given ID.
	GetMedicine(ctx context.Context, id int64) (*Medicine, error)

	// ListMedicines retrieves one page of medicines ordered by ID and
	// the total count of medicines.
	ListMedicines(ctx context.Context, page, pageSize int) ([]*Medicine, int64, error)

	// UpdateMedicine replaces the payload and associations of a medicine.
	UpdateMedicine(ctx context.Context, id int64, m *Medicine) error

	// DeleteMedicine removes a medicine and its strengths and pivot rows.
	DeleteMedicine(ctx context.Context, id int64) error

	// AddStrength stores a new strength under the given medicine.
	AddStrength(ctx context.Context, medicineID int64, s *Strength) (int64, error)

	// ListStrengths retrieves all strengths of a medicine ordered by ID.
	ListStrengths(ctx context.Context, medicineID int64) ([]*Strength, error)

	// DeleteStrength removes a single strength.
	DeleteStrength(ctx context.Context, id int64) error
}

// DoseFormRepository defines data access for dose forms.
type DoseFormRepository interface {
	CreateDoseForm(ctx context.Context, d *DoseForm) (int64, error)
	GetDoseForm(ctx context.Context, id int64) (*DoseForm, error)
	ListDoseForms(ctx context.Context) ([]*DoseForm, error)
	UpdateDoseForm(ctx context.Context, id int64, d *DoseForm) error
	DeleteDoseForm(ctx context.Context, id int64) error
}

// Backend is the full storage surface main wires up: lifecycle plus the
// per-entity repositories, all sharing one connection.
type Backend interface {
	Initialize(ctx context.Context) error
	Cleanup(ctx context.Context) error
	Categories() TreeRepository
	ATCCodes() TreeRepository
	Medicines() MedicineRepository
	DoseForms() DoseFormRepository
}

// Common errors
var (
	// ErrNodeNotFound is returned when a requested record does not exist
	ErrNodeNotFound = errors.New("node not found")
	// ErrParentNotFound is returned when the referenced parent does not exist
	ErrParentNotFound = errors.New("parent node not found")
	// ErrInvalidMove is returned when a move would make a node its own ancestor
	ErrInvalidMove = errors.New("invalid move: target is inside the moved subtree")
	// ErrIntegrityViolation is returned when a post-mutation invariant check fails
	ErrIntegrityViolation = errors.New("nested set integrity violation")
	// ErrInvalidInput is returned when the input parameters are invalid
	ErrInvalidInput = errors.New("invalid input")
)
