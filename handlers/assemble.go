package handlers

import (
	"errors"
	"sort"

	"github.com/ammiranda/medicine_service/models"
	"github.com/ammiranda/medicine_service/repository"
)

var (
	ErrTreeNotFound = errors.New("tree not found")
)

func toTreeNode(node *repository.Node) *models.TreeNode {
	return &models.TreeNode{
		ID:          node.ID,
		ParentID:    node.ParentID,
		TreeID:      node.TreeID,
		Level:       node.Level,
		Name:        node.Name,
		Slug:        node.Slug,
		Code:        node.Code,
		Description: node.Description,
		Status:      node.Status,
		CreatedAt:   node.CreatedAt,
		UpdatedAt:   node.UpdatedAt,
		Children:    []*models.TreeNode{},
	}
}

func toNodeResponse(node *repository.Node) *models.NodeResponse {
	return &models.NodeResponse{
		ID:          node.ID,
		ParentID:    node.ParentID,
		TreeID:      node.TreeID,
		Left:        node.Left,
		Right:       node.Right,
		Level:       node.Level,
		Name:        node.Name,
		Slug:        node.Slug,
		Code:        node.Code,
		Description: node.Description,
		Status:      node.Status,
		CreatedBy:   node.CreatedBy,
		UpdatedBy:   node.UpdatedBy,
		CreatedAt:   node.CreatedAt,
		UpdatedAt:   node.UpdatedAt,
		DeletedAt:   node.DeletedAt,
	}
}

// BuildForest assembles flat nested set rows into hierarchical trees.
// The input may hold any number of trees in any order; the output trees
// are ordered by tree id and every child list by left coordinate. A row
// whose parent is absent from the input anchors a tree of its own, so a
// filtered read still surfaces every row it returned.
func BuildForest(nodes []*repository.Node) ([]*models.TreeNode, error) {
	if len(nodes) == 0 {
		return nil, ErrTreeNotFound
	}

	sorted := make([]*repository.Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TreeID != sorted[j].TreeID {
			return sorted[i].TreeID < sorted[j].TreeID
		}
		return sorted[i].Left < sorted[j].Left
	})

	// First pass: create all nodes
	nodeMap := make(map[int64]*models.TreeNode, len(sorted))
	for _, node := range sorted {
		nodeMap[node.ID] = toTreeNode(node)
	}

	// Second pass: attach children, promoting rows whose parent is not
	// in the input. Iteration in left order keeps each child list in
	// stored sibling order.
	var roots []*models.TreeNode
	for _, node := range sorted {
		if node.ParentID != nil {
			if parent, exists := nodeMap[*node.ParentID]; exists {
				parent.AddChild(nodeMap[node.ID])
				continue
			}
		}
		roots = append(roots, nodeMap[node.ID])
	}

	return roots, nil
}

// BuildSubtree assembles one subtree whose root is the row with the given
// ID. The root's own parent link may point outside the input; it still
// anchors the result.
func BuildSubtree(nodes []*repository.Node, rootID int64) (*models.TreeNode, error) {
	if len(nodes) == 0 {
		return nil, ErrTreeNotFound
	}

	sorted := make([]*repository.Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Left < sorted[j].Left })

	nodeMap := make(map[int64]*models.TreeNode, len(sorted))
	for _, node := range sorted {
		nodeMap[node.ID] = toTreeNode(node)
	}

	root, ok := nodeMap[rootID]
	if !ok {
		return nil, ErrTreeNotFound
	}

	for _, node := range sorted {
		if node.ID == rootID || node.ParentID == nil {
			continue
		}
		if parent, exists := nodeMap[*node.ParentID]; exists {
			parent.AddChild(nodeMap[node.ID])
		}
	}

	return root, nil
}

// FilterDeleted drops soft-deleted rows together with every row their
// interval covers. A tombstone on a node hides its whole subtree even
// though only the node itself carries the marker.
func FilterDeleted(nodes []*repository.Node) []*repository.Node {
	var tombstones []*repository.Node
	for _, node := range nodes {
		if node.DeletedAt != nil {
			tombstones = append(tombstones, node)
		}
	}
	if len(tombstones) == 0 {
		return nodes
	}

	kept := make([]*repository.Node, 0, len(nodes))
	for _, node := range nodes {
		hidden := false
		for _, t := range tombstones {
			if node.TreeID == t.TreeID && node.Left >= t.Left && node.Right <= t.Right {
				hidden = true
				break
			}
		}
		if !hidden {
			kept = append(kept, node)
		}
	}
	return kept
}
