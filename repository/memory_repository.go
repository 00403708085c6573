package repository

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryTreeStore implements TreeRepository entirely in memory. It is the
// backend used by tests and the Lambda smoke environment. Every mutation
// works on a copy of the node set, runs the nested set invariant checks and
// only then swaps the copy in, so a failed operation leaves the store in its
// pre-operation state.
type MemoryTreeStore struct {
	mu         sync.RWMutex
	nodes      map[int64]*Node
	nextID     int64
	nextTreeID int64
}

// NewMemoryTreeStore creates an empty in-memory tree store.
func NewMemoryTreeStore() *MemoryTreeStore {
	return &MemoryTreeStore{
		nodes: make(map[int64]*Node),
	}
}

func cloneNode(n *Node) *Node {
	c := *n
	if n.ParentID != nil {
		pid := *n.ParentID
		c.ParentID = &pid
	}
	if n.DeletedAt != nil {
		at := *n.DeletedAt
		c.DeletedAt = &at
	}
	return &c
}

func (s *MemoryTreeStore) snapshot() map[int64]*Node {
	work := make(map[int64]*Node, len(s.nodes))
	for id, n := range s.nodes {
		work[id] = cloneNode(n)
	}
	return work
}

func allNodes(work map[int64]*Node) []*Node {
	out := make([]*Node, 0, len(work))
	for _, n := range work {
		out = append(out, n)
	}
	return out
}

func treeNodes(work map[int64]*Node, treeID int64) []*Node {
	var out []*Node
	for _, n := range work {
		if n.TreeID == treeID {
			out = append(out, n)
		}
	}
	return out
}

// GetNode retrieves a node by ID.
func (s *MemoryTreeStore) GetNode(ctx context.Context, id int64) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return cloneNode(n), nil
}

// GetChildren retrieves direct children ordered by left coordinate.
func (s *MemoryTreeStore) GetChildren(ctx context.Context, parentID int64) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Node{}
	for _, n := range s.nodes {
		if n.ParentID != nil && *n.ParentID == parentID {
			out = append(out, cloneNode(n))
		}
	}
	sortByLeft(out)
	return out, nil
}

// GetRoots retrieves all root nodes ordered by tree ID.
func (s *MemoryTreeStore) GetRoots(ctx context.Context) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Node{}
	for _, n := range s.nodes {
		if n.ParentID == nil {
			out = append(out, cloneNode(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TreeID < out[j].TreeID })
	return out, nil
}

// GetSubtree retrieves a node and its descendants ordered by left coordinate.
func (s *MemoryTreeStore) GetSubtree(ctx context.Context, rootID int64) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.nodes[rootID]
	if !ok {
		return nil, ErrNodeNotFound
	}
	var out []*Node
	for _, n := range s.nodes {
		if n.TreeID == root.TreeID && root.Left <= n.Left && n.Right <= root.Right {
			out = append(out, cloneNode(n))
		}
	}
	sortByLeft(out)
	return out, nil
}

// GetAncestors retrieves the ancestor chain root-first.
func (s *MemoryTreeStore) GetAncestors(ctx context.Context, id int64) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	out := []*Node{}
	for _, a := range s.nodes {
		if a.Contains(n) {
			out = append(out, cloneNode(a))
		}
	}
	sortByLeft(out)
	return out, nil
}

// GetChildCount counts direct children without fetching them.
func (s *MemoryTreeStore) GetChildCount(ctx context.Context, parentID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, n := range s.nodes {
		if n.ParentID != nil && *n.ParentID == parentID {
			count++
		}
	}
	return count, nil
}

// InsertRoot creates a new single-node tree.
func (s *MemoryTreeStore) InsertRoot(ctx context.Context, node *Node) (int64, error) {
	if node.Name == "" {
		return 0, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := cloneNode(node)
	stored.ID = s.nextID + 1
	stored.TreeID = s.nextTreeID + 1
	stored.ParentID = nil
	stored.Left, stored.Right, stored.Level = 1, 2, 0
	stored.CreatedAt, stored.UpdatedAt = now, now

	work := s.snapshot()
	work[stored.ID] = stored
	if err := VerifyForest(allNodes(work)); err != nil {
		return 0, err
	}
	s.nodes = work
	s.nextID++
	s.nextTreeID++
	node.ID = stored.ID
	return stored.ID, nil
}

// AppendChild inserts a node as the last child of parentID, opening a
// two-wide coordinate gap before the parent's right boundary.
func (s *MemoryTreeStore) AppendChild(ctx context.Context, parentID int64, node *Node) (int64, error) {
	if node.Name == "" {
		return 0, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.snapshot()
	parent, ok := work[parentID]
	if !ok {
		return 0, ErrParentNotFound
	}

	boundary := parent.Right
	for _, n := range treeNodes(work, parent.TreeID) {
		if n.Left >= boundary {
			n.Left += 2
		}
		if n.Right >= boundary {
			n.Right += 2
		}
	}

	now := time.Now().UTC()
	pid := parent.ID
	stored := cloneNode(node)
	stored.ID = s.nextID + 1
	stored.TreeID = parent.TreeID
	stored.ParentID = &pid
	stored.Left, stored.Right = boundary, boundary+1
	stored.Level = parent.Level + 1
	stored.CreatedAt, stored.UpdatedAt = now, now
	work[stored.ID] = stored

	if err := VerifyForest(allNodes(work)); err != nil {
		return 0, err
	}
	s.nodes = work
	s.nextID++
	node.ID = stored.ID
	return stored.ID, nil
}

// MoveSubtree relocates a subtree under a new parent, or promotes it to a
// new root tree when newParentID is nil. Only a uniform coordinate offset,
// a level delta and the subtree root's parent link change.
func (s *MemoryTreeStore) MoveSubtree(ctx context.Context, id int64, newParentID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.snapshot()
	n, ok := work[id]
	if !ok {
		return ErrNodeNotFound
	}
	var parent *Node
	if newParentID != nil {
		parent, ok = work[*newParentID]
		if !ok {
			return ErrNodeNotFound
		}
		if parent.ID == n.ID || n.Contains(parent) {
			return ErrInvalidMove
		}
	} else if n.ParentID == nil {
		return nil // already a root
	}

	width := n.Width()
	srcTree, srcLeft, srcRight, srcLevel := n.TreeID, n.Left, n.Right, n.Level

	// Membership is fixed by ID up front: once the gap below closes,
	// a following sibling can land on the subtree's old interval.
	subtreeIDs := make(map[int64]bool)
	for _, m := range treeNodes(work, srcTree) {
		if srcLeft <= m.Left && m.Right <= srcRight {
			subtreeIDs[m.ID] = true
		}
	}
	inSubtree := func(m *Node) bool { return subtreeIDs[m.ID] }

	// Close the gap at the old location.
	for _, m := range treeNodes(work, srcTree) {
		if inSubtree(m) {
			continue
		}
		if m.Left > srcRight {
			m.Left -= width
		}
		if m.Right > srcRight {
			m.Right -= width
		}
	}

	// Open a gap at the new location. The parent's coordinates are read
	// after the close above, which may have shifted them.
	var dstTree, newLeft int64
	var newLevel int
	if parent == nil {
		s.nextTreeID++
		dstTree, newLeft, newLevel = s.nextTreeID, 1, 0
	} else {
		dstTree, newLeft, newLevel = parent.TreeID, parent.Right, parent.Level+1
		boundary := parent.Right
		for _, m := range treeNodes(work, dstTree) {
			if inSubtree(m) {
				continue
			}
			if m.Left >= boundary {
				m.Left += width
			}
			if m.Right >= boundary {
				m.Right += width
			}
		}
	}

	offset := newLeft - srcLeft
	levelDelta := newLevel - srcLevel
	for _, m := range allNodes(work) {
		if inSubtree(m) {
			m.TreeID = dstTree
			m.Left += offset
			m.Right += offset
			m.Level += levelDelta
		}
	}
	if newParentID != nil {
		pid := *newParentID
		n.ParentID = &pid
	} else {
		n.ParentID = nil
	}
	n.UpdatedAt = time.Now().UTC()

	if err := VerifyForest(allNodes(work)); err != nil {
		return err
	}
	s.nodes = work
	return nil
}

// DeleteSubtree removes a node with all descendants and closes the gap.
func (s *MemoryTreeStore) DeleteSubtree(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.snapshot()
	n, ok := work[id]
	if !ok {
		return ErrNodeNotFound
	}
	width := n.Width()
	treeID, right := n.TreeID, n.Right

	for _, m := range treeNodes(work, treeID) {
		if n.Left <= m.Left && m.Right <= n.Right {
			delete(work, m.ID)
		}
	}
	for _, m := range treeNodes(work, treeID) {
		if m.Left > right {
			m.Left -= width
		}
		if m.Right > right {
			m.Right -= width
		}
	}

	if err := VerifyForest(allNodes(work)); err != nil {
		return err
	}
	s.nodes = work
	return nil
}

// UpdateNode updates payload attributes only.
func (s *MemoryTreeStore) UpdateNode(ctx context.Context, id int64, node *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	n.Name = node.Name
	n.Slug = node.Slug
	n.Code = node.Code
	n.Description = node.Description
	n.Status = node.Status
	n.UpdatedBy = node.UpdatedBy
	n.UpdatedAt = time.Now().UTC()
	return nil
}

// SoftDeleteNode sets the tombstone without touching coordinates.
func (s *MemoryTreeStore) SoftDeleteNode(ctx context.Context, id int64, deletedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	now := time.Now().UTC()
	n.DeletedAt = &now
	n.DeletedBy = deletedBy
	return nil
}

// Rebuild recomputes the coordinates of one tree from its parent links.
func (s *MemoryTreeStore) Rebuild(ctx context.Context, treeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.snapshot()
	tree := treeNodes(work, treeID)
	if len(tree) == 0 {
		return ErrNodeNotFound
	}
	if err := renumberTree(tree); err != nil {
		return err
	}
	if err := VerifyForest(allNodes(work)); err != nil {
		return err
	}
	s.nodes = work
	return nil
}

// Reset drops every node. Used between tests.
func (s *MemoryTreeStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[int64]*Node)
	s.nextID = 0
	s.nextTreeID = 0
}
