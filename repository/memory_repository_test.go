package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleTree builds A -> B -> D, A -> C and returns the nodes by name.
// Coordinates afterwards: A(1,8) B(2,5) D(3,4) C(6,7).
func sampleTree(t *testing.T, store *MemoryTreeStore) map[string]*Node {
	t.Helper()
	ctx := context.Background()

	a := &Node{Name: "A"}
	_, err := store.InsertRoot(ctx, a)
	require.NoError(t, err)

	b := &Node{Name: "B"}
	_, err = store.AppendChild(ctx, a.ID, b)
	require.NoError(t, err)

	d := &Node{Name: "D"}
	_, err = store.AppendChild(ctx, b.ID, d)
	require.NoError(t, err)

	c := &Node{Name: "C"}
	_, err = store.AppendChild(ctx, a.ID, c)
	require.NoError(t, err)

	return map[string]*Node{"A": a, "B": b, "C": c, "D": d}
}

func coords(t *testing.T, store *MemoryTreeStore, id int64) (left, right int64, level int) {
	t.Helper()
	node, err := store.GetNode(context.Background(), id)
	require.NoError(t, err)
	return node.Left, node.Right, node.Level
}

func TestInsertRoot(t *testing.T) {
	store := NewMemoryTreeStore()
	ctx := context.Background()

	root := &Node{Name: "root"}
	id, err := store.InsertRoot(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, root.ID, id)

	stored, err := store.GetNode(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, stored.ParentID)
	assert.Equal(t, int64(1), stored.Left)
	assert.Equal(t, int64(2), stored.Right)
	assert.Equal(t, 0, stored.Level)

	// A second root gets its own tree.
	other := &Node{Name: "other"}
	_, err = store.InsertRoot(ctx, other)
	require.NoError(t, err)
	second, err := store.GetNode(ctx, other.ID)
	require.NoError(t, err)
	assert.NotEqual(t, stored.TreeID, second.TreeID)
}

func TestInsertRootRequiresName(t *testing.T) {
	store := NewMemoryTreeStore()
	_, err := store.InsertRoot(context.Background(), &Node{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAppendChildCoordinates(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)

	lft, rgt, lvl := coords(t, store, nodes["A"].ID)
	assert.Equal(t, []int64{1, 8}, []int64{lft, rgt})
	assert.Equal(t, 0, lvl)

	lft, rgt, lvl = coords(t, store, nodes["B"].ID)
	assert.Equal(t, []int64{2, 5}, []int64{lft, rgt})
	assert.Equal(t, 1, lvl)

	lft, rgt, lvl = coords(t, store, nodes["D"].ID)
	assert.Equal(t, []int64{3, 4}, []int64{lft, rgt})
	assert.Equal(t, 2, lvl)

	lft, rgt, lvl = coords(t, store, nodes["C"].ID)
	assert.Equal(t, []int64{6, 7}, []int64{lft, rgt})
	assert.Equal(t, 1, lvl)
}

func TestAppendChildShiftsRightBoundary(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)
	ctx := context.Background()

	e := &Node{Name: "E"}
	_, err := store.AppendChild(ctx, nodes["A"].ID, e)
	require.NoError(t, err)

	// E lands in the gap opened at A's old right boundary; earlier
	// siblings keep their coordinates.
	lft, rgt, _ := coords(t, store, e.ID)
	assert.Equal(t, []int64{8, 9}, []int64{lft, rgt})

	lft, rgt, _ = coords(t, store, nodes["A"].ID)
	assert.Equal(t, []int64{1, 10}, []int64{lft, rgt})

	lft, rgt, _ = coords(t, store, nodes["C"].ID)
	assert.Equal(t, []int64{6, 7}, []int64{lft, rgt})
}

func TestAppendChildParentNotFound(t *testing.T) {
	store := NewMemoryTreeStore()
	_, err := store.AppendChild(context.Background(), 42, &Node{Name: "orphan"})
	assert.ErrorIs(t, err, ErrParentNotFound)
}

func TestAppendChildRequiresName(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)

	_, err := store.AppendChild(context.Background(), nodes["A"].ID, &Node{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// The rejected insert must not have shifted anything.
	lft, rgt, _ := coords(t, store, nodes["A"].ID)
	assert.Equal(t, []int64{1, 8}, []int64{lft, rgt})
}

func TestGetSubtree(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)

	subtree, err := store.GetSubtree(context.Background(), nodes["B"].ID)
	require.NoError(t, err)
	require.Len(t, subtree, 2)
	assert.Equal(t, "B", subtree[0].Name)
	assert.Equal(t, "D", subtree[1].Name)

	_, err = store.GetSubtree(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestGetChildrenAndCount(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)
	ctx := context.Background()

	children, err := store.GetChildren(ctx, nodes["A"].ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "B", children[0].Name)
	assert.Equal(t, "C", children[1].Name)

	count, err := store.GetChildCount(ctx, nodes["A"].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = store.GetChildCount(ctx, nodes["D"].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMoveSubtreeUnderSibling(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)
	ctx := context.Background()

	e := &Node{Name: "E"}
	_, err := store.AppendChild(ctx, nodes["A"].ID, e)
	require.NoError(t, err)

	require.NoError(t, store.MoveSubtree(ctx, nodes["B"].ID, &nodes["C"].ID))

	lft, rgt, lvl := coords(t, store, nodes["A"].ID)
	assert.Equal(t, []int64{1, 10}, []int64{lft, rgt})
	assert.Equal(t, 0, lvl)

	lft, rgt, lvl = coords(t, store, nodes["C"].ID)
	assert.Equal(t, []int64{2, 7}, []int64{lft, rgt})
	assert.Equal(t, 1, lvl)

	lft, rgt, lvl = coords(t, store, nodes["B"].ID)
	assert.Equal(t, []int64{3, 6}, []int64{lft, rgt})
	assert.Equal(t, 2, lvl)

	lft, rgt, lvl = coords(t, store, nodes["D"].ID)
	assert.Equal(t, []int64{4, 5}, []int64{lft, rgt})
	assert.Equal(t, 3, lvl)

	lft, rgt, _ = coords(t, store, e.ID)
	assert.Equal(t, []int64{8, 9}, []int64{lft, rgt})

	ancestors, err := store.GetAncestors(ctx, nodes["D"].ID)
	require.NoError(t, err)
	names := make([]string, 0, len(ancestors))
	for _, a := range ancestors {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"A", "C", "B"}, names)

	moved, err := store.GetNode(ctx, nodes["B"].ID)
	require.NoError(t, err)
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, nodes["C"].ID, *moved.ParentID)

	// Only the subtree root's parent link changes.
	child, err := store.GetNode(ctx, nodes["D"].ID)
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, nodes["B"].ID, *child.ParentID)
}

func TestMoveSubtreeCycleRejected(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)
	ctx := context.Background()

	before, err := store.GetSubtree(ctx, nodes["A"].ID)
	require.NoError(t, err)

	err = store.MoveSubtree(ctx, nodes["B"].ID, &nodes["D"].ID)
	assert.ErrorIs(t, err, ErrInvalidMove)

	err = store.MoveSubtree(ctx, nodes["B"].ID, &nodes["B"].ID)
	assert.ErrorIs(t, err, ErrInvalidMove)

	after, err := store.GetSubtree(ctx, nodes["A"].ID)
	require.NoError(t, err)
	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Left, after[i].Left)
		assert.Equal(t, before[i].Right, after[i].Right)
	}
}

func TestMoveSubtreeToNewRoot(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)
	ctx := context.Background()

	require.NoError(t, store.MoveSubtree(ctx, nodes["B"].ID, nil))

	b, err := store.GetNode(ctx, nodes["B"].ID)
	require.NoError(t, err)
	assert.Nil(t, b.ParentID)
	assert.Equal(t, int64(1), b.Left)
	assert.Equal(t, int64(4), b.Right)
	assert.Equal(t, 0, b.Level)

	a, err := store.GetNode(ctx, nodes["A"].ID)
	require.NoError(t, err)
	assert.NotEqual(t, a.TreeID, b.TreeID)
	assert.Equal(t, int64(1), a.Left)
	assert.Equal(t, int64(4), a.Right)

	d, err := store.GetNode(ctx, nodes["D"].ID)
	require.NoError(t, err)
	assert.Equal(t, b.TreeID, d.TreeID)
	assert.Equal(t, 1, d.Level)
}

func TestMoveSubtreeAcrossTrees(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)
	ctx := context.Background()

	other := &Node{Name: "other-root"}
	_, err := store.InsertRoot(ctx, other)
	require.NoError(t, err)

	require.NoError(t, store.MoveSubtree(ctx, nodes["B"].ID, &other.ID))

	b, err := store.GetNode(ctx, nodes["B"].ID)
	require.NoError(t, err)
	root, err := store.GetNode(ctx, other.ID)
	require.NoError(t, err)

	assert.Equal(t, root.TreeID, b.TreeID)
	assert.Equal(t, int64(1), root.Left)
	assert.Equal(t, int64(6), root.Right)
	assert.Equal(t, int64(2), b.Left)
	assert.Equal(t, int64(5), b.Right)
	assert.Equal(t, 1, b.Level)

	// Source tree closed its gap.
	a, err := store.GetNode(ctx, nodes["A"].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), a.Right)
	c, err := store.GetNode(ctx, nodes["C"].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Left)
	assert.Equal(t, int64(3), c.Right)
}

func TestMoveRootToRootIsNoop(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)
	ctx := context.Background()

	require.NoError(t, store.MoveSubtree(ctx, nodes["A"].ID, nil))

	a, err := store.GetNode(ctx, nodes["A"].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Left)
	assert.Equal(t, int64(8), a.Right)
}

func TestDeleteSubtreeClosesGap(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)
	ctx := context.Background()

	require.NoError(t, store.DeleteSubtree(ctx, nodes["B"].ID))

	_, err := store.GetNode(ctx, nodes["B"].ID)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	_, err = store.GetNode(ctx, nodes["D"].ID)
	assert.ErrorIs(t, err, ErrNodeNotFound)

	lft, rgt, _ := coords(t, store, nodes["A"].ID)
	assert.Equal(t, []int64{1, 4}, []int64{lft, rgt})
	lft, rgt, _ = coords(t, store, nodes["C"].ID)
	assert.Equal(t, []int64{2, 3}, []int64{lft, rgt})
}

func TestDeleteSubtreeNotFound(t *testing.T) {
	store := NewMemoryTreeStore()
	err := store.DeleteSubtree(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestSoftDeleteKeepsStructure(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)
	ctx := context.Background()

	require.NoError(t, store.SoftDeleteNode(ctx, nodes["B"].ID, "tester"))

	b, err := store.GetNode(ctx, nodes["B"].ID)
	require.NoError(t, err)
	require.NotNil(t, b.DeletedAt)
	assert.Equal(t, "tester", b.DeletedBy)
	assert.Equal(t, int64(2), b.Left)
	assert.Equal(t, int64(5), b.Right)

	// The descendant is untouched and still reachable.
	subtree, err := store.GetSubtree(ctx, nodes["B"].ID)
	require.NoError(t, err)
	assert.Len(t, subtree, 2)
}

func TestUpdateNodePayloadOnly(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)
	ctx := context.Background()

	err := store.UpdateNode(ctx, nodes["C"].ID, &Node{
		Name:        "C renamed",
		Slug:        "c-renamed",
		Description: "updated",
		Status:      "inactive",
		UpdatedBy:   "tester",
	})
	require.NoError(t, err)

	c, err := store.GetNode(ctx, nodes["C"].ID)
	require.NoError(t, err)
	assert.Equal(t, "C renamed", c.Name)
	assert.Equal(t, "c-renamed", c.Slug)
	assert.Equal(t, "inactive", c.Status)
	assert.Equal(t, int64(6), c.Left)
	assert.Equal(t, int64(7), c.Right)

	err = store.UpdateNode(ctx, 42, &Node{Name: "x"})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestRebuildIsStable(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)
	ctx := context.Background()

	a, err := store.GetNode(ctx, nodes["A"].ID)
	require.NoError(t, err)

	require.NoError(t, store.Rebuild(ctx, a.TreeID))

	// Coordinates derived from parent links match the stored ones.
	for _, name := range []string{"A", "B", "C", "D"} {
		after, err := store.GetNode(ctx, nodes[name].ID)
		require.NoError(t, err)
		before := map[string][]int64{
			"A": {1, 8}, "B": {2, 5}, "D": {3, 4}, "C": {6, 7},
		}[name]
		assert.Equal(t, before, []int64{after.Left, after.Right}, name)
	}

	err = store.Rebuild(ctx, 9999)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestForestInvariantsAfterOperationSequence(t *testing.T) {
	store := NewMemoryTreeStore()
	nodes := sampleTree(t, store)
	ctx := context.Background()

	e := &Node{Name: "E"}
	_, err := store.AppendChild(ctx, nodes["C"].ID, e)
	require.NoError(t, err)
	require.NoError(t, store.MoveSubtree(ctx, nodes["B"].ID, &e.ID))
	require.NoError(t, store.DeleteSubtree(ctx, nodes["D"].ID))
	require.NoError(t, store.MoveSubtree(ctx, e.ID, nil))

	roots, err := store.GetRoots(ctx)
	require.NoError(t, err)

	var all []*Node
	for _, root := range roots {
		subtree, err := store.GetSubtree(ctx, root.ID)
		require.NoError(t, err)
		all = append(all, subtree...)
	}
	assert.NoError(t, VerifyForest(all))
}
