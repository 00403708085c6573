package handlers_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammiranda/medicine_service/handlers"
	"github.com/ammiranda/medicine_service/repository"
)

func link(id int64) *int64 { return &id }

// flatForest returns two trees as unordered flat rows:
//
//	tree 1: Analgesics(1,8) -> Opioids(2,5) -> Morphine(3,4), NSAIDs(6,7)
//	tree 2: Antibiotics(1,2)
func flatForest() []*repository.Node {
	return []*repository.Node{
		{ID: 4, ParentID: link(1), TreeID: 1, Left: 6, Right: 7, Level: 1, Name: "NSAIDs"},
		{ID: 5, TreeID: 2, Left: 1, Right: 2, Name: "Antibiotics"},
		{ID: 3, ParentID: link(2), TreeID: 1, Left: 3, Right: 4, Level: 2, Name: "Morphine"},
		{ID: 1, TreeID: 1, Left: 1, Right: 8, Name: "Analgesics"},
		{ID: 2, ParentID: link(1), TreeID: 1, Left: 2, Right: 5, Level: 1, Name: "Opioids"},
	}
}

func TestBuildForest(t *testing.T) {
	forest, err := handlers.BuildForest(flatForest())
	require.NoError(t, err)
	require.Len(t, forest, 2)

	analgesics := forest[0]
	assert.Equal(t, "Analgesics", analgesics.Name)
	require.Len(t, analgesics.Children, 2)
	// Child lists follow stored sibling order.
	assert.Equal(t, "Opioids", analgesics.Children[0].Name)
	assert.Equal(t, "NSAIDs", analgesics.Children[1].Name)
	require.Len(t, analgesics.Children[0].Children, 1)
	assert.Equal(t, "Morphine", analgesics.Children[0].Children[0].Name)

	antibiotics := forest[1]
	assert.Equal(t, "Antibiotics", antibiotics.Name)
	assert.Empty(t, antibiotics.Children)
}

func TestBuildForestEmpty(t *testing.T) {
	_, err := handlers.BuildForest(nil)
	assert.ErrorIs(t, err, handlers.ErrTreeNotFound)
}

func TestBuildForestPromotesOrphanRows(t *testing.T) {
	// A row whose parent is absent from the input anchors its own tree.
	nodes := []*repository.Node{
		{ID: 1, TreeID: 1, Left: 1, Right: 2, Name: "Analgesics"},
		{ID: 9, ParentID: link(77), TreeID: 1, Left: 3, Right: 6, Level: 1, Name: "Opioids"},
		{ID: 10, ParentID: link(9), TreeID: 1, Left: 4, Right: 5, Level: 2, Name: "Morphine"},
	}
	forest, err := handlers.BuildForest(nodes)
	require.NoError(t, err)
	require.Len(t, forest, 2)
	assert.Equal(t, "Analgesics", forest[0].Name)
	assert.Equal(t, "Opioids", forest[1].Name)
	require.Len(t, forest[1].Children, 1)
	assert.Equal(t, "Morphine", forest[1].Children[0].Name)
}

func TestBuildForestChildOnlyInput(t *testing.T) {
	nodes := []*repository.Node{
		{ID: 2, ParentID: link(1), TreeID: 1, Left: 2, Right: 3, Level: 1, Name: "Opioids"},
	}
	forest, err := handlers.BuildForest(nodes)
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, "Opioids", forest[0].Name)
}

func TestBuildSubtree(t *testing.T) {
	// The subtree rows alone; the root keeps its external parent link.
	nodes := []*repository.Node{
		{ID: 2, ParentID: link(1), TreeID: 1, Left: 2, Right: 5, Level: 1, Name: "Opioids"},
		{ID: 3, ParentID: link(2), TreeID: 1, Left: 3, Right: 4, Level: 2, Name: "Morphine"},
	}
	tree, err := handlers.BuildSubtree(nodes, 2)
	require.NoError(t, err)
	assert.Equal(t, "Opioids", tree.Name)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "Morphine", tree.Children[0].Name)
}

func TestBuildSubtreeMissingRoot(t *testing.T) {
	nodes := []*repository.Node{
		{ID: 3, ParentID: link(2), TreeID: 1, Left: 3, Right: 4, Level: 2, Name: "Morphine"},
	}
	_, err := handlers.BuildSubtree(nodes, 2)
	assert.ErrorIs(t, err, handlers.ErrTreeNotFound)
}

func TestFilterDeletedHidesCoveredSubtree(t *testing.T) {
	now := time.Now()
	nodes := flatForest()
	// Tombstone Opioids(2,5); Morphine(3,4) is covered by its interval.
	for _, n := range nodes {
		if n.ID == 2 {
			n.DeletedAt = &now
		}
	}

	kept := handlers.FilterDeleted(nodes)
	ids := make(map[int64]bool)
	for _, n := range kept {
		ids[n.ID] = true
	}
	assert.False(t, ids[2])
	assert.False(t, ids[3])
	assert.True(t, ids[1])
	assert.True(t, ids[4])
	assert.True(t, ids[5])
}

func TestFilterDeletedNoTombstones(t *testing.T) {
	nodes := flatForest()
	assert.Len(t, handlers.FilterDeleted(nodes), len(nodes))
}
