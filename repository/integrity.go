package repository

import (
	"fmt"
)

// VerifyForest checks the nested set invariants for every tree in the given
// flat node set and returns a wrapped ErrIntegrityViolation describing the
// first violation found. The checks mirror what the mutation operations
// guarantee:
//
//  1. within one tree, intervals either nest or are disjoint
//  2. Right-Left is odd and at least 1
//  3. subtree node count equals (Right-Left+1)/2
//  4. ParentID points at the smallest enclosing interval
//  5. child level is parent level plus one
func VerifyForest(nodes []*Node) error {
	byTree := make(map[int64][]*Node)
	for _, n := range nodes {
		byTree[n.TreeID] = append(byTree[n.TreeID], n)
	}

	for treeID, tree := range byTree {
		sortByLeft(tree)
		root := tree[0]
		if root.ParentID != nil {
			return fmt.Errorf("tree %d: minimal-left node %d has a parent: %w", treeID, root.ID, ErrIntegrityViolation)
		}
		if root.Left != 1 {
			return fmt.Errorf("tree %d: root left is %d, want 1: %w", treeID, root.Left, ErrIntegrityViolation)
		}
		if root.Level != 0 {
			return fmt.Errorf("tree %d: root level is %d, want 0: %w", treeID, root.Level, ErrIntegrityViolation)
		}

		seen := make(map[int64]bool, 2*len(tree))
		for _, n := range tree {
			if n.Right <= n.Left || (n.Right-n.Left)%2 == 0 {
				return fmt.Errorf("tree %d: node %d has interval (%d,%d): %w", treeID, n.ID, n.Left, n.Right, ErrIntegrityViolation)
			}
			if seen[n.Left] || seen[n.Right] {
				return fmt.Errorf("tree %d: node %d reuses a coordinate: %w", treeID, n.ID, ErrIntegrityViolation)
			}
			seen[n.Left], seen[n.Right] = true, true

			if n != root && !root.Contains(n) {
				return fmt.Errorf("tree %d: node %d escapes the root interval: %w", treeID, n.ID, ErrIntegrityViolation)
			}

			// Invariant 3: count descendants by containment.
			var descendants int64
			for _, m := range tree {
				if n.Contains(m) {
					descendants++
				}
			}
			if want := (n.Width() / 2) - 1; descendants != want {
				return fmt.Errorf("tree %d: node %d has %d descendants, interval implies %d: %w",
					treeID, n.ID, descendants, want, ErrIntegrityViolation)
			}

			// Invariant 4 and 6: parent is the tightest enclosing interval.
			smallest := smallestAncestor(tree, n)
			switch {
			case smallest == nil:
				if n.ParentID != nil {
					return fmt.Errorf("tree %d: node %d has parent %d but no enclosing interval: %w",
						treeID, n.ID, *n.ParentID, ErrIntegrityViolation)
				}
			case n.ParentID == nil || *n.ParentID != smallest.ID:
				return fmt.Errorf("tree %d: node %d parent link disagrees with containment (want %d): %w",
					treeID, n.ID, smallest.ID, ErrIntegrityViolation)
			case n.Level != smallest.Level+1:
				return fmt.Errorf("tree %d: node %d level %d under parent level %d: %w",
					treeID, n.ID, n.Level, smallest.Level, ErrIntegrityViolation)
			}
		}

		// Intervals must nest or be disjoint; with unique coordinates it is
		// enough to reject partial overlap.
		for i, a := range tree {
			for _, b := range tree[i+1:] {
				if a.Left < b.Left && b.Left < a.Right && a.Right < b.Right {
					return fmt.Errorf("tree %d: intervals of %d and %d partially overlap: %w",
						treeID, a.ID, b.ID, ErrIntegrityViolation)
				}
			}
		}
	}
	return nil
}

func smallestAncestor(tree []*Node, n *Node) *Node {
	var best *Node
	for _, a := range tree {
		if !a.Contains(n) {
			continue
		}
		if best == nil || best.Contains(a) {
			best = a
		}
	}
	return best
}
