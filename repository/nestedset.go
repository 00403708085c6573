package repository

import (
	"fmt"
	"sort"
)

// renumberTree assigns fresh Left/Right/Level values to every node of one
// tree using only the ParentID links, via an iterative pre-order walk.
// Sibling order follows the previous Left values (falling back to ID when
// coordinates are corrupted beyond comparison). All nodes must carry the
// same TreeID. Returns an error on orphaned parents or parent cycles.
func renumberTree(nodes []*Node) error {
	if len(nodes) == 0 {
		return nil
	}

	byID := make(map[int64]*Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	children := make(map[int64][]*Node, len(nodes))
	var roots []*Node
	for _, n := range nodes {
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		parent, ok := byID[*n.ParentID]
		if !ok {
			return fmt.Errorf("node %d references missing parent %d: %w", n.ID, *n.ParentID, ErrIntegrityViolation)
		}
		children[parent.ID] = append(children[parent.ID], n)
	}
	if len(roots) != 1 {
		return fmt.Errorf("tree %d has %d roots, want 1: %w", nodes[0].TreeID, len(roots), ErrIntegrityViolation)
	}

	orderSiblings(roots)
	for id := range children {
		orderSiblings(children[id])
	}

	// Iterative pre-order: a node is pushed once on entry and once more
	// when its interval closes.
	type frame struct {
		node    *Node
		closing bool
	}
	var counter int64
	visited := 0
	stack := []frame{{node: roots[0]}}
	roots[0].Level = 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.closing {
			counter++
			f.node.Right = counter
			continue
		}
		visited++
		if visited > len(nodes) {
			return fmt.Errorf("parent cycle in tree %d: %w", nodes[0].TreeID, ErrIntegrityViolation)
		}
		counter++
		f.node.Left = counter
		stack = append(stack, frame{node: f.node, closing: true})
		kids := children[f.node.ID]
		for i := len(kids) - 1; i >= 0; i-- {
			kids[i].Level = f.node.Level + 1
			stack = append(stack, frame{node: kids[i]})
		}
	}
	if visited != len(nodes) {
		return fmt.Errorf("tree %d has %d reachable nodes of %d: %w", nodes[0].TreeID, visited, len(nodes), ErrIntegrityViolation)
	}
	return nil
}

func orderSiblings(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Left != nodes[j].Left {
			return nodes[i].Left < nodes[j].Left
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// sortByLeft orders nodes by (TreeID, Left), the canonical flat order
// every read query returns.
func sortByLeft(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].TreeID != nodes[j].TreeID {
			return nodes[i].TreeID < nodes[j].TreeID
		}
		return nodes[i].Left < nodes[j].Left
	})
}
