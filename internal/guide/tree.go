package guide

import (
	"errors"
	"fmt"

	"github.com/evolbioinfo/gotree/tree"
)

var (
	ErrEmptyTree   = errors.New("empty tree")
	ErrInvalidTree = errors.New("invalid guide tree")
)

// Leaves have Left == Right == -1. Internal nodes reference two nodes with
// smaller indices.
type Node struct {
	Left   int     // index of first child
	Right  int     // index of second child
	Height float64 // merge distance (0 for leaves)
}

// Binary guide tree. Nodes[0:NLeaves] are the input sequences in input order,
// followed by internal nodes in the order they were merged; the root is the
// last node.
type Tree struct {
	NLeaves int
	Nodes   []Node
}

func NewTree(nLeaves int) *Tree {
	nodes := make([]Node, nLeaves, max(2*nLeaves-1, 0))
	for i := range nodes {
		nodes[i] = Node{Left: -1, Right: -1}
	}
	return &Tree{NLeaves: nLeaves, Nodes: nodes}
}

// Adds an internal node joining a and b; returns its index
func (t *Tree) Merge(a, b int, height float64) int {
	if a == b || a < 0 || b < 0 || a >= len(t.Nodes) || b >= len(t.Nodes) {
		panic(fmt.Sprintf("cannot merge nodes %d and %d (tree has %d nodes)", a, b, len(t.Nodes)))
	}
	t.Nodes = append(t.Nodes, Node{Left: a, Right: b, Height: height})
	return len(t.Nodes) - 1
}

// Index of root, -1 for the empty tree
func (t *Tree) Root() int {
	return len(t.Nodes) - 1
}

func (t *Tree) IsLeaf(i int) bool {
	return i < t.NLeaves
}

// Checks that the tree is a single binary tree over all leaves: every node
// but the root is the child of exactly one later node.
func (t *Tree) Validate() error {
	if t.NLeaves == 0 {
		if len(t.Nodes) != 0 {
			return fmt.Errorf("%w, tree without leaves has %d nodes", ErrInvalidTree, len(t.Nodes))
		}
		return nil
	}
	if len(t.Nodes) != 2*t.NLeaves-1 {
		return fmt.Errorf("%w, %d nodes for %d leaves", ErrInvalidTree, len(t.Nodes), t.NLeaves)
	}
	used := make([]bool, len(t.Nodes))
	for i, n := range t.Nodes {
		if t.IsLeaf(i) {
			if n.Left != -1 || n.Right != -1 {
				return fmt.Errorf("%w, leaf %d has children", ErrInvalidTree, i)
			}
			continue
		}
		for _, c := range [2]int{n.Left, n.Right} {
			if c < 0 || c >= i || used[c] {
				return fmt.Errorf("%w, node %d has invalid child %d", ErrInvalidTree, i, c)
			}
			used[c] = true
		}
	}
	return nil
}

// Leaf indices in left to right order
func (t *Tree) LeafOrder() []int {
	order := make([]int, 0, t.NLeaves)
	if len(t.Nodes) == 0 {
		return order
	}
	stack := []int{t.Root()}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.IsLeaf(cur) {
			order = append(order, cur)
			continue
		}
		stack = append(stack, t.Nodes[cur].Right, t.Nodes[cur].Left)
	}
	return order
}

// Builds a rooted gotree tree with leaves named by names (indexed like the
// input sequences). Branch lengths are height differences when all heights
// are non-negative, and are left unset otherwise.
func (t *Tree) ToGoTree(names []string) (*tree.Tree, error) {
	if len(t.Nodes) == 0 {
		return nil, ErrEmptyTree
	}
	if len(names) != t.NLeaves {
		panic(fmt.Sprintf("%d names for %d leaves", len(names), t.NLeaves))
	}
	withLengths := true
	for _, n := range t.Nodes {
		if n.Height < 0 {
			withLengths = false
			break
		}
	}
	gt := tree.NewTree()
	nodes := make([]*tree.Node, len(t.Nodes))
	for i, n := range t.Nodes {
		nodes[i] = gt.NewNode()
		if t.IsLeaf(i) {
			nodes[i].SetName(names[i])
			continue
		}
		for _, c := range [2]int{n.Left, n.Right} {
			e := gt.ConnectNodes(nodes[i], nodes[c])
			if withLengths {
				e.SetLength(max(n.Height-t.Nodes[c].Height, 0))
			} else {
				e.SetLength(tree.NIL_LENGTH)
			}
		}
	}
	gt.SetRoot(nodes[t.Root()])
	if err := gt.UpdateTipIndex(); err != nil {
		return nil, fmt.Errorf("%w, %s", ErrInvalidTree, err.Error())
	}
	return gt, nil
}

func (t *Tree) Newick(names []string) (string, error) {
	gt, err := t.ToGoTree(names)
	if err != nil {
		return "", err
	}
	return gt.Newick(), nil
}
