package guide

import (
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/evolbioinfo/gotree/io/newick"
)

func exampleTree() *Tree {
	tre := NewTree(4)
	a := tre.Merge(0, 1, 1)
	b := tre.Merge(2, 3, 2)
	tre.Merge(a, b, 5)
	return tre
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name  string
		tre   *Tree
		valid bool
	}{
		{name: "empty", tre: NewTree(0), valid: true},
		{name: "single leaf", tre: NewTree(1), valid: true},
		{name: "balanced", tre: exampleTree(), valid: true},
		{name: "missing merges", tre: func() *Tree {
			tre := NewTree(3)
			tre.Merge(0, 1, 1)
			return tre
		}(), valid: false},
		{name: "child used twice", tre: &Tree{NLeaves: 2, Nodes: []Node{{-1, -1, 0}, {-1, -1, 0}, {0, 0, 1}}}, valid: false},
		{name: "forward reference", tre: &Tree{NLeaves: 2, Nodes: []Node{{-1, -1, 0}, {-1, -1, 0}, {0, 2, 1}}}, valid: false},
		{name: "leaf with children", tre: &Tree{NLeaves: 2, Nodes: []Node{{0, 1, 0}, {-1, -1, 0}, {0, 1, 1}}}, valid: false},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			err := test.tre.Validate()
			switch {
			case test.valid && err != nil:
				t.Errorf("unexpected error %s", err)
			case !test.valid && !errors.Is(err, ErrInvalidTree):
				t.Errorf("got %v, expected %s", err, ErrInvalidTree)
			}
		})
	}
}

func TestMergePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("merging a node with itself should panic")
		}
	}()
	NewTree(2).Merge(1, 1, 0)
}

func TestLeafOrder(t *testing.T) {
	tre := NewTree(4)
	a := tre.Merge(1, 3, 1)
	b := tre.Merge(a, 0, 2)
	tre.Merge(2, b, 3)
	if order := tre.LeafOrder(); !reflect.DeepEqual(order, []int{2, 1, 3, 0}) {
		t.Errorf("got %v", order)
	}
	if len(NewTree(0).LeafOrder()) != 0 {
		t.Error("empty tree should have no leaves")
	}
}

func TestNewick(t *testing.T) {
	names := []string{"A", "B", "C", "D"}
	nwk, err := exampleTree().Newick(names)
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	tre, err := newick.NewParser(strings.NewReader(nwk)).Parse()
	if err != nil {
		t.Fatalf("output %s is not valid newick: %s", nwk, err)
	}
	tips := tre.AllTipNames()
	slices.Sort(tips)
	if !reflect.DeepEqual(tips, names) {
		t.Errorf("tips %v, expected %v", tips, names)
	}
	if !tre.Rooted() {
		t.Error("guide tree should be rooted")
	}
	if !strings.Contains(nwk, "A:1") || !strings.Contains(nwk, "C:2") {
		t.Errorf("branch lengths missing in %s", nwk)
	}
}

func TestNewickNegativeHeights(t *testing.T) {
	tre := NewTree(3)
	a := tre.Merge(0, 1, -9)
	tre.Merge(a, 2, -4)
	nwk, err := tre.Newick([]string{"A", "B", "C"})
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if strings.Contains(nwk, ":") {
		t.Errorf("expected no branch lengths in %s", nwk)
	}
}

func TestNewickEmpty(t *testing.T) {
	if _, err := NewTree(0).Newick(nil); !errors.Is(err, ErrEmptyTree) {
		t.Errorf("got %v, expected %s", err, ErrEmptyTree)
	}
}
