// Package with the clustering strategies used to turn a completed similarity
// matrix into a guide tree. Ties are always broken towards lower indices so
// identical matrices give identical trees.
package cluster

import (
	"errors"
	"fmt"
	"math"

	"github.com/jsdoublel/guidetree/internal/guide"
	"github.com/jsdoublel/guidetree/internal/triangle"
)

var ErrNonFinite = errors.New("non-finite matrix value")

var Parse = map[string]guide.Clusterer{
	"sl":    SingleLinkage{},
	"upgma": UPGMA{},
}

// Name of a clustering strategy in Parse; usable as a flag.Value
type Method string

func (m *Method) Set(s string) error {
	if _, ok := Parse[s]; ok {
		*m = Method(s)
		return nil
	}
	return fmt.Errorf("\"%s\" is not a valid clustering method: either \"sl\" or \"upgma\" required", s)
}

func (m Method) String() string {
	return string(m)
}

func (m Method) Clusterer() guide.Clusterer {
	c, ok := Parse[string(m)]
	if !ok {
		panic(fmt.Sprintf("clustering method \"%s\" does not exist", string(m)))
	}
	return c
}

func checkFinite(m *triangle.Matrix[float64]) error {
	for off, v := range m.Data() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			i, j := m.Pair(off)
			return fmt.Errorf("%w %g at (%d, %d)", ErrNonFinite, v, i, j)
		}
	}
	return nil
}

// union-find over leaves, tracking the tree node of each set
type clusters struct {
	parent []int
	node   []int
}

func newClusters(n int) *clusters {
	c := &clusters{parent: make([]int, n), node: make([]int, n)}
	for i := range n {
		c.parent[i] = i
		c.node[i] = i
	}
	return c
}

func (c *clusters) find(i int) int {
	for c.parent[i] != i {
		c.parent[i] = c.parent[c.parent[i]]
		i = c.parent[i]
	}
	return i
}

// joins the sets of a and b under tree node id
func (c *clusters) union(a, b, id int) {
	ra, rb := c.find(a), c.find(b)
	c.parent[rb] = ra
	c.node[ra] = id
}
