package cluster

import (
	"cmp"
	"math"
	"slices"

	"github.com/bits-and-blooms/bitset"

	"github.com/jsdoublel/guidetree/internal/guide"
	"github.com/jsdoublel/guidetree/internal/similarity"
	"github.com/jsdoublel/guidetree/internal/triangle"
)

// Single linkage on negated similarities. The minimum spanning tree of the
// complete graph is built with Prim's algorithm (O(n²) on the dense matrix),
// and its edges are merged in increasing order. Node heights are the merge
// distances, i.e. negated similarities.
type SingleLinkage struct{}

func (SingleLinkage) Transform() similarity.Transform {
	return similarity.Inverse
}

type mstEdge struct {
	u, v int
	w    float64
}

func (SingleLinkage) Cluster(m *triangle.Matrix[float64]) (*guide.Tree, error) {
	if err := checkFinite(m); err != nil {
		return nil, err
	}
	n := m.N()
	tre := guide.NewTree(n)
	if n < 2 {
		return tre, nil
	}
	edges := minimumSpanningTree(m)
	slices.SortStableFunc(edges, func(a, b mstEdge) int {
		return cmp.Compare(a.w, b.w)
	})
	sets := newClusters(n)
	for _, e := range edges {
		a, b := sets.node[sets.find(e.u)], sets.node[sets.find(e.v)]
		id := tre.Merge(min(a, b), max(a, b), e.w)
		sets.union(e.u, e.v, id)
	}
	return tre, nil
}

func minimumSpanningTree(m *triangle.Matrix[float64]) []mstEdge {
	n := m.N()
	inTree := bitset.New(uint(n))
	best := make([]float64, n)
	from := make([]int, n)
	inTree.Set(0)
	for j := 1; j < n; j++ {
		best[j] = m.Get(0, j)
	}
	edges := make([]mstEdge, 0, n-1)
	for range n - 1 {
		next, w := -1, math.Inf(1)
		for j := 1; j < n; j++ {
			if !inTree.Test(uint(j)) && (next == -1 || best[j] < w) {
				next, w = j, best[j]
			}
		}
		edges = append(edges, mstEdge{u: from[next], v: next, w: w})
		inTree.Set(uint(next))
		for k := 1; k < n; k++ {
			if !inTree.Test(uint(k)) {
				if d := m.Get(next, k); d < best[k] {
					best[k], from[k] = d, next
				}
			}
		}
	}
	return edges
}
