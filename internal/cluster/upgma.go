package cluster

import (
	"math"

	"github.com/bits-and-blooms/bitset"

	"github.com/jsdoublel/guidetree/internal/guide"
	"github.com/jsdoublel/guidetree/internal/similarity"
	"github.com/jsdoublel/guidetree/internal/triangle"
)

// Average linkage (UPGMA) on reciprocal similarities. The merged cluster
// takes the slot of its lower index; node height is half the merge distance.
type UPGMA struct{}

func (UPGMA) Transform() similarity.Transform {
	return similarity.Reciprocal
}

func (UPGMA) Cluster(m *triangle.Matrix[float64]) (*guide.Tree, error) {
	if err := checkFinite(m); err != nil {
		return nil, err
	}
	n := m.N()
	tre := guide.NewTree(n)
	if n < 2 {
		return tre, nil
	}
	dist := m.Clone()
	sizes := make([]float64, n)
	nodes := make([]int, n)
	active := bitset.New(uint(n))
	for i := range n {
		sizes[i], nodes[i] = 1, i
		active.Set(uint(i))
	}
	for range n - 1 {
		bi, bj := closestPair(dist, active)
		d := dist.Get(bi, bj)
		nodes[bj] = tre.Merge(min(nodes[bi], nodes[bj]), max(nodes[bi], nodes[bj]), d/2)
		active.Clear(uint(bi))
		wi, wj := sizes[bi]/(sizes[bi]+sizes[bj]), sizes[bj]/(sizes[bi]+sizes[bj])
		for k, ok := active.NextSet(0); ok; k, ok = active.NextSet(k + 1) {
			if int(k) == bj {
				continue
			}
			avg := dist.Get(bi, int(k))*wi + dist.Get(bj, int(k))*wj
			dist.Set(bj, int(k), min(avg, math.MaxFloat64))
		}
		sizes[bj] += sizes[bi]
	}
	return tre, nil
}

// Active pair (i, j), i > j, with the smallest distance; the first such pair
// in storage order wins ties
func closestPair(dist *triangle.Matrix[float64], active *bitset.BitSet) (int, int) {
	idx := make([]int, 0, active.Count())
	for k, ok := active.NextSet(0); ok; k, ok = active.NextSet(k + 1) {
		idx = append(idx, int(k))
	}
	bi, bj := -1, -1
	best := math.Inf(1)
	for a, i := range idx {
		for _, j := range idx[:a] {
			if d := dist.Get(i, j); bi == -1 || d < best {
				bi, bj, best = i, j, d
			}
		}
	}
	return bi, bj
}
