package guide_test

import (
	"context"
	"errors"
	"math"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/evolbioinfo/gotree/io/newick"

	"github.com/jsdoublel/guidetree/internal/cluster"
	"github.com/jsdoublel/guidetree/internal/guide"
	"github.com/jsdoublel/guidetree/internal/seq"
	"github.com/jsdoublel/guidetree/internal/similarity"
	"github.com/jsdoublel/guidetree/internal/triangle"
)

var errCluster = errors.New("cluster failure")

// records the matrix it is given and returns a caterpillar tree
type recordingClusterer struct {
	transform similarity.Transform
	seen      *triangle.Matrix[float64]
	err       error
	bad       bool
}

func (c *recordingClusterer) Transform() similarity.Transform {
	return c.transform
}

func (c *recordingClusterer) Cluster(m *triangle.Matrix[float64]) (*guide.Tree, error) {
	c.seen = m
	if c.err != nil {
		return nil, c.err
	}
	tre := guide.NewTree(m.N())
	if c.bad {
		return tre, nil
	}
	cur := 0
	for i := 1; i < m.N(); i++ {
		cur = tre.Merge(cur, i, float64(i))
	}
	return tre, nil
}

func makeSeqs(residues ...string) []*seq.Sequence {
	seqs := make([]*seq.Sequence, len(residues))
	for i, r := range residues {
		seqs[i] = seq.New(i, string(rune('A'+i)), r)
	}
	return seqs
}

func TestGenerateTreeExample(t *testing.T) {
	c := &recordingClusterer{transform: similarity.Identity}
	g, err := guide.NewGenerator(c, similarity.WithIndelExp(1))
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	tre, err := g.GenerateTree(context.Background(), makeSeqs("AAAA", "AAAA", "AAAT"))
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if c.seen != g.Matrix() {
		t.Error("clusterer did not receive the generator matrix")
	}
	expected := []float64{similarity.MaxSimilarity, 1.5, 1.5}
	if !reflect.DeepEqual(g.Matrix().Data(), expected) {
		t.Errorf("matrix %v, expected %v", g.Matrix().Data(), expected)
	}
	if tre.NLeaves != 3 || len(tre.Nodes) != 5 {
		t.Errorf("unexpected tree %+v", tre)
	}
}

func TestGenerateTreeUsesClustererTransform(t *testing.T) {
	c := &recordingClusterer{transform: similarity.Inverse}
	g, err := guide.NewGenerator(c, similarity.WithIndelExp(1), similarity.WithTransform(similarity.Reciprocal))
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if _, err := g.GenerateTree(context.Background(), makeSeqs("AAAA", "AAAT")); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if g.Calculator().Transform() != similarity.Inverse {
		t.Errorf("transform %s, expected inverse", g.Calculator().Transform())
	}
	if v := g.Matrix().Get(0, 1); v != -1.5 {
		t.Errorf("got %g, expected -1.5", v)
	}
}

func TestGenerateTreeDegenerate(t *testing.T) {
	for _, n := range []int{0, 1} {
		c := &recordingClusterer{}
		g, err := guide.NewGenerator(c)
		if err != nil {
			t.Fatalf("unexpected error %s", err)
		}
		tre, err := g.GenerateTree(context.Background(), makeSeqs(slices.Repeat([]string{"MK"}, n)...))
		if err != nil {
			t.Fatalf("n=%d: unexpected error %s", n, err)
		}
		if tre.NLeaves != n || len(tre.Nodes) != n {
			t.Errorf("n=%d: unexpected tree %+v", n, tre)
		}
		if c.seen != nil {
			t.Errorf("n=%d: clusterer should not run", n)
		}
		if g.Matrix().Len() != 0 {
			t.Errorf("n=%d: matrix should be empty", n)
		}
	}
}

func TestGenerateTreeErrors(t *testing.T) {
	seqs := makeSeqs("MKV", "MKA", "MAV")
	testCases := []struct {
		name      string
		clusterer *recordingClusterer
		prepare   bool
		expected  error
	}{
		{name: "precomputation", clusterer: &recordingClusterer{}, prepare: true, expected: guide.ErrPrecomputation},
		{name: "clustering", clusterer: &recordingClusterer{err: errCluster}, expected: guide.ErrClustering},
		{name: "incomplete tree", clusterer: &recordingClusterer{bad: true}, expected: guide.ErrClustering},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			if test.prepare {
				if err := seqs[2].PrepareBitMasks(); err != nil {
					t.Fatalf("unexpected error %s", err)
				}
				defer seqs[2].ReleaseBitMasks()
			}
			g, err := guide.NewGenerator(test.clusterer)
			if err != nil {
				t.Fatalf("unexpected error %s", err)
			}
			_, err = g.GenerateTree(context.Background(), seqs)
			if !errors.Is(err, test.expected) {
				t.Errorf("got %v, expected %s", err, test.expected)
			}
			if test.prepare && test.clusterer.seen != nil {
				t.Error("clustering must not start after a failed precomputation")
			}
			if g.Matrix() != nil {
				t.Error("failed run should not expose a matrix")
			}
		})
	}
}

func TestNewGeneratorErrors(t *testing.T) {
	if _, err := guide.NewGenerator(nil); !errors.Is(err, guide.ErrNoClusterer) {
		t.Errorf("got %v, expected %s", err, guide.ErrNoClusterer)
	}
	_, err := guide.NewGenerator(cluster.UPGMA{}, similarity.WithIndelExp(-1))
	if !errors.Is(err, similarity.ErrInvalidOption) {
		t.Errorf("got %v, expected %s", err, similarity.ErrInvalidOption)
	}
}

func TestGenerateTreeEndToEnd(t *testing.T) {
	seqs := makeSeqs(
		"MKVLAAGIVGLLLAQ",
		"MKVLAAGIVGLLLSQ",
		"TTPEEWRRLNNQALR",
		"TTPEEWRRLNNQAKK",
		"MKVLTAGIVGLLLAT",
		"GGSAGGSAGGSAGGS",
	)
	names := make([]string, len(seqs))
	for i, s := range seqs {
		names[i] = s.Name
	}
	for name, c := range cluster.Parse {
		t.Run(name, func(t *testing.T) {
			var trees []*guide.Tree
			for _, nprocs := range []int{1, 4} {
				g, err := guide.NewGenerator(c, similarity.WithIndelExp(1), similarity.WithNProcs(nprocs))
				if err != nil {
					t.Fatalf("unexpected error %s", err)
				}
				tre, err := g.GenerateTree(context.Background(), seqs)
				if err != nil {
					t.Fatalf("unexpected error %s", err)
				}
				for _, v := range g.Matrix().Data() {
					if math.IsNaN(v) || math.IsInf(v, 0) {
						t.Fatalf("non-finite matrix value %g", v)
					}
				}
				trees = append(trees, tre)
			}
			if !reflect.DeepEqual(trees[0], trees[1]) {
				t.Error("tree depends on the number of workers")
			}
			nwk, err := trees[0].Newick(names)
			if err != nil {
				t.Fatalf("unexpected error %s", err)
			}
			tre, err := newick.NewParser(strings.NewReader(nwk)).Parse()
			if err != nil {
				t.Fatalf("invalid newick %s: %s", nwk, err)
			}
			if err := tre.UpdateTipIndex(); err != nil {
				t.Fatalf("unexpected error %s", err)
			}
			// the two near-identical MKVL sequences must form a cherry
			first := trees[0].Nodes[trees[0].NLeaves]
			if first.Left != 0 || first.Right != 1 {
				t.Errorf("first merge %+v, expected (0, 1) in %s", first, nwk)
			}
		})
	}
}
