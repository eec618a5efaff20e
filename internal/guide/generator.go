// Package building guide trees: the similarity matrix of all sequences is
// computed in parallel and then handed to a clustering strategy.
package guide

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jsdoublel/guidetree/internal/seq"
	"github.com/jsdoublel/guidetree/internal/similarity"
	"github.com/jsdoublel/guidetree/internal/triangle"
)

var (
	ErrPrecomputation = errors.New("similarity precomputation failed")
	ErrClustering     = errors.New("clustering failed")
	ErrNoClusterer    = errors.New("no clustering strategy")
)

// Clustering strategy. Cluster is only called with a fully populated matrix
// whose values were produced with Transform().
type Clusterer interface {
	Transform() similarity.Transform
	Cluster(m *triangle.Matrix[float64]) (*Tree, error)
}

// Generator is not safe for concurrent use; Matrix refers to the last run.
type Generator struct {
	clusterer Clusterer
	calc      *similarity.Calculator
	matrix    *triangle.Matrix[float64]
}

// Options configure the similarity computation; the transform is always the
// one required by the clusterer.
func NewGenerator(clusterer Clusterer, opts ...similarity.Option) (*Generator, error) {
	if clusterer == nil {
		return nil, ErrNoClusterer
	}
	calcOpts := make([]similarity.Option, 0, len(opts)+1)
	calcOpts = append(calcOpts, opts...)
	calcOpts = append(calcOpts, similarity.WithTransform(clusterer.Transform()))
	calc, err := similarity.NewCalculator(calcOpts...)
	if err != nil {
		return nil, err
	}
	return &Generator{clusterer: clusterer, calc: calc}, nil
}

func (g *Generator) Calculator() *similarity.Calculator {
	return g.calc
}

// Completed matrix of the last successful GenerateTree call (nil before)
func (g *Generator) Matrix() *triangle.Matrix[float64] {
	return g.matrix
}

// Computes the similarity matrix of seqs and clusters it into a guide tree.
// Fewer than two sequences need no similarities and give a trivial tree.
func (g *Generator) GenerateTree(ctx context.Context, seqs []*seq.Sequence) (*Tree, error) {
	n := len(seqs)
	m := triangle.New[float64](n)
	if n < 2 {
		g.matrix = m
		return NewTree(n), nil
	}
	log.Printf("computing %d pairwise similarities for %d sequences (%d workers, indel exponent %g, %s transform)\n",
		m.Len(), n, g.calc.NProcs(), g.calc.IndelExp(), g.calc.Transform())
	if err := g.calc.ComputeMatrix(ctx, seqs, m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrecomputation, err)
	}
	log.Println("similarity matrix complete, clustering")
	tre, err := g.clusterer.Cluster(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClustering, err)
	}
	if tre.NLeaves != n {
		return nil, fmt.Errorf("%w: tree has %d leaves for %d sequences", ErrClustering, tre.NLeaves, n)
	}
	if err := tre.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClustering, err)
	}
	g.matrix = m
	log.Printf("guide tree built with %d internal nodes\n", len(tre.Nodes)-tre.NLeaves)
	return tre, nil
}
