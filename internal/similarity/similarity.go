// Package computing LCS based similarities between sequences. A row of the
// triangular similarity matrix compares one reference sequence against all
// sequences before it; rows are computed in parallel by a fixed pool of
// workers, each owning its own LCS engine.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jsdoublel/guidetree/internal/lcs"
	"github.com/jsdoublel/guidetree/internal/seq"
	"github.com/jsdoublel/guidetree/internal/triangle"
)

var ErrInvalidOption = errors.New("invalid similarity option")

// LCS lengths of a prepared reference against up to four sequences (nil lanes
// allowed)
type Engine interface {
	ComputeFour(ref *seq.Sequence, targets [lcs.Lanes]*seq.Sequence) ([lcs.Lanes]uint32, error)
}

type Option func(c *Calculator) error

// Run configuration shared by all workers; immutable after NewCalculator
type Calculator struct {
	indelExp  float64       // exponent applied to the indel count
	transform Transform     // transform applied to raw scores
	nprocs    int           // number of workers for ComputeMatrix
	newEngine func() Engine // creates the private engine of each worker
}

func WithIndelExp(p float64) Option {
	return func(c *Calculator) error {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w, indel exponent must be a non-negative number, but is %g", ErrInvalidOption, p)
		}
		c.indelExp = p
		return nil
	}
}

func WithTransform(t Transform) Option {
	return func(c *Calculator) error {
		if !t.valid() {
			return fmt.Errorf("%w, unknown transform (%d)", ErrInvalidOption, t)
		}
		c.transform = t
		return nil
	}
}

// Number of parallel workers for ComputeMatrix
func WithNProcs(nprocs int) Option {
	return func(c *Calculator) error {
		if nprocs < 1 {
			return fmt.Errorf("%w, number of processes must be positive, but is %d", ErrInvalidOption, nprocs)
		}
		c.nprocs = nprocs
		return nil
	}
}

func WithEngine(newEngine func() Engine) Option {
	return func(c *Calculator) error {
		if newEngine == nil {
			return fmt.Errorf("%w, nil engine constructor", ErrInvalidOption)
		}
		c.newEngine = newEngine
		return nil
	}
}

// Validates options and builds a calculator. Defaults: indel exponent 0,
// Identity transform, GOMAXPROCS workers, bit-parallel engine.
func NewCalculator(opts ...Option) (*Calculator, error) {
	c := &Calculator{
		transform: Identity,
		nprocs:    runtime.GOMAXPROCS(0),
		newEngine: func() Engine { return lcs.NewEngine() },
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Calculator) IndelExp() float64 {
	return c.indelExp
}

func (c *Calculator) Transform() Transform {
	return c.transform
}

func (c *Calculator) NProcs() int {
	return c.nprocs
}

// Raw similarity of a pair with lengths refLen, tLen and LCS length l:
// l / indel^p, where indel counts residues outside the LCS in both sequences
func (c *Calculator) RawScore(refLen, tLen int, l uint32) float64 {
	indel := refLen + tLen - 2*int(l)
	if indel == 0 {
		return MaxSimilarity
	}
	return float64(l) / math.Pow(float64(indel), c.indelExp)
}

// Computes row r of the matrix: the similarity of every target with ref
func (c *Calculator) ComputeVector(ref *seq.Sequence, targets []*seq.Sequence, out []float64) error {
	return c.NewWorker().ComputeVector(ref, targets, out)
}

// Fills every row of m. Rows are handed to workers from the last (longest)
// one down, so expensive rows never start at the end of the run.
func (c *Calculator) ComputeMatrix(ctx context.Context, seqs []*seq.Sequence, m *triangle.Matrix[float64]) error {
	n := len(seqs)
	if m.N() != n {
		panic(fmt.Sprintf("matrix dimension %d does not match %d sequences", m.N(), n))
	}
	if n < 2 {
		return nil
	}
	workers := min(c.nprocs, n-1)
	var next, finished atomic.Int64
	next.Store(int64(n))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for range workers {
		g.Go(func() error {
			w := c.NewWorker()
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				r := int(next.Add(-1))
				if r < 1 {
					return nil
				}
				if err := w.ComputeVector(seqs[r], seqs[:r], m.Row(r)); err != nil {
					return fmt.Errorf("row %d: %w", r, err)
				}
				done := int(finished.Add(1))
				logEveryNPercent(done, 10, n-1, fmt.Sprintf("computed %d of %d similarity rows", done, n-1))
			}
		})
	}
	return g.Wait()
}

// Per goroutine state: a private engine and the resolved transform
type Worker struct {
	calc      *Calculator
	engine    Engine
	transform func(float64) float64
}

func (c *Calculator) NewWorker() *Worker {
	return &Worker{calc: c, engine: c.newEngine(), transform: c.transform.Func()}
}

// Writes the transformed similarity of ref with targets[k] to out[k].
// Targets are sent to the engine four at a time; the bit masks of ref exist
// only for the duration of the call. Nil targets are skipped and their out
// entries left untouched.
func (w *Worker) ComputeVector(ref *seq.Sequence, targets []*seq.Sequence, out []float64) error {
	if len(out) < len(targets) {
		panic(fmt.Sprintf("output vector of length %d is too short for %d targets", len(out), len(targets)))
	}
	if err := ref.PrepareBitMasks(); err != nil {
		return err
	}
	defer ref.ReleaseBitMasks()
	refLen := ref.Len()
	for start := 0; start < len(targets); start += lcs.Lanes {
		end := min(start+lcs.Lanes, len(targets))
		var batch [lcs.Lanes]*seq.Sequence
		copy(batch[:], targets[start:end])
		lens, err := w.engine.ComputeFour(ref, batch)
		if err != nil {
			return err
		}
		for k, t := range batch[:end-start] {
			if t == nil {
				continue
			}
			out[start+k] = w.transform(w.calc.RawScore(refLen, t.Len(), lens[k]))
		}
	}
	return nil
}

// logs roughly every n percent of total
func logEveryNPercent(count, n, total int, msg string) {
	step := max(total*n/100, 1)
	if count%step == 0 || count == total {
		log.Println(msg)
	}
}
