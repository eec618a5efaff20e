// Package implementing a bit-parallel longest common subsequence engine. The
// reference sequence is represented by one bit mask per symbol; each symbol
// of a compared sequence then updates a bit vector of reference length with a
// constant number of word operations (Hyyrö 2004, after Allison and Dix).
package lcs

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/jsdoublel/guidetree/internal/seq"
)

const Lanes = 4

var ErrMasksNotPrepared = errors.New("reference bit masks not prepared")

// Engine keeps scratch vectors between calls and must not be shared between
// goroutines.
type Engine struct {
	v [Lanes][]uint64
}

func NewEngine() *Engine {
	return &Engine{}
}

// Computes the LCS length of ref against up to four sequences. Nil lanes are
// skipped and report zero. ref must have prepared bit masks.
func (e *Engine) ComputeFour(ref *seq.Sequence, targets [Lanes]*seq.Sequence) ([Lanes]uint32, error) {
	var lens [Lanes]uint32
	if !ref.Prepared() {
		return lens, fmt.Errorf("sequence %d (%s): %w", ref.ID, ref.Name, ErrMasksNotPrepared)
	}
	words := ref.Words()
	maxLen := 0
	for k, t := range targets {
		if t == nil {
			continue
		}
		if cap(e.v[k]) < words {
			e.v[k] = make([]uint64, words)
		}
		e.v[k] = e.v[k][:words]
		for w := range e.v[k] {
			e.v[k][w] = ^uint64(0)
		}
		maxLen = max(maxLen, t.Len())
	}
	if words == 0 {
		return lens, nil
	}
	for p := range maxLen {
		for k, t := range targets {
			if t == nil || p >= t.Len() {
				continue
			}
			step(e.v[k], ref.Mask(t.At(p)))
		}
	}
	for k, t := range targets {
		if t == nil {
			continue
		}
		ones := 0
		for _, w := range e.v[k] {
			ones += bits.OnesCount64(w)
		}
		lens[k] = uint32(words*seq.WordBits - ones)
	}
	return lens, nil
}

// V' = (V + (V & M)) | (V &^ M), with the addition carried across words
func step(v, mask []uint64) {
	var carry uint64
	for w, m := range mask {
		x := v[w]
		var sum uint64
		sum, carry = bits.Add64(x, x&m, carry)
		v[w] = sum | (x &^ m)
	}
}

// Quadratic dynamic programming LCS of two encoded sequences
func Length(a, b []byte) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := range a {
		for j := range b {
			if a[i] == b[j] {
				cur[j+1] = prev[j] + 1
			} else {
				cur[j+1] = max(prev[j+1], cur[j])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
