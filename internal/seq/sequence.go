// Package containing the encoded sequence type shared by the similarity,
// lcs, and guide packages
package seq

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
)

// Symbols of the encoding alphabet, in code order
const Alphabet = "ARNDCQEGHILKMFPSTWYVBZX*"

const (
	AlphabetSize = len(Alphabet)
	WordBits     = 64
)

var ErrMasksInUse = errors.New("bit masks already prepared")

var codes = makeCodes()

// Byte to code lookup; 0xff marks bytes that are skipped (gaps, whitespace)
func makeCodes() [256]byte {
	var c [256]byte
	for i := range c {
		c[i] = 0xff
	}
	for i := range len(Alphabet) {
		c[Alphabet[i]] = byte(i)
	}
	for b := 'A'; b <= 'Z'; b++ {
		if c[b] == 0xff {
			c[b] = c['X']
		}
		c[b+'a'-'A'] = c[b]
	}
	return c
}

// Immutable encoded sequence. Bit masks are only held while the sequence is
// used as a reference in a similarity computation.
type Sequence struct {
	ID    int      // position in input
	Name  string   // sequence name
	data  []byte   // encoded symbols
	masks []uint64 // AlphabetSize consecutive mask vectors, Words() each
	inUse atomic.Bool
}

// Encodes residues into a new sequence. Letters outside the alphabet become
// X, everything that is not a letter or '*' is dropped.
func New(id int, name, residues string) *Sequence {
	data := make([]byte, 0, len(residues))
	for i := range len(residues) {
		if c := codes[residues[i]]; c != 0xff {
			data = append(data, c)
		}
	}
	return &Sequence{ID: id, Name: name, data: data}
}

func (s *Sequence) Len() int {
	return len(s.data)
}

// Encoded symbol at position i
func (s *Sequence) At(i int) byte {
	return s.data[i]
}

// Encoded symbols; callers must not modify the returned slice
func (s *Sequence) Symbols() []byte {
	return s.data
}

// Decoded residues
func (s *Sequence) String() string {
	out := make([]byte, len(s.data))
	for i, c := range s.data {
		out[i] = Alphabet[c]
	}
	return string(out)
}

// Number of 64 bit words in a single symbol mask
func (s *Sequence) Words() int {
	return (len(s.data) + WordBits - 1) / WordBits
}

// Builds one bit vector per alphabet symbol with bit i set where the sequence
// holds that symbol at position i. Must be paired with ReleaseBitMasks; a
// second preparation before release returns ErrMasksInUse.
func (s *Sequence) PrepareBitMasks() error {
	if !s.inUse.CompareAndSwap(false, true) {
		return fmt.Errorf("sequence %d (%s): %w", s.ID, s.Name, ErrMasksInUse)
	}
	n := uint(len(s.data))
	sets := make([]*bitset.BitSet, AlphabetSize)
	for i := range sets {
		sets[i] = bitset.New(n)
	}
	for i, c := range s.data {
		sets[c].Set(uint(i))
	}
	words := s.Words()
	s.masks = make([]uint64, AlphabetSize*words)
	for c, set := range sets {
		copy(s.masks[c*words:(c+1)*words], set.Bytes())
	}
	return nil
}

// Drops the bit masks built by PrepareBitMasks
func (s *Sequence) ReleaseBitMasks() {
	s.masks = nil
	s.inUse.Store(false)
}

func (s *Sequence) Prepared() bool {
	return s.masks != nil
}

// Mask of positions holding symbol c; nil if masks are not prepared
func (s *Sequence) Mask(c byte) []uint64 {
	if s.masks == nil {
		return nil
	}
	words := s.Words()
	return s.masks[int(c)*words : (int(c)+1)*words]
}
