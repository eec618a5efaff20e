// Package implementing packed storage for symmetric matrices without a
// diagonal. Only the lower triangle is stored, row by row: row r holds the r
// entries (r, 0) ... (r, r-1).
package triangle

import (
	"fmt"
	"slices"
)

type Value interface{ float32 | float64 }

type Matrix[T Value] struct {
	n    int
	data []T
}

// Allocates the full n(n-1)/2 buffer up front, so rows can be filled
// concurrently without further allocation.
func New[T Value](n int) *Matrix[T] {
	if n < 0 {
		panic(fmt.Sprintf("negative matrix dimension %d", n))
	}
	return &Matrix[T]{n: n, data: make([]T, Size(n))}
}

// Number of stored elements for dimension n
func Size(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

// Offset of the first element of row r
func RowOffset(r int) int {
	return r * (r - 1) / 2
}

// Storage offset of element (i, j); symmetric in i and j
func Offset(i, j int) int {
	if i == j {
		panic(fmt.Sprintf("diagonal element (%d, %d) is not stored", i, j))
	}
	if i < j {
		i, j = j, i
	}
	return RowOffset(i) + j
}

func (m *Matrix[T]) N() int {
	return m.n
}

func (m *Matrix[T]) Len() int {
	return len(m.data)
}

func (m *Matrix[T]) check(i, j int) {
	if i < 0 || j < 0 || i >= m.n || j >= m.n {
		panic(fmt.Sprintf("index (%d, %d) out of range for dimension %d", i, j, m.n))
	}
}

func (m *Matrix[T]) Get(i, j int) T {
	m.check(i, j)
	return m.data[Offset(i, j)]
}

func (m *Matrix[T]) Set(i, j int, v T) {
	m.check(i, j)
	m.data[Offset(i, j)] = v
}

// Returns the r stored elements of row r as a view into the buffer. Views of
// different rows never overlap.
func (m *Matrix[T]) Row(r int) []T {
	if r < 0 || r >= m.n {
		panic(fmt.Sprintf("row %d out of range for dimension %d", r, m.n))
	}
	off := RowOffset(r)
	return m.data[off : off+r : off+r]
}

func (m *Matrix[T]) Clone() *Matrix[T] {
	return &Matrix[T]{n: m.n, data: slices.Clone(m.data)}
}

// Underlying buffer
func (m *Matrix[T]) Data() []T {
	return m.data
}

// Index pair (i, j), i > j, stored at offset off
func (m *Matrix[T]) Pair(off int) (int, int) {
	if off < 0 || off >= len(m.data) {
		panic(fmt.Sprintf("offset %d out of range (%d elements)", off, len(m.data)))
	}
	i := 1
	for RowOffset(i+1) <= off {
		i++
	}
	return i, off - RowOffset(i)
}
