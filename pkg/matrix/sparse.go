// Package matrix implements the sparse delta-matrix storage underlying
// FalkorDB graphs.
//
// A Delta presents one logical sparse matrix L assembled from three
// physical matrices: the main matrix M plus two overlays, pending
// additions P+ and pending deletions P-. Writers mutate only the
// overlays, which keeps edits cheap and lets concurrent readers keep a
// consistent view; a Flush folds the overlays back into M.
//
// Lookup precedence is: a cell present in P+ wins, a cell present in P-
// (and not in P+) is deleted, otherwise M decides. A replace therefore
// stages the cell into both overlays at once and still reads back with
// the new value.
//
// Example Usage:
//
//	m := matrix.NewDelta(16, 16)
//	m.Set(3, 7, 42)
//	v, ok := m.Get(3, 7) // 42, true — visible before Flush
//	m.Flush()            // folds P+ into M, applies P-
//
// Iteration is provided by TupleIter, which walks M ∪ P+ in row-major
// order skipping deleted cells.
package matrix

import "sort"

// cell is one stored matrix element.
type cell struct {
	col uint64
	val uint64
}

// sparseRow holds the cells of one non-empty row, sorted by column.
type sparseRow struct {
	id    uint64
	cells []cell
}

// Sparse is a row-major sorted sparse matrix with uint64 payloads.
// Boolean matrices store the value 1. Sparse is the black-box kernel
// primitive; all graph-visible semantics live in Delta.
type Sparse struct {
	nrows uint64
	ncols uint64
	nvals uint64
	rows  []sparseRow // sorted by row id, empty rows removed
}

// NewSparse returns an empty nrows x ncols matrix.
func NewSparse(nrows, ncols uint64) *Sparse {
	return &Sparse{nrows: nrows, ncols: ncols}
}

// Nrows returns the row dimension.
func (s *Sparse) Nrows() uint64 { return s.nrows }

// Ncols returns the column dimension.
func (s *Sparse) Ncols() uint64 { return s.ncols }

// NVals returns the number of stored cells.
func (s *Sparse) NVals() uint64 { return s.nvals }

// Resize grows the matrix dimensions. Dimensions never shrink.
func (s *Sparse) Resize(nrows, ncols uint64) {
	if nrows > s.nrows {
		s.nrows = nrows
	}
	if ncols > s.ncols {
		s.ncols = ncols
	}
}

// findRow returns the position of row id in s.rows and whether it exists.
func (s *Sparse) findRow(id uint64) (int, bool) {
	i := sort.Search(len(s.rows), func(k int) bool { return s.rows[k].id >= id })
	return i, i < len(s.rows) && s.rows[i].id == id
}

func (r *sparseRow) findCol(col uint64) (int, bool) {
	i := sort.Search(len(r.cells), func(k int) bool { return r.cells[k].col >= col })
	return i, i < len(r.cells) && r.cells[i].col == col
}

// Get returns the value stored at (i, j).
func (s *Sparse) Get(i, j uint64) (uint64, bool) {
	ri, ok := s.findRow(i)
	if !ok {
		return 0, false
	}
	ci, ok := s.rows[ri].findCol(j)
	if !ok {
		return 0, false
	}
	return s.rows[ri].cells[ci].val, true
}

// Set stores v at (i, j), replacing any existing value.
func (s *Sparse) Set(i, j, v uint64) {
	ri, ok := s.findRow(i)
	if !ok {
		s.rows = append(s.rows, sparseRow{})
		copy(s.rows[ri+1:], s.rows[ri:])
		s.rows[ri] = sparseRow{id: i}
	}
	r := &s.rows[ri]
	ci, ok := r.findCol(j)
	if ok {
		r.cells[ci].val = v
		return
	}
	r.cells = append(r.cells, cell{})
	copy(r.cells[ci+1:], r.cells[ci:])
	r.cells[ci] = cell{col: j, val: v}
	s.nvals++
}

// Remove deletes the cell at (i, j), reporting whether it was present.
func (s *Sparse) Remove(i, j uint64) bool {
	ri, ok := s.findRow(i)
	if !ok {
		return false
	}
	r := &s.rows[ri]
	ci, ok := r.findCol(j)
	if !ok {
		return false
	}
	r.cells = append(r.cells[:ci], r.cells[ci+1:]...)
	if len(r.cells) == 0 {
		s.rows = append(s.rows[:ri], s.rows[ri+1:]...)
	}
	s.nvals--
	return true
}

// Clear removes every cell, keeping dimensions.
func (s *Sparse) Clear() {
	s.rows = nil
	s.nvals = 0
}

// cursor walks a Sparse in row-major order. It indexes into the matrix
// internals directly, so structural mutation invalidates it; callers
// re-seek after any write (iterators re-attach at batch boundaries).
type cursor struct {
	s  *Sparse
	ri int
	ci int
}

// seekRow positions the cursor at the first cell whose row id >= r.
func (c *cursor) seekRow(r uint64) {
	c.ri = sort.Search(len(c.s.rows), func(k int) bool { return c.s.rows[k].id >= r })
	c.ci = 0
}

// peek returns the current cell without advancing.
func (c *cursor) peek() (row, col, val uint64, ok bool) {
	// normalize a column position left stale by row mutation
	for c.ri < len(c.s.rows) && c.ci >= len(c.s.rows[c.ri].cells) {
		c.ri++
		c.ci = 0
	}
	if c.ri >= len(c.s.rows) {
		return 0, 0, 0, false
	}
	r := &c.s.rows[c.ri]
	return r.id, r.cells[c.ci].col, r.cells[c.ci].val, true
}

// advance moves the cursor to the next cell.
func (c *cursor) advance() {
	if c.ri >= len(c.s.rows) {
		return
	}
	c.ci++
	if c.ci >= len(c.s.rows[c.ri].cells) {
		c.ri++
		c.ci = 0
	}
}
