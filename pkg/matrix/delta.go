package matrix

// Delta is the logical matrix L over the physical triple (M, P+, P-).
//
// All writes land in the overlays; M changes only inside Flush. The
// invariants visible to readers:
//
//  1. L[i,j] = P+[i,j] when present, else M[i,j] unless P-[i,j].
//  2. A cell never sits in P+ and M with different liveness: writers move
//     a cell into P+ only when absent from M, except for a value replace,
//     which stages the cell into both P- and P+.
//  3. Flush folds P+ into M, erases P- cells from M and clears both
//     overlays; afterwards M alone represents L.
//  4. Dimensions never shrink and always bound the overlays.
//
// Delta performs no locking. The graph facade serializes Flush against
// readers through its reader-writer lock.
type Delta struct {
	m     *Sparse
	plus  *Sparse
	minus *Sparse
}

// NewDelta returns an empty nrows x ncols delta matrix.
func NewDelta(nrows, ncols uint64) *Delta {
	return &Delta{
		m:     NewSparse(nrows, ncols),
		plus:  NewSparse(nrows, ncols),
		minus: NewSparse(nrows, ncols),
	}
}

// Nrows returns the row dimension of M.
func (d *Delta) Nrows() uint64 { return d.m.Nrows() }

// Ncols returns the column dimension of M.
func (d *Delta) Ncols() uint64 { return d.m.Ncols() }

// Resize grows the triple to at least (nrows, ncols). Never shrinks.
func (d *Delta) Resize(nrows, ncols uint64) {
	d.m.Resize(nrows, ncols)
	d.plus.Resize(nrows, ncols)
	d.minus.Resize(nrows, ncols)
}

// Set stores v at (i, j). A cell already present in M is staged as a
// delete-then-add so the new value is visible immediately and survives
// the next Flush.
func (d *Delta) Set(i, j, v uint64) {
	if _, inMain := d.m.Get(i, j); inMain {
		d.minus.Set(i, j, 1)
		d.plus.Set(i, j, v)
		return
	}
	d.minus.Remove(i, j)
	d.plus.Set(i, j, v)
}

// SetBool stores a boolean presence marker at (i, j).
func (d *Delta) SetBool(i, j uint64) { d.Set(i, j, 1) }

// Clear deletes the cell at (i, j): a pending addition is dropped, a main
// cell is staged into P-, an absent cell is a no-op.
func (d *Delta) Clear(i, j uint64) {
	if d.plus.Remove(i, j) {
		// the cell may also be a staged replace of a main cell; the P-
		// marker, if any, stays and deletes the main copy at flush
		return
	}
	if _, inMain := d.m.Get(i, j); inMain {
		d.minus.Set(i, j, 1)
	}
}

// Get returns the logical value at (i, j).
func (d *Delta) Get(i, j uint64) (uint64, bool) {
	if v, ok := d.plus.Get(i, j); ok {
		return v, true
	}
	if _, deleted := d.minus.Get(i, j); deleted {
		return 0, false
	}
	return d.m.Get(i, j)
}

// Pending reports whether either overlay holds staged edits.
func (d *Delta) Pending() bool {
	return d.plus.NVals() > 0 || d.minus.NVals() > 0
}

// Flush folds the overlays into M and clears them. Deletions apply before
// additions so a staged replace lands with its new value.
func (d *Delta) Flush() {
	for ri := range d.minus.rows {
		r := &d.minus.rows[ri]
		for _, c := range r.cells {
			d.m.Remove(r.id, c.col)
		}
	}
	for ri := range d.plus.rows {
		r := &d.plus.rows[ri]
		for _, c := range r.cells {
			d.m.Set(r.id, c.col, c.val)
		}
	}
	d.plus.Clear()
	d.minus.Clear()
}

// NVals returns the number of logical cells, walking the union of M and
// P+ minus P-. Intended for statistics, not hot paths.
func (d *Delta) NVals() uint64 {
	var it TupleIter
	if err := it.Attach(d); err != nil {
		return 0
	}
	var n uint64
	for {
		if _, _, _, ok := it.Next(); !ok {
			return n
		}
		n++
	}
}
