package matrix

import "github.com/pkg/errors"

// ErrDimensionMismatch is returned when an iterator range lies outside
// the matrix dimensions. Callers recover by tightening the range or by
// falling back to an empty scan.
var ErrDimensionMismatch = errors.New("matrix: iterator range exceeds matrix dimensions")

// TupleIter iterates a Delta in row-major order, yielding the union
// M ∪ P+ and skipping cells staged for deletion. Within a row, columns
// ascend; a cell present in both M and P+ yields the P+ value once.
//
// The iterator captures the physical triple at attach time. It tolerates
// a flush happening between batches only because users re-attach after
// releasing the graph lock; a flush under a live iterator moves the scan
// position unpredictably but never yields deleted cells twice within one
// attach window.
//
// The zero TupleIter is detached; Attach before use.
type TupleIter struct {
	d        *Delta
	minRow   uint64
	maxRow   uint64
	mCur     cursor
	pCur     cursor
	depleted bool
}

// Attach binds the iterator to m over the full row range. An empty
// matrix attaches permanently exhausted.
func (it *TupleIter) Attach(m *Delta) error {
	if m.Nrows() == 0 {
		it.d = m
		it.minRow = 1
		it.maxRow = 0
		it.mCur = cursor{s: m.m}
		it.pCur = cursor{s: m.plus}
		it.depleted = true
		return nil
	}
	return it.AttachRange(m, 0, m.Nrows()-1)
}

// AttachRange binds the iterator to m over rows [minRow, maxRow], both
// inclusive. A minRow beyond the matrix rows is a dimension mismatch; a
// maxRow below minRow attaches an immediately exhausted iterator.
func (it *TupleIter) AttachRange(m *Delta, minRow, maxRow uint64) error {
	if minRow >= m.Nrows() {
		return ErrDimensionMismatch
	}
	if maxRow >= m.Nrows() {
		maxRow = m.Nrows() - 1
	}
	it.d = m
	it.minRow = minRow
	it.maxRow = maxRow
	it.mCur = cursor{s: m.m}
	it.pCur = cursor{s: m.plus}
	it.depleted = maxRow < minRow
	if !it.depleted {
		it.mCur.seekRow(minRow)
		it.pCur.seekRow(minRow)
	}
	return nil
}

// JumpToRow repositions the iterator at the first tuple whose row is
// >= r, staying within the attached range.
func (it *TupleIter) JumpToRow(r uint64) error {
	if it.d == nil {
		return errors.New("matrix: jump on detached iterator")
	}
	if r < it.minRow {
		r = it.minRow
	}
	it.depleted = r > it.maxRow
	if !it.depleted {
		it.mCur.seekRow(r)
		it.pCur.seekRow(r)
	}
	return nil
}

// IsAttached reports whether the iterator is bound to m. Operators that
// cache iterators use this as an identity test.
func (it *TupleIter) IsAttached(m *Delta) bool { return it.d == m }

// Reset rewinds the iterator to the start of its attached range.
func (it *TupleIter) Reset() error {
	if it.d == nil {
		return errors.New("matrix: reset on detached iterator")
	}
	return it.JumpToRow(it.minRow)
}

// Detach releases the iterator. It may be re-attached afterwards.
func (it *TupleIter) Detach() {
	*it = TupleIter{}
}

// Next yields the next (row, col, value) tuple, or ok=false once the
// range is exhausted.
func (it *TupleIter) Next() (row, col, val uint64, ok bool) {
	if it.d == nil || it.depleted {
		return 0, 0, 0, false
	}

	for {
		mRow, mCol, mVal, mOK := it.mCur.peek()
		pRow, pCol, pVal, pOK := it.pCur.peek()

		if mOK && mRow > it.maxRow {
			mOK = false
		}
		if pOK && pRow > it.maxRow {
			pOK = false
		}
		if !mOK && !pOK {
			it.depleted = true
			return 0, 0, 0, false
		}

		// pick the smaller (row, col); on a tie P+ wins
		var fromPlus bool
		switch {
		case !mOK:
			fromPlus = true
		case !pOK:
			fromPlus = false
		case pRow < mRow || (pRow == mRow && pCol <= mCol):
			fromPlus = true
		}

		if fromPlus {
			it.pCur.advance()
			if mOK && pRow == mRow && pCol == mCol {
				// same cell in both, consume the shadowed main entry
				it.mCur.advance()
			}
			return pRow, pCol, pVal, true
		}

		it.mCur.advance()
		if _, deleted := it.d.minus.Get(mRow, mCol); deleted {
			continue
		}
		return mRow, mCol, mVal, true
	}
}
