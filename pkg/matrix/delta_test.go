package matrix

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, d *Delta) map[[2]uint64]uint64 {
	t.Helper()
	var it TupleIter
	require.NoError(t, it.Attach(d))
	out := make(map[[2]uint64]uint64)
	var lastRow, lastCol uint64
	first := true
	for {
		r, c, v, ok := it.Next()
		if !ok {
			break
		}
		if !first {
			inOrder := r > lastRow || (r == lastRow && c > lastCol)
			require.True(t, inOrder, "tuples must ascend row-major: (%d,%d) after (%d,%d)", r, c, lastRow, lastCol)
		}
		first = false
		lastRow, lastCol = r, c
		_, dup := out[[2]uint64{r, c}]
		require.False(t, dup, "cell (%d,%d) yielded twice", r, c)
		out[[2]uint64{r, c}] = v
	}
	return out
}

func TestDeltaSetGetClear(t *testing.T) {
	d := NewDelta(8, 8)

	t.Run("set then get", func(t *testing.T) {
		d.Set(1, 2, 42)
		v, ok := d.Get(1, 2)
		require.True(t, ok)
		assert.Equal(t, uint64(42), v)
		assert.True(t, d.Pending())
	})

	t.Run("clear pending addition", func(t *testing.T) {
		d.Clear(1, 2)
		_, ok := d.Get(1, 2)
		assert.False(t, ok)
	})

	t.Run("clear main cell stages deletion", func(t *testing.T) {
		d.Set(3, 3, 7)
		d.Flush()
		assert.False(t, d.Pending())

		d.Clear(3, 3)
		assert.True(t, d.Pending())
		_, ok := d.Get(3, 3)
		assert.False(t, ok, "deletion must be visible before flush")

		d.Flush()
		_, ok = d.Get(3, 3)
		assert.False(t, ok)
	})

	t.Run("clear absent cell is a no-op", func(t *testing.T) {
		d.Clear(7, 7)
		assert.False(t, d.Pending())
	})
}

func TestDeltaReplaceMainValue(t *testing.T) {
	d := NewDelta(4, 4)
	d.Set(0, 0, 10)
	d.Flush()

	d.Set(0, 0, 20)
	v, ok := d.Get(0, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(20), v, "replace visible before flush")

	got := collect(t, d)
	assert.Equal(t, uint64(20), got[[2]uint64{0, 0}], "iterator must yield the P+ value")

	d.Flush()
	v, ok = d.Get(0, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(20), v, "replace survives flush")
}

// For any sequence of set/clear followed by flush, logical reads before
// and after the flush are identical.
func TestDeltaFlushPreservesLogicalView(t *testing.T) {
	const dim = 32
	rng := rand.New(rand.NewSource(7))

	d := NewDelta(dim, dim)
	// half the edits land in the main matrix first
	for k := 0; k < 200; k++ {
		d.Set(uint64(rng.Intn(dim)), uint64(rng.Intn(dim)), uint64(rng.Intn(100)))
	}
	d.Flush()
	for k := 0; k < 300; k++ {
		i, j := uint64(rng.Intn(dim)), uint64(rng.Intn(dim))
		if rng.Intn(3) == 0 {
			d.Clear(i, j)
		} else {
			d.Set(i, j, uint64(rng.Intn(100)))
		}
	}

	before := collect(t, d)
	d.Flush()
	require.False(t, d.Pending())
	after := collect(t, d)

	assert.Equal(t, before, after)

	// point reads agree with iteration
	for i := uint64(0); i < dim; i++ {
		for j := uint64(0); j < dim; j++ {
			v, ok := d.Get(i, j)
			want, defined := after[[2]uint64{i, j}]
			require.Equal(t, defined, ok, "cell (%d,%d)", i, j)
			if defined {
				require.Equal(t, want, v, "cell (%d,%d)", i, j)
			}
		}
	}
}

func TestDeltaResizeNeverShrinks(t *testing.T) {
	d := NewDelta(4, 4)
	d.Resize(16, 16)
	assert.Equal(t, uint64(16), d.Nrows())
	d.Resize(8, 8)
	assert.Equal(t, uint64(16), d.Nrows(), "resize must never shrink")
	assert.Equal(t, uint64(16), d.Ncols())
}

func TestTupleIterRanges(t *testing.T) {
	d := NewDelta(10, 10)
	for i := uint64(0); i < 10; i++ {
		d.Set(i, i, i+1)
	}
	d.Flush()
	d.Set(4, 9, 99) // pending addition inside the range
	d.Clear(5, 5)   // pending deletion inside the range

	t.Run("attach range is inclusive", func(t *testing.T) {
		var it TupleIter
		require.NoError(t, it.AttachRange(d, 3, 6))
		var rows []uint64
		for {
			r, _, _, ok := it.Next()
			if !ok {
				break
			}
			rows = append(rows, r)
		}
		assert.Equal(t, []uint64{3, 4, 4, 6}, rows, "row 5 deleted, (4,9) pending add included")
	})

	t.Run("max below min exhausts immediately", func(t *testing.T) {
		var it TupleIter
		require.NoError(t, it.AttachRange(d, 6, 3))
		_, _, _, ok := it.Next()
		assert.False(t, ok)
	})

	t.Run("min beyond dimensions is a mismatch", func(t *testing.T) {
		var it TupleIter
		err := it.AttachRange(d, 10, 20)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("jump to row resumes mid scan", func(t *testing.T) {
		var it TupleIter
		require.NoError(t, it.Attach(d))
		require.NoError(t, it.JumpToRow(7))
		r, c, v, ok := it.Next()
		require.True(t, ok)
		assert.Equal(t, [3]uint64{7, 7, 8}, [3]uint64{r, c, v})
	})

	t.Run("reset rewinds to range start", func(t *testing.T) {
		var it TupleIter
		require.NoError(t, it.AttachRange(d, 2, 4))
		for {
			if _, _, _, ok := it.Next(); !ok {
				break
			}
		}
		require.NoError(t, it.Reset())
		r, _, _, ok := it.Next()
		require.True(t, ok)
		assert.Equal(t, uint64(2), r)
	})

	t.Run("is attached identity", func(t *testing.T) {
		var it TupleIter
		other := NewDelta(10, 10)
		require.NoError(t, it.Attach(d))
		assert.True(t, it.IsAttached(d))
		assert.False(t, it.IsAttached(other))
		it.Detach()
		assert.False(t, it.IsAttached(d))
	})
}

func TestTupleIterEmptyMatrix(t *testing.T) {
	d := NewDelta(0, 0)
	var it TupleIter
	require.NoError(t, it.Attach(d))
	_, _, _, ok := it.Next()
	assert.False(t, ok)
}

func TestSparseRemoveCompactsRows(t *testing.T) {
	s := NewSparse(4, 4)
	s.Set(2, 1, 5)
	s.Set(2, 3, 6)
	require.True(t, s.Remove(2, 1))
	require.True(t, s.Remove(2, 3))
	assert.False(t, s.Remove(2, 3))
	assert.Equal(t, uint64(0), s.NVals())
	_, ok := s.Get(2, 3)
	assert.False(t, ok)
}
