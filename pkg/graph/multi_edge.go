package graph

import (
	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/matrix"
)

// A relation-matrix slot holds either one edge ID directly or, when
// parallel edges share the same endpoints, a handle into the relation's
// edge-array arena. The discriminator is the top bit: clear for a direct
// ID, set for a handle over the low 63 bits. The in-memory handle is an
// arena index, never a pointer; the wire format carries the same tagged
// encoding.
const slotTagMSB = uint64(1) << 63

// EdgeSlot is the decoded form of a relation-matrix cell.
type EdgeSlot struct {
	single bool
	id     entities.EntityID // direct edge ID when single
	handle uint64            // arena index when multi
}

// DecodeSlot interprets a raw relation-matrix cell value.
func DecodeSlot(raw uint64) EdgeSlot {
	if raw&slotTagMSB == 0 {
		return EdgeSlot{single: true, id: raw}
	}
	return EdgeSlot{handle: raw &^ slotTagMSB}
}

// IsSingle reports whether the slot holds one direct edge ID.
func (s EdgeSlot) IsSingle() bool { return s.single }

// encodeHandle tags an arena index for storage in a matrix cell.
func encodeHandle(idx uint64) uint64 { return idx | slotTagMSB }

// edgeArrays is the per-relation arena of parallel-edge ID arrays.
// Slots reference arrays by index so slot values stay plain integers.
type edgeArrays struct {
	arrays [][]entities.EntityID
	free   []uint64
}

// alloc creates a new array seeded with the given IDs and returns its
// arena index.
func (ea *edgeArrays) alloc(ids ...entities.EntityID) uint64 {
	arr := make([]entities.EntityID, len(ids))
	copy(arr, ids)
	if n := len(ea.free); n > 0 {
		idx := ea.free[n-1]
		ea.free = ea.free[:n-1]
		ea.arrays[idx] = arr
		return idx
	}
	ea.arrays = append(ea.arrays, arr)
	return uint64(len(ea.arrays) - 1)
}

// get returns the array stored at idx.
func (ea *edgeArrays) get(idx uint64) []entities.EntityID { return ea.arrays[idx] }

// append adds an edge ID to the array at idx.
func (ea *edgeArrays) append(idx uint64, id entities.EntityID) {
	ea.arrays[idx] = append(ea.arrays[idx], id)
}

// remove deletes an edge ID from the array at idx, returning the number
// of IDs remaining.
func (ea *edgeArrays) remove(idx uint64, id entities.EntityID) int {
	arr := ea.arrays[idx]
	for i, e := range arr {
		if e == id {
			ea.arrays[idx] = append(arr[:i], arr[i+1:]...)
			break
		}
	}
	return len(ea.arrays[idx])
}

// release returns the array at idx to the arena free-list.
func (ea *edgeArrays) release(idx uint64) {
	ea.arrays[idx] = nil
	ea.free = append(ea.free, idx)
}

// Relation bundles one relationship type's matrices: the uint64-valued
// slot matrix, its boolean transpose for incoming traversal, and the
// parallel-edge arena.
type Relation struct {
	m         *matrix.Delta
	t         *matrix.Delta
	arrays    edgeArrays
	multiEdge bool // a slot has held parallel edges; recorded in snapshots
}
