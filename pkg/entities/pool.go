package entities

import "sort"

// blockSize is the number of slots per allocation block. Blocks are never
// freed; tombstoned slots are reused through the free-list.
const blockSize = 512

type slot[T any] struct {
	item T
	live bool
}

// Pool is a block-allocated entity store with constant-time access by ID.
//
// Append hands out the lowest free ID first, then grows monotonically.
// Deletion tombstones the slot and pushes the ID onto the free-list;
// iteration skips tombstones. The free-list keeps deletion order so a
// snapshot can restore the exact ID layout.
type Pool[T any] struct {
	blocks [][]slot[T]
	size   uint64 // high-water mark: one past the largest ID ever handed out
	live   uint64
	free   []EntityID // deletion order
}

// NewPool returns an empty pool.
func NewPool[T any]() *Pool[T] { return &Pool[T]{} }

// Cap returns the high-water mark: every live ID is below it.
func (p *Pool[T]) Cap() uint64 { return p.size }

// Count returns the number of live entities.
func (p *Pool[T]) Count() uint64 { return p.live }

// DeletedCount returns the number of reusable IDs.
func (p *Pool[T]) DeletedCount() uint64 { return uint64(len(p.free)) }

// DeletedIDs returns the free-list in deletion order. The slice is shared;
// callers must not mutate it.
func (p *Pool[T]) DeletedIDs() []EntityID { return p.free }

// EnsureCapacity grows the block array so IDs below n need no further
// allocation. Used by the snapshot decoder to pre-size the store.
func (p *Pool[T]) EnsureCapacity(n uint64) {
	for uint64(len(p.blocks))*blockSize < n {
		p.blocks = append(p.blocks, make([]slot[T], blockSize))
	}
}

func (p *Pool[T]) slotAt(id EntityID) *slot[T] {
	return &p.blocks[id/blockSize][id%blockSize]
}

// Add allocates an entity, reusing the lowest free ID when one exists.
func (p *Pool[T]) Add() (EntityID, *T) {
	var id EntityID
	if len(p.free) > 0 {
		min := 0
		for i := 1; i < len(p.free); i++ {
			if p.free[i] < p.free[min] {
				min = i
			}
		}
		id = p.free[min]
		p.free = append(p.free[:min], p.free[min+1:]...)
	} else {
		id = p.size
		p.size++
		p.EnsureCapacity(p.size)
	}
	s := p.slotAt(id)
	var zero T
	s.item = zero
	s.live = true
	p.live++
	return id, &s.item
}

// AddWithID places an entity at a specific ID, growing the pool as
// needed. Only the snapshot decoder uses this; it never collides with a
// live slot.
func (p *Pool[T]) AddWithID(id EntityID) *T {
	if id >= p.size {
		p.size = id + 1
	}
	p.EnsureCapacity(p.size)
	s := p.slotAt(id)
	var zero T
	s.item = zero
	s.live = true
	p.live++
	return &s.item
}

// MarkDeleted reconstructs the free-list, in order, from a decoded
// snapshot. The IDs must not refer to live slots.
func (p *Pool[T]) MarkDeleted(ids []EntityID) {
	for _, id := range ids {
		if id >= p.size {
			p.size = id + 1
		}
		p.EnsureCapacity(p.size)
		p.free = append(p.free, id)
	}
}

// Get returns the entity stored under id, or ok=false for tombstoned or
// never-allocated IDs.
func (p *Pool[T]) Get(id EntityID) (*T, bool) {
	if id >= p.size {
		return nil, false
	}
	s := p.slotAt(id)
	if !s.live {
		return nil, false
	}
	return &s.item, true
}

// Delete tombstones id and pushes it onto the free-list.
func (p *Pool[T]) Delete(id EntityID) bool {
	if !p.Tombstone(id) {
		return false
	}
	p.Release(id)
	return true
}

// Tombstone marks id dead without returning it to the free-list. The
// graph uses this for deletions staged in matrix overlays: the entity
// stops resolving immediately, but its ID becomes reusable only when
// Release is called at the flush barrier.
func (p *Pool[T]) Tombstone(id EntityID) bool {
	if id >= p.size {
		return false
	}
	s := p.slotAt(id)
	if !s.live {
		return false
	}
	var zero T
	s.item = zero
	s.live = false
	p.live--
	return true
}

// Release pushes a previously tombstoned ID onto the free-list.
func (p *Pool[T]) Release(id EntityID) {
	p.free = append(p.free, id)
}

// CompactFreeList orders the free-list ascending so subsequent reuse is
// deterministic lowest-first without scanning.
func (p *Pool[T]) CompactFreeList() {
	sort.Slice(p.free, func(i, j int) bool { return p.free[i] < p.free[j] })
}

// Iter returns an iterator over live entities in ascending-ID order. The
// end is recorded at creation: IDs appended afterwards are not visited in
// this pass. Holding an iterator across deletions is safe; deleted slots
// are skipped.
func (p *Pool[T]) Iter() *PoolIter[T] {
	return &PoolIter[T]{pool: p, end: p.size}
}

// PoolIter walks a pool in ascending-ID order.
type PoolIter[T any] struct {
	pool *Pool[T]
	next EntityID
	end  uint64
}

// Next returns the next live (id, entity) pair, or ok=false when the
// recorded end is reached.
func (it *PoolIter[T]) Next() (EntityID, *T, bool) {
	for it.next < it.end {
		id := it.next
		it.next++
		s := it.pool.slotAt(id)
		if s.live {
			return id, &s.item, true
		}
	}
	return 0, nil, false
}

// Reset rewinds the iterator and re-records the end.
func (it *PoolIter[T]) Reset() {
	it.next = 0
	it.end = it.pool.size
}
