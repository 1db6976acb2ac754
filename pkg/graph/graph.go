// Package graph implements the FalkorDB graph facade: entity stores,
// per-label and per-relation delta matrices, the schema registry and the
// locking discipline that lets concurrent readers share one consistent
// view while a single writer stages changes in matrix overlays.
//
// A Graph aggregates:
//   - a node pool and an edge pool (block-allocated, reusable IDs)
//   - one boolean diagonal matrix per label (the scan source)
//   - one uint64 slot matrix per relationship type, with its boolean
//     transpose and a parallel-edge arena
//   - the adjacency matrix (boolean OR of all relations) and the
//     node-label matrix
//
// Example Usage:
//
//	g := graph.New("social")
//	g.AcquireWriteLock()
//	person := g.AddLabel("Person")
//	knows := g.AddRelation("KNOWS")
//	a := g.CreateNode([]entities.LabelID{person}, nil)
//	b := g.CreateNode([]entities.LabelID{person}, nil)
//	g.CreateEdge(a.ID, b.ID, knows, nil)
//	g.ApplyAllPending(false)
//	g.ReleaseLock()
//
// All mutating methods and ApplyAllPending require the write lock; read
// methods require at least the read lock. The lock itself is
// writer-preferring: once a writer waits, new readers queue behind it.
package graph

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/matrix"
)

// SyncPolicy controls how matrix accessors reconcile a matrix with the
// current store capacity when the writer touches it.
type SyncPolicy int

const (
	// SyncPolicyNop performs no implicit maintenance; the caller flushes.
	SyncPolicyNop SyncPolicy = iota
	// SyncPolicyResize grows matrices on dimension mismatch only. Set
	// during bulk decode, where entity counts are known up front.
	SyncPolicyResize
	// SyncPolicyFlushResize grows and, when the writer holds the lock,
	// folds pending overlays before handing the matrix out. The steady
	// state default.
	SyncPolicyFlushResize
)

// Errors returned by entity operations.
var (
	ErrNodeNotFound = errors.New("graph: node not found")
	ErrEdgeNotFound = errors.New("graph: edge not found")
)

// EntityObserver receives entity mutations as they commit. Indices
// register an observer so writers keep them current while the background
// populator is still running (or after it finished).
type EntityObserver interface {
	NodeCreated(n *entities.Node)
	NodeDeleted(n *entities.Node)
	EdgeCreated(e *entities.Edge)
	EdgeDeleted(e *entities.Edge)
}

// Graph is the facade over one property graph.
type Graph struct {
	name string

	mu         sync.RWMutex
	writerHeld bool

	// syncMu serializes policy-driven matrix maintenance so two code
	// paths never fold the same overlay concurrently.
	syncMu sync.Mutex
	policy SyncPolicy

	nodes *entities.Pool[entities.Node]
	edges *entities.Pool[entities.Edge]

	labels     []*matrix.Delta
	relations  []*Relation
	adjacency  *matrix.Delta
	nodeLabels *matrix.Delta

	schema *Schema

	// entities tombstoned but not yet returned to the free-lists;
	// drained by ApplyAllPending
	pendingNodeFrees []entities.EntityID
	pendingEdgeFrees []entities.EntityID

	labelStats    []uint64 // live nodes per label
	relationStats []uint64 // live edges per relation

	observers []EntityObserver

	log logrus.FieldLogger
}

// New returns an empty graph with the default flush-resize policy.
func New(name string) *Graph {
	return &Graph{
		name:       name,
		policy:     SyncPolicyFlushResize,
		nodes:      entities.NewPool[entities.Node](),
		edges:      entities.NewPool[entities.Edge](),
		adjacency:  matrix.NewDelta(0, 0),
		nodeLabels: matrix.NewDelta(0, 0),
		schema:     NewSchema(),
		log:        logrus.StandardLogger().WithField("graph", name),
	}
}

// SetLogger replaces the graph's logger.
func (g *Graph) SetLogger(log logrus.FieldLogger) { g.log = log.WithField("graph", g.name) }

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Schema exposes the name registries. Callers must hold the graph lock.
func (g *Graph) Schema() *Schema { return g.schema }

// RegisterObserver subscribes o to committed entity mutations.
func (g *Graph) RegisterObserver(o EntityObserver) { g.observers = append(g.observers, o) }

// DeregisterObserver removes o.
func (g *Graph) DeregisterObserver(o EntityObserver) {
	for i, reg := range g.observers {
		if reg == o {
			g.observers = append(g.observers[:i], g.observers[i+1:]...)
			return
		}
	}
}

//
// Locking
//

// AcquireReadLock blocks until shared access is granted. Readers see one
// consistent view across all matrices: no flush runs while any read lock
// is held.
func (g *Graph) AcquireReadLock() { g.mu.RLock() }

// AcquireWriteLock blocks until exclusive access is granted.
func (g *Graph) AcquireWriteLock() {
	g.mu.Lock()
	g.writerHeld = true
}

// ReleaseLock releases whichever lock the caller holds.
func (g *Graph) ReleaseLock() {
	if g.writerHeld {
		g.writerHeld = false
		g.mu.Unlock()
		return
	}
	g.mu.RUnlock()
}

//
// Matrix access and synchronization
//

// SetMatrixPolicy switches the sync policy, returning the previous one.
func (g *Graph) SetMatrixPolicy(p SyncPolicy) SyncPolicy {
	prev := g.policy
	g.policy = p
	return prev
}

// MatrixPolicy returns the current sync policy.
func (g *Graph) MatrixPolicy() SyncPolicy { return g.policy }

// synchronize applies the sync policy to m. Flushing is restricted to
// the writer so readers never observe a fold mid-scan.
func (g *Graph) synchronize(m *matrix.Delta) {
	if g.policy == SyncPolicyNop {
		return
	}
	g.syncMu.Lock()
	defer g.syncMu.Unlock()
	dim := g.nodes.Cap()
	if m.Nrows() < dim || m.Ncols() < dim {
		m.Resize(dim, dim)
	}
	if g.policy == SyncPolicyFlushResize && g.writerHeld && m.Pending() {
		m.Flush()
	}
}

// LabelMatrix returns the diagonal matrix for label l, synchronized per
// the current policy.
func (g *Graph) LabelMatrix(l entities.LabelID) *matrix.Delta {
	m := g.labels[l]
	g.synchronize(m)
	return m
}

// RelationMatrix returns the slot matrix for relationship type r.
func (g *Graph) RelationMatrix(r entities.RelationID) *matrix.Delta {
	m := g.relations[r].m
	g.synchronize(m)
	return m
}

// RelationTranspose returns the boolean transpose for relationship type
// r, used for incoming traversal.
func (g *Graph) RelationTranspose(r entities.RelationID) *matrix.Delta {
	m := g.relations[r].t
	g.synchronize(m)
	return m
}

// AdjacencyMatrix returns the boolean OR of all relation matrices.
func (g *Graph) AdjacencyMatrix() *matrix.Delta {
	g.synchronize(g.adjacency)
	return g.adjacency
}

// NodeLabelMatrix returns the node x label matrix.
func (g *Graph) NodeLabelMatrix() *matrix.Delta {
	g.synchronize(g.nodeLabels)
	return g.nodeLabels
}

// RelationEdges decodes the slot value at (src, dest) of relation r into
// the edge IDs it references.
func (g *Graph) RelationEdges(r entities.RelationID, src, dest entities.EntityID) []entities.EntityID {
	rel := g.relations[r]
	raw, ok := rel.m.Get(src, dest)
	if !ok {
		return nil
	}
	slot := DecodeSlot(raw)
	if slot.IsSingle() {
		return []entities.EntityID{slot.id}
	}
	arr := rel.arrays.get(slot.handle)
	out := make([]entities.EntityID, len(arr))
	copy(out, arr)
	return out
}

// ExpandSlot decodes a raw slot value yielded by a relation-matrix
// iterator into edge IDs.
func (g *Graph) ExpandSlot(r entities.RelationID, raw uint64) []entities.EntityID {
	slot := DecodeSlot(raw)
	if slot.IsSingle() {
		return []entities.EntityID{slot.id}
	}
	arr := g.relations[r].arrays.get(slot.handle)
	out := make([]entities.EntityID, len(arr))
	copy(out, arr)
	return out
}

//
// Schema growth
//

// AddLabel registers a label name and allocates its matrix.
func (g *Graph) AddLabel(name string) entities.LabelID {
	if id := g.schema.LabelID(name); id != UnknownID {
		return entities.LabelID(id)
	}
	id := g.schema.addLabel(name)
	dim := g.nodes.Cap()
	g.labels = append(g.labels, matrix.NewDelta(dim, dim))
	g.labelStats = append(g.labelStats, 0)
	return id
}

// AddRelation registers a relationship-type name and allocates its
// matrices.
func (g *Graph) AddRelation(name string) entities.RelationID {
	if id := g.schema.RelationID(name); id != UnknownID {
		return entities.RelationID(id)
	}
	id := g.schema.addRelation(name)
	dim := g.nodes.Cap()
	g.relations = append(g.relations, &Relation{
		m: matrix.NewDelta(dim, dim),
		t: matrix.NewDelta(dim, dim),
	})
	g.relationStats = append(g.relationStats, 0)
	return id
}

// LabelCount returns the number of label matrices.
func (g *Graph) LabelCount() int { return len(g.labels) }

// RelationCount returns the number of relation matrices.
func (g *Graph) RelationCount() int { return len(g.relations) }

// RelationIsMultiEdge reports whether relation r ever held parallel
// edges; the snapshot header records this per relation.
func (g *Graph) RelationIsMultiEdge(r entities.RelationID) bool {
	return g.relations[r].multiEdge
}

//
// Entity counts
//

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() uint64 { return g.nodes.Count() }

// EdgeCount returns the number of live edges.
func (g *Graph) EdgeCount() uint64 { return g.edges.Count() }

// DeletedNodeCount returns the number of reusable node IDs.
func (g *Graph) DeletedNodeCount() uint64 {
	return g.nodes.DeletedCount() + uint64(len(g.pendingNodeFrees))
}

// DeletedEdgeCount returns the number of reusable edge IDs.
func (g *Graph) DeletedEdgeCount() uint64 {
	return g.edges.DeletedCount() + uint64(len(g.pendingEdgeFrees))
}

// DeletedNodeIDs returns the node free-list in deletion order, for the
// snapshot encoder.
func (g *Graph) DeletedNodeIDs() []entities.EntityID { return g.nodes.DeletedIDs() }

// DeletedEdgeIDs returns the edge free-list in deletion order.
func (g *Graph) DeletedEdgeIDs() []entities.EntityID { return g.edges.DeletedIDs() }

// NodeCountByLabel returns the number of live nodes carrying label l.
func (g *Graph) NodeCountByLabel(l entities.LabelID) uint64 { return g.labelStats[l] }

// EdgeCountByRelation returns the number of live edges of relation r.
func (g *Graph) EdgeCountByRelation(r entities.RelationID) uint64 { return g.relationStats[r] }

// NodeCapacity returns the node-store high-water mark; matrix dimensions
// track this value.
func (g *Graph) NodeCapacity() uint64 { return g.nodes.Cap() }

//
// Entity lifecycle
//

// ensureNodeDims grows every matrix to the node-store capacity.
func (g *Graph) ensureNodeDims() {
	dim := g.nodes.Cap()
	g.adjacency.Resize(dim, dim)
	g.nodeLabels.Resize(dim, uint64(len(g.labels)))
	for _, l := range g.labels {
		l.Resize(dim, dim)
	}
	for _, r := range g.relations {
		r.m.Resize(dim, dim)
		r.t.Resize(dim, dim)
	}
}

// CreateNode appends a node carrying the given labels and attributes.
// The node is visible to the mutating transaction immediately; other
// readers see it after the next flush.
func (g *Graph) CreateNode(labels []entities.LabelID, attrs *entities.AttributeSet) *entities.Node {
	id, n := g.nodes.Add()
	g.ensureNodeDims()

	n.ID = id
	if attrs == nil {
		attrs = entities.NewAttributeSet()
	}
	n.Attrs = attrs
	for _, l := range labels {
		n.Labels.Add(l)
		g.labels[l].SetBool(id, id)
		g.nodeLabels.SetBool(id, uint64(l))
		g.labelStats[l]++
	}

	for _, o := range g.observers {
		o.NodeCreated(n)
	}
	return n
}

// CreateEdge connects src to dest with an edge of relation r. If the
// (src, dest) slot is empty the edge ID is stored directly; a second
// parallel edge upgrades the slot to an arena-backed array.
func (g *Graph) CreateEdge(src, dest entities.EntityID, r entities.RelationID, attrs *entities.AttributeSet) (*entities.Edge, error) {
	if _, ok := g.nodes.Get(src); !ok {
		return nil, errors.Wrapf(ErrNodeNotFound, "source %d", src)
	}
	if _, ok := g.nodes.Get(dest); !ok {
		return nil, errors.Wrapf(ErrNodeNotFound, "destination %d", dest)
	}

	id, e := g.edges.Add()
	e.ID = id
	e.Src = src
	e.Dest = dest
	e.Relation = r
	if attrs == nil {
		attrs = entities.NewAttributeSet()
	}
	e.Attrs = attrs

	rel := g.relations[r]
	if raw, occupied := rel.m.Get(src, dest); occupied {
		slot := DecodeSlot(raw)
		if slot.IsSingle() {
			handle := rel.arrays.alloc(slot.id, id)
			rel.m.Set(src, dest, encodeHandle(handle))
			rel.multiEdge = true
		} else {
			rel.arrays.append(slot.handle, id)
		}
	} else {
		rel.m.Set(src, dest, id)
	}
	rel.t.SetBool(dest, src)
	g.adjacency.SetBool(src, dest)
	g.relationStats[r]++

	for _, o := range g.observers {
		o.EdgeCreated(e)
	}
	return e, nil
}

// GetNode fetches a node by ID, reporting whether it is alive.
func (g *Graph) GetNode(id entities.EntityID) (*entities.Node, bool) { return g.nodes.Get(id) }

// GetEdge fetches an edge by ID, reporting whether it is alive.
func (g *Graph) GetEdge(id entities.EntityID) (*entities.Edge, bool) { return g.edges.Get(id) }

// NodeIter iterates live nodes in ascending-ID order.
func (g *Graph) NodeIter() *entities.PoolIter[entities.Node] { return g.nodes.Iter() }

// EdgeIter iterates live edges in ascending-ID order.
func (g *Graph) EdgeIter() *entities.PoolIter[entities.Edge] { return g.edges.Iter() }

// DeleteEdge stages the removal of edge id. A multi-edge slot shrinking
// to one entry downgrades back to a direct ID; an emptied slot clears
// the cell and, when no other relation connects the endpoints, the
// adjacency cell too.
func (g *Graph) DeleteEdge(id entities.EntityID) error {
	e, ok := g.edges.Get(id)
	if !ok {
		return errors.Wrapf(ErrEdgeNotFound, "edge %d", id)
	}
	src, dest, r := e.Src, e.Dest, e.Relation
	rel := g.relations[r]

	raw, ok := rel.m.Get(src, dest)
	if ok {
		slot := DecodeSlot(raw)
		if slot.IsSingle() {
			rel.m.Clear(src, dest)
			rel.t.Clear(dest, src)
		} else {
			switch remaining := rel.arrays.remove(slot.handle, id); remaining {
			case 0:
				rel.arrays.release(slot.handle)
				rel.m.Clear(src, dest)
				rel.t.Clear(dest, src)
			case 1:
				last := rel.arrays.get(slot.handle)[0]
				rel.arrays.release(slot.handle)
				rel.m.Set(src, dest, last)
			}
		}
	}

	if !g.connected(src, dest) {
		g.adjacency.Clear(src, dest)
	}
	g.relationStats[r]--

	copied := *e
	g.edges.Tombstone(id)
	g.pendingEdgeFrees = append(g.pendingEdgeFrees, id)

	for _, o := range g.observers {
		o.EdgeDeleted(&copied)
	}
	return nil
}

// connected reports whether any relation still links src to dest.
func (g *Graph) connected(src, dest entities.EntityID) bool {
	for _, rel := range g.relations {
		if _, ok := rel.m.Get(src, dest); ok {
			return true
		}
	}
	return false
}

// DeleteNode stages the removal of node id together with every incident
// edge (detach semantics).
func (g *Graph) DeleteNode(id entities.EntityID) error {
	n, ok := g.nodes.Get(id)
	if !ok {
		return errors.Wrapf(ErrNodeNotFound, "node %d", id)
	}

	for _, eid := range g.NodeEdges(id) {
		if err := g.DeleteEdge(eid); err != nil {
			return err
		}
	}

	for _, l := range n.Labels.Labels() {
		g.labels[l].Clear(id, id)
		g.nodeLabels.Clear(id, uint64(l))
		g.labelStats[l]--
	}

	copied := *n
	g.nodes.Tombstone(id)
	g.pendingNodeFrees = append(g.pendingNodeFrees, id)

	for _, o := range g.observers {
		o.NodeDeleted(&copied)
	}
	return nil
}

// NodeEdges collects the IDs of every edge touching node id, outgoing
// and incoming, across all relations.
func (g *Graph) NodeEdges(id entities.EntityID) []entities.EntityID {
	var out []entities.EntityID
	seen := make(map[entities.EntityID]struct{})
	for r := range g.relations {
		rel := g.relations[r]
		var it matrix.TupleIter
		if err := it.AttachRange(rel.m, id, id); err == nil {
			for {
				_, _, raw, ok := it.Next()
				if !ok {
					break
				}
				for _, eid := range g.ExpandSlot(entities.RelationID(r), raw) {
					if _, dup := seen[eid]; !dup {
						seen[eid] = struct{}{}
						out = append(out, eid)
					}
				}
			}
		}
		if err := it.AttachRange(rel.t, id, id); err == nil {
			for {
				_, src, _, ok := it.Next()
				if !ok {
					break
				}
				raw, ok2 := rel.m.Get(src, id)
				if !ok2 {
					continue
				}
				for _, eid := range g.ExpandSlot(entities.RelationID(r), raw) {
					if _, dup := seen[eid]; !dup {
						seen[eid] = struct{}{}
						out = append(out, eid)
					}
				}
			}
		}
	}
	return out
}

// ApplyAllPending flushes every matrix and returns tombstoned IDs to the
// free-lists. force additionally compacts the free-lists into ascending
// order. Requires the write lock.
func (g *Graph) ApplyAllPending(force bool) {
	g.syncMu.Lock()
	defer g.syncMu.Unlock()

	g.ensureNodeDims()
	g.adjacency.Flush()
	g.nodeLabels.Flush()
	for _, l := range g.labels {
		l.Flush()
	}
	for _, r := range g.relations {
		r.m.Flush()
		r.t.Flush()
	}

	if n := len(g.pendingNodeFrees) + len(g.pendingEdgeFrees); n > 0 {
		g.log.WithField("released_ids", n).Debug("flushed pending entity frees")
	}
	for _, id := range g.pendingNodeFrees {
		g.nodes.Release(id)
	}
	g.pendingNodeFrees = g.pendingNodeFrees[:0]
	for _, id := range g.pendingEdgeFrees {
		g.edges.Release(id)
	}
	g.pendingEdgeFrees = g.pendingEdgeFrees[:0]

	if force {
		g.nodes.CompactFreeList()
		g.edges.CompactFreeList()
	}
}

//
// Decoder support
//

// AllocateNodes pre-sizes the node pool; the decoder calls this once
// from the first virtual key.
func (g *Graph) AllocateNodes(n uint64) {
	g.nodes.EnsureCapacity(n)
}

// AllocateEdges pre-sizes the edge pool.
func (g *Graph) AllocateEdges(n uint64) {
	g.edges.EnsureCapacity(n)
}

// RestoreNode places a decoded node at its original ID, rebuilding label
// cells. Used only by the snapshot decoder under the resize policy.
func (g *Graph) RestoreNode(id entities.EntityID, labels []entities.LabelID, attrs *entities.AttributeSet) *entities.Node {
	n := g.nodes.AddWithID(id)
	g.ensureNodeDims()
	n.ID = id
	if attrs == nil {
		attrs = entities.NewAttributeSet()
	}
	n.Attrs = attrs
	for _, l := range labels {
		n.Labels.Add(l)
		g.labels[l].SetBool(id, id)
		g.nodeLabels.SetBool(id, uint64(l))
		g.labelStats[l]++
	}
	return n
}

// RestoreEdge places a decoded edge at its original ID.
func (g *Graph) RestoreEdge(id, src, dest entities.EntityID, r entities.RelationID, attrs *entities.AttributeSet) *entities.Edge {
	e := g.edges.AddWithID(id)
	e.ID = id
	e.Src = src
	e.Dest = dest
	e.Relation = r
	if attrs == nil {
		attrs = entities.NewAttributeSet()
	}
	e.Attrs = attrs

	rel := g.relations[r]
	if raw, occupied := rel.m.Get(src, dest); occupied {
		slot := DecodeSlot(raw)
		if slot.IsSingle() {
			handle := rel.arrays.alloc(slot.id, id)
			rel.m.Set(src, dest, encodeHandle(handle))
			rel.multiEdge = true
		} else {
			rel.arrays.append(slot.handle, id)
		}
	} else {
		rel.m.Set(src, dest, id)
	}
	rel.t.SetBool(dest, src)
	g.adjacency.SetBool(src, dest)
	g.relationStats[r]++
	return e
}

// RestoreDeletedNodes rebuilds the node free-list from a snapshot.
func (g *Graph) RestoreDeletedNodes(ids []entities.EntityID) {
	g.nodes.MarkDeleted(ids)
	g.ensureNodeDims()
}

// RestoreDeletedEdges rebuilds the edge free-list from a snapshot.
func (g *Graph) RestoreDeletedEdges(ids []entities.EntityID) {
	g.edges.MarkDeleted(ids)
}
