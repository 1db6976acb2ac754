package index

import (
	"sort"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/tosone/falkordb/pkg/datatypes"
	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/graph"
)

// VectorIndex indexes one float32-vector attribute of a label or
// relationship type. Search is an exact linear scan by cosine
// similarity; approximate structures are out of scope, population is
// not: the index implements EntityIndexer and fills through the same
// batched populator as the range index.
type VectorIndex struct {
	g       *graph.Graph
	label   string
	labelID int
	etype   EntityType
	field   string
	fieldID entities.AttributeID
	dim     int

	state atomic.Int32

	mu      sync.RWMutex
	vectors map[entities.EntityID][]float32
}

// NewVectorIndex builds a vector index over the given attribute with a
// fixed dimension; vectors of any other dimension are ignored.
func NewVectorIndex(g *graph.Graph, label string, etype EntityType, field string, dim int) *VectorIndex {
	idx := &VectorIndex{
		g:       g,
		label:   label,
		etype:   etype,
		field:   field,
		dim:     dim,
		vectors: make(map[entities.EntityID][]float32),
	}
	schema := g.Schema()
	if etype == IndexNode {
		idx.labelID = schema.LabelID(label)
	} else {
		idx.labelID = schema.RelationID(label)
	}
	idx.fieldID = schema.EnsureAttribute(field)
	idx.state.Store(int32(StateCreated))
	return idx
}

// State returns the lifecycle state.
func (idx *VectorIndex) State() State { return State(idx.state.Load()) }

// StartPopulation transitions CREATED → POPULATING.
func (idx *VectorIndex) StartPopulation() {
	idx.state.CompareAndSwap(int32(StateCreated), int32(StatePopulating))
}

// Enable transitions to ACTIVE iff still POPULATING.
func (idx *VectorIndex) Enable() {
	idx.state.CompareAndSwap(int32(StatePopulating), int32(StateActive))
}

// Drop retires the index.
func (idx *VectorIndex) Drop() {
	idx.state.Store(int32(StateDropped))
	idx.mu.Lock()
	idx.vectors = make(map[entities.EntityID][]float32)
	idx.mu.Unlock()
}

// EntityType returns what the index covers.
func (idx *VectorIndex) EntityType() EntityType { return idx.etype }

// LabelID returns the matrix ID the populator walks.
func (idx *VectorIndex) LabelID() int { return idx.labelID }

func (idx *VectorIndex) live() bool {
	s := idx.State()
	return s == StatePopulating || s == StateActive
}

func (idx *VectorIndex) vectorOf(attrs *entities.AttributeSet) ([]float32, bool) {
	v, ok := attrs.Get(idx.fieldID)
	if !ok || v.Kind() != datatypes.TypeVectorF32 {
		return nil, false
	}
	vec := v.VectorF32()
	if len(vec) != idx.dim {
		return nil, false
	}
	return vec, true
}

// IndexNodeEntity stores the node's vector attribute.
func (idx *VectorIndex) IndexNodeEntity(n *entities.Node) {
	if idx.etype != IndexNode || idx.labelID == graph.UnknownID {
		return
	}
	if !n.Labels.Has(entities.LabelID(idx.labelID)) {
		return
	}
	if vec, ok := idx.vectorOf(n.Attrs); ok {
		idx.mu.Lock()
		idx.vectors[n.ID] = vec
		idx.mu.Unlock()
	}
}

// IndexEdgeEntity stores the edge's vector attribute.
func (idx *VectorIndex) IndexEdgeEntity(e *entities.Edge) {
	if idx.etype != IndexEdge || idx.labelID == graph.UnknownID {
		return
	}
	if e.Relation != entities.RelationID(idx.labelID) {
		return
	}
	if vec, ok := idx.vectorOf(e.Attrs); ok {
		idx.mu.Lock()
		idx.vectors[e.ID] = vec
		idx.mu.Unlock()
	}
}

// Count returns the number of indexed vectors.
func (idx *VectorIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// VectorResult is one nearest-neighbor hit.
type VectorResult struct {
	ID    entities.EntityID
	Score float32
}

func cosine(a, b []float32) float32 {
	va := blas32.Vector{N: len(a), Inc: 1, Data: a}
	vb := blas32.Vector{N: len(b), Inc: 1, Data: b}
	na, nb := blas32.Nrm2(va), blas32.Nrm2(vb)
	if na == 0 || nb == 0 {
		return 0
	}
	return blas32.Dot(va, vb) / (na * nb)
}

// Search returns the k entities most similar to query, highest score
// first.
func (idx *VectorIndex) Search(query []float32, k int) []VectorResult {
	if len(query) != idx.dim || k <= 0 {
		return nil
	}
	idx.mu.RLock()
	results := make([]VectorResult, 0, len(idx.vectors))
	for id, vec := range idx.vectors {
		results = append(results, VectorResult{ID: id, Score: cosine(query, vec)})
	}
	idx.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

//
// graph.EntityObserver
//

// NodeCreated indexes a committed node.
func (idx *VectorIndex) NodeCreated(n *entities.Node) {
	if idx.live() {
		idx.IndexNodeEntity(n)
	}
}

// NodeDeleted unindexes a removed node.
func (idx *VectorIndex) NodeDeleted(n *entities.Node) {
	if idx.etype == IndexNode && idx.live() {
		idx.mu.Lock()
		delete(idx.vectors, n.ID)
		idx.mu.Unlock()
	}
}

// EdgeCreated indexes a committed edge.
func (idx *VectorIndex) EdgeCreated(e *entities.Edge) {
	if idx.live() {
		idx.IndexEdgeEntity(e)
	}
}

// EdgeDeleted unindexes a removed edge.
func (idx *VectorIndex) EdgeDeleted(e *entities.Edge) {
	if idx.etype == IndexEdge && idx.live() {
		idx.mu.Lock()
		delete(idx.vectors, e.ID)
		idx.mu.Unlock()
	}
}
