package index

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosone/falkordb/pkg/datatypes"
	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/graph"
)

func buildLabeledGraph(t *testing.T, label string, n int) *graph.Graph {
	t.Helper()
	g := graph.New("idx-test")
	g.AcquireWriteLock()
	l := g.AddLabel(label)
	age := g.Schema().EnsureAttribute("age")
	for i := 0; i < n; i++ {
		attrs := entities.NewAttributeSet()
		attrs.Set(age, datatypes.NewInt(int64(i%50)))
		g.CreateNode([]entities.LabelID{l}, attrs)
	}
	g.ApplyAllPending(false)
	g.ReleaseLock()
	return g
}

func TestRangeIndexLifecycle(t *testing.T) {
	g := buildLabeledGraph(t, "P", 10)
	g.AcquireWriteLock()
	idx := NewRangeIndex(g, "P", IndexNode, []string{"age"})
	g.ReleaseLock()

	assert.Equal(t, StateCreated, idx.State())
	idx.StartPopulation()
	assert.Equal(t, StatePopulating, idx.State())

	idx.Enable()
	assert.Equal(t, StateActive, idx.State())

	// enable is a POPULATING->ACTIVE transition only
	idx.Drop()
	idx.Enable()
	assert.Equal(t, StateDropped, idx.State())
}

func TestRangeIndexSearch(t *testing.T) {
	g := buildLabeledGraph(t, "P", 100)
	g.AcquireWriteLock()
	idx := NewRangeIndex(g, "P", IndexNode, []string{"age"})
	g.ReleaseLock()
	idx.StartPopulation()
	Populate(idx, g)

	require.Equal(t, StateActive, idx.State())
	require.Equal(t, 100, idx.Count())

	ids := idx.Search(datatypes.NewInt(7))
	assert.Equal(t, []entities.EntityID{7, 57}, ids, "ages repeat every 50 IDs")

	ranged := idx.SearchRange(datatypes.NewInt(0), datatypes.NewInt(1))
	assert.Len(t, ranged, 4, "ages 0 and 1 each appear twice")
}

// Scenario: populate an index over label :P with a small batch size
// while a writer inserts another :P node during a release window. Every
// original node and the inserted one must be present at enable time.
func TestPopulateUnderConcurrentInsert(t *testing.T) {
	g := buildLabeledGraph(t, "P", 100)
	g.AcquireWriteLock()
	idx := NewRangeIndex(g, "P", IndexNode, []string{"age"})
	g.RegisterObserver(idx)
	g.ReleaseLock()
	idx.StartPopulation()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		p := &Populator{BatchSize: 3}
		p.Populate(idx, g)
	}()

	var insertedID entities.EntityID
	go func() {
		defer wg.Done()
		// contends with the populator's batch windows
		g.AcquireWriteLock()
		l := g.Schema().LabelID("P")
		attrs := entities.NewAttributeSet()
		attrs.Set(entities.AttributeID(g.Schema().AttributeID("age")), datatypes.NewInt(999))
		n := g.CreateNode([]entities.LabelID{entities.LabelID(l)}, attrs)
		insertedID = n.ID
		g.ApplyAllPending(false)
		g.ReleaseLock()
	}()

	wg.Wait()
	require.Equal(t, StateActive, idx.State())

	assert.Equal(t, 101, idx.Count(), "100 original nodes plus the concurrent insert")
	assert.True(t, idx.Contains(insertedID, datatypes.NewInt(999)))
	for id := uint64(0); id < 100; id++ {
		require.True(t, idx.Contains(id, datatypes.NewInt(int64(id%50))), "node %d missing", id)
	}
}

func TestPopulateEdgesWithMultiEdgeSlots(t *testing.T) {
	g := graph.New("edge-idx")
	g.AcquireWriteLock()
	r := g.AddRelation("KNOWS")
	since := g.Schema().EnsureAttribute("since")
	var nodes []entities.EntityID
	for i := 0; i < 10; i++ {
		n := g.CreateNode(nil, nil)
		nodes = append(nodes, n.ID)
	}
	mkEdge := func(src, dest entities.EntityID, year int64) {
		attrs := entities.NewAttributeSet()
		attrs.Set(since, datatypes.NewInt(year))
		_, err := g.CreateEdge(src, dest, r, attrs)
		require.NoError(t, err)
	}
	edgeCount := 0
	for i := 0; i < 9; i++ {
		mkEdge(nodes[i], nodes[i+1], int64(2000+i))
		edgeCount++
	}
	// parallel edges at one slot, expanded atomically within a batch
	mkEdge(nodes[3], nodes[4], 2020)
	mkEdge(nodes[3], nodes[4], 2021)
	edgeCount += 2
	g.ApplyAllPending(false)

	idx := NewRangeIndex(g, "KNOWS", IndexEdge, []string{"since"})
	g.ReleaseLock()
	idx.StartPopulation()

	p := &Populator{BatchSize: 2}
	p.Populate(idx, g)

	require.Equal(t, StateActive, idx.State())
	assert.Equal(t, edgeCount, idx.Count())
	assert.Len(t, idx.Search(datatypes.NewInt(2020)), 1)
	assert.Len(t, idx.Search(datatypes.NewInt(2021)), 1)
}

func TestPopulateAbortsOnStateChange(t *testing.T) {
	g := buildLabeledGraph(t, "P", 50)
	g.AcquireWriteLock()
	idx := NewRangeIndex(g, "P", IndexNode, []string{"age"})
	g.ReleaseLock()
	idx.StartPopulation()
	idx.Drop()

	Populate(idx, g)
	assert.Equal(t, StateDropped, idx.State(), "drop wins over enable")
	assert.Equal(t, 0, idx.Count())
}

func TestPopulateUnknownLabelEnablesEmpty(t *testing.T) {
	g := graph.New("empty")
	g.AcquireWriteLock()
	idx := NewRangeIndex(g, "Ghost", IndexNode, []string{"x"})
	g.ReleaseLock()
	idx.StartPopulation()
	Populate(idx, g)
	assert.Equal(t, StateActive, idx.State())
	assert.Equal(t, 0, idx.Count())
}

func TestWritePathRemovesDeletedEntities(t *testing.T) {
	g := buildLabeledGraph(t, "P", 10)
	g.AcquireWriteLock()
	idx := NewRangeIndex(g, "P", IndexNode, []string{"age"})
	g.RegisterObserver(idx)
	g.ReleaseLock()
	idx.StartPopulation()
	Populate(idx, g)
	require.Equal(t, 10, idx.Count())

	g.AcquireWriteLock()
	require.NoError(t, g.DeleteNode(4))
	g.ApplyAllPending(false)
	g.ReleaseLock()

	assert.Equal(t, 9, idx.Count())
	assert.False(t, idx.Contains(4, datatypes.NewInt(4)))
}

func TestVectorIndexSearch(t *testing.T) {
	g := graph.New("vec")
	g.AcquireWriteLock()
	l := g.AddLabel("Doc")
	idx := NewVectorIndex(g, "Doc", IndexNode, "embedding", 3)
	emb := entities.AttributeID(g.Schema().AttributeID("embedding"))

	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	for _, v := range vectors {
		attrs := entities.NewAttributeSet()
		attrs.Set(emb, datatypes.NewVectorF32(v))
		g.CreateNode([]entities.LabelID{l}, attrs)
	}
	g.ApplyAllPending(false)
	g.ReleaseLock()

	idx.StartPopulation()
	Populate(idx, g)
	require.Equal(t, 3, idx.Count())

	hits := idx.Search([]float32{1, 0, 0}, 2)
	require.Len(t, hits, 2)
	assert.Equal(t, entities.EntityID(0), hits[0].ID, "exact match ranks first")
	assert.Equal(t, entities.EntityID(2), hits[1].ID)

	assert.Nil(t, idx.Search([]float32{1, 0}, 2), "dimension mismatch")
}
