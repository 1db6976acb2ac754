package graph

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosone/falkordb/pkg/datatypes"
	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/matrix"
)

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	g := New("test")
	g.AcquireWriteLock()
	return g
}

func TestCreateNodeLabelsAndMatrices(t *testing.T) {
	g := newTestGraph(t)
	defer g.ReleaseLock()

	person := g.AddLabel("Person")
	city := g.AddLabel("City")

	n := g.CreateNode([]entities.LabelID{person}, nil)
	m := g.CreateNode([]entities.LabelID{person, city}, nil)

	require.Equal(t, uint64(2), g.NodeCount())
	assert.Equal(t, uint64(2), g.NodeCountByLabel(person))
	assert.Equal(t, uint64(1), g.NodeCountByLabel(city))
	assert.True(t, m.Labels.Has(city))

	// label matrix diagonal cells visible before flush
	lm := g.LabelMatrix(person)
	_, ok := lm.Get(n.ID, n.ID)
	assert.True(t, ok)
	_, ok = lm.Get(m.ID, m.ID)
	assert.True(t, ok)

	g.ApplyAllPending(false)
	_, ok = g.LabelMatrix(person).Get(n.ID, n.ID)
	assert.True(t, ok, "cells survive flush")
}

func TestCreateEdgeMultiEdgeEncoding(t *testing.T) {
	g := newTestGraph(t)
	defer g.ReleaseLock()

	g.AddLabel("N")
	knows := g.AddRelation("KNOWS")

	a := g.CreateNode(nil, nil)
	b := g.CreateNode(nil, nil)

	e1, err := g.CreateEdge(a.ID, b.ID, knows, nil)
	require.NoError(t, err)

	raw, ok := g.RelationMatrix(knows).Get(a.ID, b.ID)
	require.True(t, ok)
	require.True(t, DecodeSlot(raw).IsSingle(), "first edge stored directly")

	e2, err := g.CreateEdge(a.ID, b.ID, knows, nil)
	require.NoError(t, err)

	raw, ok = g.RelationMatrix(knows).Get(a.ID, b.ID)
	require.True(t, ok)
	assert.False(t, DecodeSlot(raw).IsSingle(), "second parallel edge upgrades the slot")
	assert.True(t, g.RelationIsMultiEdge(knows))
	assert.ElementsMatch(t, []entities.EntityID{e1.ID, e2.ID}, g.RelationEdges(knows, a.ID, b.ID))
	assert.Equal(t, uint64(2), g.EdgeCountByRelation(knows))

	t.Run("deleting one parallel edge downgrades the slot", func(t *testing.T) {
		require.NoError(t, g.DeleteEdge(e1.ID))
		raw, ok := g.RelationMatrix(knows).Get(a.ID, b.ID)
		require.True(t, ok)
		slot := DecodeSlot(raw)
		require.True(t, slot.IsSingle())
		assert.Equal(t, []entities.EntityID{e2.ID}, g.RelationEdges(knows, a.ID, b.ID))

		// adjacency survives, an edge still connects the endpoints
		_, ok = g.AdjacencyMatrix().Get(a.ID, b.ID)
		assert.True(t, ok)
	})

	t.Run("deleting the last edge clears slot and adjacency", func(t *testing.T) {
		require.NoError(t, g.DeleteEdge(e2.ID))
		_, ok := g.RelationMatrix(knows).Get(a.ID, b.ID)
		assert.False(t, ok)
		_, ok = g.AdjacencyMatrix().Get(a.ID, b.ID)
		assert.False(t, ok)
	})
}

func TestCreateEdgeUnknownEndpoint(t *testing.T) {
	g := newTestGraph(t)
	defer g.ReleaseLock()

	r := g.AddRelation("R")
	a := g.CreateNode(nil, nil)

	_, err := g.CreateEdge(a.ID, 42, r, nil)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestDeleteNodeDetachesEdges(t *testing.T) {
	g := newTestGraph(t)
	defer g.ReleaseLock()

	l := g.AddLabel("L")
	r := g.AddRelation("R")
	a := g.CreateNode([]entities.LabelID{l}, nil)
	b := g.CreateNode([]entities.LabelID{l}, nil)
	c := g.CreateNode(nil, nil)

	_, err := g.CreateEdge(a.ID, b.ID, r, nil)
	require.NoError(t, err)
	_, err = g.CreateEdge(c.ID, b.ID, r, nil)
	require.NoError(t, err)

	// the pool zeroes a tombstoned slot, so keep the ID before deleting
	bID := b.ID
	require.NoError(t, g.DeleteNode(bID))

	assert.Equal(t, uint64(0), g.EdgeCount(), "incident edges removed, outgoing and incoming")
	assert.Equal(t, uint64(1), g.NodeCountByLabel(l))
	_, alive := g.GetNode(bID)
	assert.False(t, alive)

	// ID returns to the free-list only at the flush barrier
	assert.Equal(t, uint64(0), g.nodes.DeletedCount())
	g.ApplyAllPending(false)
	assert.Equal(t, uint64(1), g.nodes.DeletedCount())

	reused := g.CreateNode(nil, nil)
	assert.Equal(t, bID, reused.ID, "flushed ID is reusable")
}

func TestAttributesRoundTrip(t *testing.T) {
	g := newTestGraph(t)
	defer g.ReleaseLock()

	name := g.Schema().EnsureAttribute("name")
	attrs := entities.NewAttributeSet()
	attrs.Set(name, datatypes.NewString("alice"))
	n := g.CreateNode(nil, attrs)

	got, ok := g.GetNode(n.ID)
	require.True(t, ok)
	v, ok := got.Attrs.Get(name)
	require.True(t, ok)
	assert.Equal(t, "alice", v.Str())
}

// A reader holding the lock keeps its consistent view while a writer
// blocks; after release the writer's changes become visible.
func TestReaderWriterVisibility(t *testing.T) {
	g := New("concurrent")
	g.AcquireWriteLock()
	l := g.AddLabel("L")
	g.CreateNode([]entities.LabelID{l}, nil)
	g.ApplyAllPending(false)
	g.ReleaseLock()

	countLabel := func() int {
		var it matrix.TupleIter
		require.NoError(t, it.Attach(g.LabelMatrix(l)))
		n := 0
		for {
			if _, _, _, ok := it.Next(); !ok {
				break
			}
			n++
		}
		return n
	}

	g.AcquireReadLock()

	writerDone := make(chan struct{})
	writerStarted := make(chan struct{})
	go func() {
		close(writerStarted)
		g.AcquireWriteLock()
		g.CreateNode([]entities.LabelID{l}, nil)
		g.ApplyAllPending(false)
		g.ReleaseLock()
		close(writerDone)
	}()

	<-writerStarted
	time.Sleep(10 * time.Millisecond) // let the writer block on the lock

	assert.Equal(t, 1, countLabel(), "reader must not observe the blocked writer")
	g.ReleaseLock()

	<-writerDone
	g.AcquireReadLock()
	assert.Equal(t, 2, countLabel())
	g.ReleaseLock()
}

func TestConcurrentReaders(t *testing.T) {
	g := New("readers")
	g.AcquireWriteLock()
	l := g.AddLabel("L")
	for i := 0; i < 50; i++ {
		g.CreateNode([]entities.LabelID{l}, nil)
	}
	g.ApplyAllPending(false)
	g.ReleaseLock()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.AcquireReadLock()
			defer g.ReleaseLock()
			var it matrix.TupleIter
			if err := it.Attach(g.LabelMatrix(l)); err != nil {
				t.Error(err)
				return
			}
			n := 0
			for {
				if _, _, _, ok := it.Next(); !ok {
					break
				}
				n++
			}
			if n != 50 {
				t.Errorf("reader saw %d nodes, want 50", n)
			}
		}()
	}
	wg.Wait()
}

func TestSyncPolicies(t *testing.T) {
	g := newTestGraph(t)
	defer g.ReleaseLock()

	l := g.AddLabel("L")
	g.CreateNode([]entities.LabelID{l}, nil)

	t.Run("nop leaves overlays pending", func(t *testing.T) {
		g.SetMatrixPolicy(SyncPolicyNop)
		assert.True(t, g.LabelMatrix(l).Pending())
	})

	t.Run("resize grows without flushing", func(t *testing.T) {
		g.SetMatrixPolicy(SyncPolicyResize)
		m := g.LabelMatrix(l)
		assert.True(t, m.Pending())
		assert.GreaterOrEqual(t, m.Nrows(), g.NodeCapacity())
	})

	t.Run("flush-resize folds for the writer", func(t *testing.T) {
		prev := g.SetMatrixPolicy(SyncPolicyFlushResize)
		assert.Equal(t, SyncPolicyResize, prev)
		m := g.LabelMatrix(l)
		assert.False(t, m.Pending())
	})
}
