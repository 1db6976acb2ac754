package serializer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosone/falkordb/pkg/datatypes"
	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/graph"
)

// buildRichGraph constructs a graph exercising every value variant,
// deleted IDs and a multi-edge slot.
func buildRichGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New("rich")
	g.AcquireWriteLock()

	person := g.AddLabel("Person")
	city := g.AddLabel("City")
	knows := g.AddRelation("KNOWS")
	livesIn := g.AddRelation("LIVES_IN")

	schema := g.Schema()
	name := schema.EnsureAttribute("name")
	meta := schema.EnsureAttribute("meta")
	loc := schema.EnsureAttribute("loc")
	emb := schema.EnsureAttribute("emb")

	attrs := func(kv map[entities.AttributeID]datatypes.Value) *entities.AttributeSet {
		set := entities.NewAttributeSet()
		for k, v := range kv {
			set.Set(k, v)
		}
		return set
	}

	m := &datatypes.Map{}
	m.Set("active", datatypes.NewBool(true))
	m.Set("score", datatypes.NewDouble(4.5))

	a := g.CreateNode([]entities.LabelID{person}, attrs(map[entities.AttributeID]datatypes.Value{
		name: datatypes.NewString("alice"),
		meta: datatypes.NewMap(m),
		emb:  datatypes.NewVectorF32([]float32{0.25, -1, 3}),
	}))
	b := g.CreateNode([]entities.LabelID{person, city}, attrs(map[entities.AttributeID]datatypes.Value{
		name: datatypes.NewString("bob"),
		loc:  datatypes.NewPoint(32.07, 34.78),
	}))
	c := g.CreateNode(nil, attrs(map[entities.AttributeID]datatypes.Value{
		meta: datatypes.NewArray(datatypes.NewInt(1), datatypes.NewNull(), datatypes.NewString("x")),
	}))

	_, err := g.CreateEdge(a.ID, b.ID, knows, attrs(map[entities.AttributeID]datatypes.Value{
		name: datatypes.NewString("e1"),
	}))
	require.NoError(t, err)
	_, err = g.CreateEdge(a.ID, b.ID, knows, attrs(map[entities.AttributeID]datatypes.Value{
		name: datatypes.NewString("e2"),
	}))
	require.NoError(t, err)
	_, err = g.CreateEdge(b.ID, c.ID, livesIn, nil)
	require.NoError(t, err)

	// deleted entities to exercise free-list restore
	victim := g.CreateNode(nil, nil)
	require.NoError(t, g.DeleteNode(victim.ID))
	e, err := g.CreateEdge(c.ID, a.ID, knows, nil)
	require.NoError(t, err)
	require.NoError(t, g.DeleteEdge(e.ID))

	g.ApplyAllPending(false)
	g.ReleaseLock()
	return g
}

func assertGraphsEqual(t *testing.T, want, got *graph.Graph) {
	t.Helper()
	want.AcquireReadLock()
	got.AcquireReadLock()
	defer want.ReleaseLock()
	defer got.ReleaseLock()

	require.Equal(t, want.NodeCount(), got.NodeCount())
	require.Equal(t, want.EdgeCount(), got.EdgeCount())
	assert.Equal(t, want.DeletedNodeIDs(), got.DeletedNodeIDs(), "free-list layout must survive")
	assert.Equal(t, want.DeletedEdgeIDs(), got.DeletedEdgeIDs())
	require.Equal(t, want.LabelCount(), got.LabelCount())
	require.Equal(t, want.RelationCount(), got.RelationCount())

	it := want.NodeIter()
	for {
		id, n, ok := it.Next()
		if !ok {
			break
		}
		gn, alive := got.GetNode(id)
		require.True(t, alive, "node %d missing", id)
		assert.Equal(t, n.Labels.Labels(), gn.Labels.Labels(), "node %d labels", id)
		require.Equal(t, n.Attrs.Count(), gn.Attrs.Count(), "node %d attrs", id)
		for i := 0; i < n.Attrs.Count(); i++ {
			aid, v := n.Attrs.GetIdx(i)
			gid, gv := gn.Attrs.GetIdx(i)
			assert.Equal(t, aid, gid)
			assert.True(t, datatypes.Equal(v, gv), "node %d attr %d: %s != %s", id, aid, v, gv)
		}
	}

	eit := want.EdgeIter()
	for {
		id, e, ok := eit.Next()
		if !ok {
			break
		}
		ge, alive := got.GetEdge(id)
		require.True(t, alive, "edge %d missing", id)
		assert.Equal(t, e.Src, ge.Src)
		assert.Equal(t, e.Dest, ge.Dest)
		assert.Equal(t, e.Relation, ge.Relation)
	}
}

// decode(encode(G)) reproduces G: node set, edge set, attributes,
// labels, relations and reusable-ID layout.
func TestSnapshotRoundTrip(t *testing.T) {
	g := buildRichGraph(t)

	keys, err := Encode(g)
	require.NoError(t, err)
	require.NotEmpty(t, keys)

	decoded, err := Decode("rich", keys)
	require.NoError(t, err)
	assertGraphsEqual(t, g, decoded)

	t.Run("steady-state policy restored", func(t *testing.T) {
		assert.Equal(t, graph.SyncPolicyFlushResize, decoded.MatrixPolicy())
	})

	t.Run("multi-edge slot survives", func(t *testing.T) {
		decoded.AcquireReadLock()
		defer decoded.ReleaseLock()
		knows := decoded.Schema().RelationID("KNOWS")
		require.GreaterOrEqual(t, knows, 0)
		raw, ok := decoded.RelationMatrix(entities.RelationID(knows)).Get(0, 1)
		require.True(t, ok)
		assert.False(t, graph.DecodeSlot(raw).IsSingle(), "slot (0,1) must be multi-tagged")
		assert.True(t, decoded.RelationIsMultiEdge(entities.RelationID(knows)))
	})
}

// Restart scenario: two parallel edges between nodes survive a snapshot
// cycle with identical IDs and attributes.
func TestMultiEdgeRoundTripAttributes(t *testing.T) {
	g := buildRichGraph(t)
	keys, err := Encode(g)
	require.NoError(t, err)
	decoded, err := Decode("rich", keys)
	require.NoError(t, err)

	decoded.AcquireReadLock()
	defer decoded.ReleaseLock()
	name := decoded.Schema().AttributeID("name")
	require.GreaterOrEqual(t, name, 0)

	e1, alive := decoded.GetEdge(0)
	require.True(t, alive)
	v, ok := e1.Attrs.Get(entities.AttributeID(name))
	require.True(t, ok)
	assert.Equal(t, "e1", v.Str())

	e2, alive := decoded.GetEdge(1)
	require.True(t, alive)
	v, ok = e2.Attrs.Get(entities.AttributeID(name))
	require.True(t, ok)
	assert.Equal(t, "e2", v.Str())
}

func TestSnapshotChunking(t *testing.T) {
	g := graph.New("big")
	g.AcquireWriteLock()
	l := g.AddLabel("N")
	x := g.Schema().EnsureAttribute("x")
	for i := 0; i < 100; i++ {
		attrs := entities.NewAttributeSet()
		attrs.Set(x, datatypes.NewInt(int64(i)))
		g.CreateNode([]entities.LabelID{l}, attrs)
	}
	g.ApplyAllPending(false)
	g.ReleaseLock()

	enc := &Encoder{EntitiesPerKey: 10}
	keys, err := enc.Encode(g)
	require.NoError(t, err)
	assert.Equal(t, 10, len(keys), "100 nodes at 10 per key")

	decoded, err := Decode("big", keys)
	require.NoError(t, err)
	assertGraphsEqual(t, g, decoded)
}

func TestDecodeRejectsOldVersions(t *testing.T) {
	g := graph.New("v")
	d := NewDecoder(g)

	var key []byte
	{
		w := NewWriter(&sliceWriter{&key})
		require.NoError(t, w.WriteUnsigned(8)) // below the supported floor
	}
	err := d.DecodeKey(key)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

type sliceWriter struct{ buf *[]byte }

func (s *sliceWriter) Write(p []byte) (int, error) {
	*s.buf = append(*s.buf, p...)
	return len(p), nil
}

func TestDecodeEnablesPendingIndices(t *testing.T) {
	g := buildRichGraph(t)
	keys, err := Encode(g)
	require.NoError(t, err)

	fresh := graph.New("rich")
	d := NewDecoder(fresh)
	enabler := &fakeEnabler{}
	d.Indices = append(d.Indices, enabler)
	for _, k := range keys {
		require.NoError(t, d.DecodeKey(k))
	}
	require.True(t, d.Done())
	assert.True(t, enabler.enabled)
}

type fakeEnabler struct{ enabled bool }

func (f *fakeEnabler) Enable() { f.enabled = true }

func TestValueRoundTripAllVariants(t *testing.T) {
	vals := []datatypes.Value{
		datatypes.NewNull(),
		datatypes.NewBool(true),
		datatypes.NewInt(-42),
		datatypes.NewDouble(2.718),
		datatypes.NewString("héllo"),
		datatypes.NewPoint(-33.86, 151.2),
		datatypes.NewArray(datatypes.NewInt(1), datatypes.NewArray(datatypes.NewString("nested"))),
		datatypes.NewVectorF32([]float32{1.5, -2.5}),
	}
	m := &datatypes.Map{}
	m.Set("k", datatypes.NewArray(datatypes.NewDouble(0.5)))
	vals = append(vals, datatypes.NewMap(m))

	var buf []byte
	w := NewWriter(&sliceWriter{&buf})
	for _, v := range vals {
		require.NoError(t, writeValue(w, v))
	}

	r := NewReader(bytes.NewReader(buf))
	for _, want := range vals {
		got, err := readValue(r)
		require.NoError(t, err)
		assert.True(t, datatypes.Equal(want, got), "%s != %s", want, got)
	}
}
