package serializer

import (
	"bytes"

	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/graph"
)

// Version is the current snapshot format version.
const Version uint64 = 14

// MinDecodableVersion is the oldest snapshot version the decoder
// accepts.
const MinDecodableVersion uint64 = 9

// Payload type tags.
const (
	payloadNodes uint64 = iota + 1
	payloadDeletedNodes
	payloadEdges
	payloadDeletedEdges
)

// DefaultEntitiesPerKey bounds how many entities one virtual key holds;
// large graphs stream through the host keyspace in chunks of this size.
const DefaultEntitiesPerKey = 16384

// Encoder serializes a graph into virtual keys.
type Encoder struct {
	EntitiesPerKey int
}

// Encode serializes g with the default chunking. The caller must not
// hold the graph lock; Encode takes the read lock itself.
func Encode(g *graph.Graph) ([][]byte, error) {
	return (&Encoder{}).Encode(g)
}

func (enc *Encoder) perKey() int {
	if enc.EntitiesPerKey > 0 {
		return enc.EntitiesPerKey
	}
	return DefaultEntitiesPerKey
}

// header captures the per-key header fields.
type header struct {
	name         string
	nodeCount    uint64
	edgeCount    uint64
	delNodeCount uint64
	delEdgeCount uint64
	labelCount   uint64
	relCount     uint64
	multiEdge    []bool
	keyCount     uint64
	labels       []string
	relations    []string
	attrs        []string
}

func writeHeader(w *Writer, h *header) error {
	if err := w.WriteString(h.name); err != nil {
		return err
	}
	for _, v := range []uint64{h.nodeCount, h.edgeCount, h.delNodeCount, h.delEdgeCount, h.labelCount, h.relCount} {
		if err := w.WriteUnsigned(v); err != nil {
			return err
		}
	}
	for _, multi := range h.multiEdge {
		var v uint64
		if multi {
			v = 1
		}
		if err := w.WriteUnsigned(v); err != nil {
			return err
		}
	}
	if err := w.WriteUnsigned(h.keyCount); err != nil {
		return err
	}
	// schema: label, relation and attribute names in ID order
	for _, names := range [][]string{h.labels, h.relations, h.attrs} {
		if err := w.WriteUnsigned(uint64(len(names))); err != nil {
			return err
		}
		for _, n := range names {
			if err := w.WriteString(n); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeAttrs(w *Writer, set *entities.AttributeSet) error {
	if err := w.WriteUnsigned(uint64(set.Count())); err != nil {
		return err
	}
	for i := 0; i < set.Count(); i++ {
		id, v := set.GetIdx(i)
		if err := w.WriteUnsigned(uint64(id)); err != nil {
			return err
		}
		if err := writeValue(w, v); err != nil {
			return err
		}
	}
	return nil
}

func writeNode(w *Writer, n *entities.Node) error {
	if err := w.WriteUnsigned(n.ID); err != nil {
		return err
	}
	labels := n.Labels.Labels()
	if err := w.WriteUnsigned(uint64(len(labels))); err != nil {
		return err
	}
	for _, l := range labels {
		if err := w.WriteUnsigned(uint64(l)); err != nil {
			return err
		}
	}
	return writeAttrs(w, n.Attrs)
}

func writeEdge(w *Writer, e *entities.Edge) error {
	for _, v := range []uint64{e.ID, e.Src, e.Dest, uint64(e.Relation)} {
		if err := w.WriteUnsigned(v); err != nil {
			return err
		}
	}
	return writeAttrs(w, e.Attrs)
}

// chunk is one payload's worth of encoding work.
type chunk struct {
	payload uint64
	encode  func(w *Writer) error
	count   int
}

// Encode walks the graph under the read lock and produces the virtual
// key sequence: every key carries the header, then tagged payloads with
// explicit entity counts so decode streams without buffering.
func (enc *Encoder) Encode(g *graph.Graph) ([][]byte, error) {
	g.AcquireReadLock()
	defer g.ReleaseLock()

	schema := g.Schema()
	h := &header{
		name:         g.Name(),
		nodeCount:    g.NodeCount(),
		edgeCount:    g.EdgeCount(),
		delNodeCount: g.DeletedNodeCount(),
		delEdgeCount: g.DeletedEdgeCount(),
		labelCount:   uint64(g.LabelCount()),
		relCount:     uint64(g.RelationCount()),
	}
	for i := 0; i < g.RelationCount(); i++ {
		h.multiEdge = append(h.multiEdge, g.RelationIsMultiEdge(entities.RelationID(i)))
	}
	for i := 0; i < schema.LabelCount(); i++ {
		h.labels = append(h.labels, schema.LabelName(entities.LabelID(i)))
	}
	for i := 0; i < schema.RelationCount(); i++ {
		h.relations = append(h.relations, schema.RelationName(entities.RelationID(i)))
	}
	for i := 0; i < schema.AttributeCount(); i++ {
		h.attrs = append(h.attrs, schema.AttributeName(entities.AttributeID(i)))
	}

	chunks, err := enc.collectChunks(g)
	if err != nil {
		return nil, err
	}

	// chunk payloads into keys
	perKey := enc.perKey()
	var keyChunks [][]chunk
	var cur []chunk
	budget := perKey
	for _, c := range chunks {
		if c.count > budget && len(cur) > 0 {
			keyChunks = append(keyChunks, cur)
			cur = nil
			budget = perKey
		}
		cur = append(cur, c)
		budget -= c.count
	}
	if len(cur) > 0 || len(keyChunks) == 0 {
		keyChunks = append(keyChunks, cur)
	}
	h.keyCount = uint64(len(keyChunks))

	keys := make([][]byte, 0, len(keyChunks))
	for _, kcs := range keyChunks {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		if err := w.WriteUnsigned(Version); err != nil {
			return nil, err
		}
		if err := writeHeader(w, h); err != nil {
			return nil, err
		}
		if err := w.WriteUnsigned(uint64(len(kcs))); err != nil {
			return nil, err
		}
		for _, c := range kcs {
			if err := w.WriteUnsigned(c.payload); err != nil {
				return nil, err
			}
			if err := w.WriteUnsigned(uint64(c.count)); err != nil {
				return nil, err
			}
			if err := c.encode(w); err != nil {
				return nil, err
			}
		}
		keys = append(keys, buf.Bytes())
	}
	return keys, nil
}

// collectChunks splits the entity streams into payload chunks no larger
// than the per-key budget.
func (enc *Encoder) collectChunks(g *graph.Graph) ([]chunk, error) {
	perKey := enc.perKey()
	var chunks []chunk

	var nodeIDs []entities.EntityID
	it := g.NodeIter()
	for {
		id, _, ok := it.Next()
		if !ok {
			break
		}
		nodeIDs = append(nodeIDs, id)
	}
	for start := 0; start < len(nodeIDs); start += perKey {
		end := start + perKey
		if end > len(nodeIDs) {
			end = len(nodeIDs)
		}
		ids := nodeIDs[start:end]
		chunks = append(chunks, chunk{
			payload: payloadNodes,
			count:   len(ids),
			encode: func(w *Writer) error {
				for _, id := range ids {
					n, _ := g.GetNode(id)
					if err := writeNode(w, n); err != nil {
						return err
					}
				}
				return nil
			},
		})
	}

	if deleted := g.DeletedNodeIDs(); len(deleted) > 0 {
		ids := deleted
		chunks = append(chunks, chunk{
			payload: payloadDeletedNodes,
			count:   len(ids),
			encode: func(w *Writer) error {
				for _, id := range ids {
					if err := w.WriteUnsigned(id); err != nil {
						return err
					}
				}
				return nil
			},
		})
	}

	var edgeIDs []entities.EntityID
	eit := g.EdgeIter()
	for {
		id, _, ok := eit.Next()
		if !ok {
			break
		}
		edgeIDs = append(edgeIDs, id)
	}
	for start := 0; start < len(edgeIDs); start += perKey {
		end := start + perKey
		if end > len(edgeIDs) {
			end = len(edgeIDs)
		}
		ids := edgeIDs[start:end]
		chunks = append(chunks, chunk{
			payload: payloadEdges,
			count:   len(ids),
			encode: func(w *Writer) error {
				for _, id := range ids {
					e, _ := g.GetEdge(id)
					if err := writeEdge(w, e); err != nil {
						return err
					}
				}
				return nil
			},
		})
	}

	if deleted := g.DeletedEdgeIDs(); len(deleted) > 0 {
		ids := deleted
		chunks = append(chunks, chunk{
			payload: payloadDeletedEdges,
			count:   len(ids),
			encode: func(w *Writer) error {
				for _, id := range ids {
					if err := w.WriteUnsigned(id); err != nil {
						return err
					}
				}
				return nil
			},
		})
	}

	return chunks, nil
}
