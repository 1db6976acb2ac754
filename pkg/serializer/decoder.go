package serializer

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/graph"
)

// ErrUnsupportedVersion rejects snapshots older than version 9.
var ErrUnsupportedVersion = errors.New("serializer: unsupported snapshot version")

// Decoder streams virtual keys into a graph. Feed every key in order
// through DecodeKey; the decoder pre-allocates stores and matrices from
// the first key, switches the matrix policy to resize-only for the bulk
// load, and on the last key flushes everything, restores the policy and
// enables the pending indices.
type Decoder struct {
	graph *graph.Graph

	// pending indices enabled once decoding completes
	Indices []interface{ Enable() }

	processedKeys uint64
	expectedKeys  uint64
	prevPolicy    graph.SyncPolicy
	done          bool
}

// NewDecoder returns a decoder that builds into g.
func NewDecoder(g *graph.Graph) *Decoder { return &Decoder{graph: g} }

// Decode rebuilds a graph from a complete key sequence.
func Decode(name string, keys [][]byte) (*graph.Graph, error) {
	g := graph.New(name)
	d := NewDecoder(g)
	for _, key := range keys {
		if err := d.DecodeKey(key); err != nil {
			return nil, err
		}
	}
	if !d.Done() {
		return nil, errors.New("serializer: truncated snapshot, missing virtual keys")
	}
	return g, nil
}

// Done reports whether every expected key was processed.
func (d *Decoder) Done() bool { return d.done }

func readHeader(r *Reader) (*header, error) {
	h := &header{}
	var err error
	if h.name, err = r.ReadString(); err != nil {
		return nil, err
	}
	for _, dst := range []*uint64{&h.nodeCount, &h.edgeCount, &h.delNodeCount, &h.delEdgeCount, &h.labelCount, &h.relCount} {
		if *dst, err = r.ReadUnsigned(); err != nil {
			return nil, err
		}
	}
	for i := uint64(0); i < h.relCount; i++ {
		v, err := r.ReadUnsigned()
		if err != nil {
			return nil, err
		}
		h.multiEdge = append(h.multiEdge, v != 0)
	}
	if h.keyCount, err = r.ReadUnsigned(); err != nil {
		return nil, err
	}
	for _, dst := range []*[]string{&h.labels, &h.relations, &h.attrs} {
		n, err := r.ReadUnsigned()
		if err != nil {
			return nil, err
		}
		for i := uint64(0); i < n; i++ {
			s, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			*dst = append(*dst, s)
		}
	}
	return h, nil
}

// initGraph pre-allocates every store and matrix to final size so no
// further reallocation happens while streaming.
func (d *Decoder) initGraph(h *header) {
	g := d.graph
	d.prevPolicy = g.SetMatrixPolicy(graph.SyncPolicyResize)
	g.AllocateNodes(h.nodeCount + h.delNodeCount)
	g.AllocateEdges(h.edgeCount + h.delEdgeCount)
	for _, name := range h.labels {
		g.AddLabel(name)
	}
	for _, name := range h.relations {
		g.AddRelation(name)
	}
	for _, name := range h.attrs {
		g.Schema().EnsureAttribute(name)
	}
	g.ApplyAllPending(true)
	d.expectedKeys = h.keyCount
}

func readAttrs(r *Reader) (*entities.AttributeSet, error) {
	n, err := r.ReadUnsigned()
	if err != nil {
		return nil, err
	}
	set := entities.NewAttributeSet()
	for i := uint64(0); i < n; i++ {
		id, err := r.ReadUnsigned()
		if err != nil {
			return nil, err
		}
		v, err := readValue(r)
		if err != nil {
			return nil, err
		}
		set.Set(entities.AttributeID(id), v)
	}
	return set, nil
}

func (d *Decoder) readNodes(r *Reader, count uint64) error {
	for i := uint64(0); i < count; i++ {
		id, err := r.ReadUnsigned()
		if err != nil {
			return err
		}
		labelCount, err := r.ReadUnsigned()
		if err != nil {
			return err
		}
		labels := make([]entities.LabelID, labelCount)
		for j := range labels {
			l, err := r.ReadUnsigned()
			if err != nil {
				return err
			}
			labels[j] = entities.LabelID(l)
		}
		attrs, err := readAttrs(r)
		if err != nil {
			return err
		}
		d.graph.RestoreNode(id, labels, attrs)
	}
	return nil
}

func (d *Decoder) readEdges(r *Reader, count uint64) error {
	for i := uint64(0); i < count; i++ {
		var ids [4]uint64
		for j := range ids {
			v, err := r.ReadUnsigned()
			if err != nil {
				return err
			}
			ids[j] = v
		}
		attrs, err := readAttrs(r)
		if err != nil {
			return err
		}
		d.graph.RestoreEdge(ids[0], ids[1], ids[2], entities.RelationID(ids[3]), attrs)
	}
	return nil
}

func (d *Decoder) readDeletedIDs(r *Reader, count uint64) ([]entities.EntityID, error) {
	ids := make([]entities.EntityID, count)
	for i := range ids {
		v, err := r.ReadUnsigned()
		if err != nil {
			return nil, err
		}
		ids[i] = v
	}
	return ids, nil
}

// DecodeKey processes one virtual key. Keys must arrive in encode
// order; the last key finalizes the graph.
func (d *Decoder) DecodeKey(key []byte) error {
	if d.done {
		return errors.New("serializer: decode past final virtual key")
	}
	r := NewReader(bytes.NewReader(key))

	version, err := r.ReadUnsigned()
	if err != nil {
		return err
	}
	if version < MinDecodableVersion || version > Version {
		return errors.Wrapf(ErrUnsupportedVersion, "version %d", version)
	}

	h, err := readHeader(r)
	if err != nil {
		return errors.Wrap(err, "decode header")
	}

	d.graph.AcquireWriteLock()
	defer d.graph.ReleaseLock()

	if d.processedKeys == 0 {
		d.initGraph(h)
	}

	payloadCount, err := r.ReadUnsigned()
	if err != nil {
		return err
	}
	for i := uint64(0); i < payloadCount; i++ {
		tag, err := r.ReadUnsigned()
		if err != nil {
			return err
		}
		count, err := r.ReadUnsigned()
		if err != nil {
			return err
		}
		switch tag {
		case payloadNodes:
			err = d.readNodes(r, count)
		case payloadDeletedNodes:
			var ids []entities.EntityID
			if ids, err = d.readDeletedIDs(r, count); err == nil {
				d.graph.RestoreDeletedNodes(ids)
			}
		case payloadEdges:
			err = d.readEdges(r, count)
		case payloadDeletedEdges:
			var ids []entities.EntityID
			if ids, err = d.readDeletedIDs(r, count); err == nil {
				d.graph.RestoreDeletedEdges(ids)
			}
		default:
			err = errors.Errorf("serializer: unknown payload tag %d", tag)
		}
		if err != nil {
			return err
		}
	}

	d.processedKeys++
	if d.processedKeys == d.expectedKeys {
		d.finalize()
	}
	return nil
}

// finalize flushes all matrices, restores the steady-state sync policy
// and enables every pending index.
func (d *Decoder) finalize() {
	g := d.graph
	// no free-list compaction here: the restored deletion order is part
	// of the exact ID layout a snapshot reproduces
	g.ApplyAllPending(false)
	g.SetMatrixPolicy(d.prevPolicy)
	for _, idx := range d.Indices {
		idx.Enable()
	}
	d.done = true
}
