package index

import (
	"github.com/sirupsen/logrus"

	"github.com/tosone/falkordb/pkg/entities"
	"github.com/tosone/falkordb/pkg/graph"
	"github.com/tosone/falkordb/pkg/matrix"
)

// DefaultBatchSize is the number of entities indexed per read-locked
// window. For edges it is a soft cap: a multi-edge slot is expanded
// atomically within its batch.
const DefaultBatchSize = 1000

// Populator drives asynchronous index population.
type Populator struct {
	BatchSize int
	Log       logrus.FieldLogger
}

// Populate fills idx from g in batches, releasing the read lock between
// batches, then enables the index. Runs on the caller's goroutine;
// callers normally spawn one. Uses the default batch size and logger.
func Populate(idx EntityIndexer, g *graph.Graph) {
	(&Populator{}).Populate(idx, g)
}

func (p *Populator) batchSize() int {
	if p.BatchSize > 0 {
		return p.BatchSize
	}
	return DefaultBatchSize
}

func (p *Populator) log() logrus.FieldLogger {
	if p.Log != nil {
		return p.Log
	}
	return logrus.StandardLogger()
}

// Populate fills idx from g and tries to enable it. Population aborts
// cleanly when the index leaves the POPULATING state (a drop or a
// superseding index build).
func (p *Populator) Populate(idx EntityIndexer, g *graph.Graph) {
	if idx.LabelID() == graph.UnknownID {
		idx.Enable()
		return
	}
	if idx.EntityType() == IndexNode {
		p.populateNodes(idx, g)
	} else {
		p.populateEdges(idx, g)
	}
	idx.Enable()
}

// populateNodes walks the diagonal label matrix. The resume position is
// the row after the last indexed node: rows only ascend, so it is stable
// under concurrent insertion and deletion. Nodes inserted at earlier
// rows during a release window are indexed by the write path directly.
func (p *Populator) populateNodes(idx EntityIndexer, g *graph.Graph) {
	var (
		rowIdx  uint64
		it      matrix.TupleIter
		batch   = p.batchSize()
		total   uint64
		labelID = entities.LabelID(idx.LabelID())
	)

	for {
		if idx.State() != StatePopulating {
			break
		}

		indexed := 0

		g.AcquireReadLock()

		m := g.LabelMatrix(labelID)
		if err := it.Attach(m); err != nil {
			g.ReleaseLock()
			break
		}
		if err := it.JumpToRow(rowIdx); err != nil {
			g.ReleaseLock()
			break
		}

		var id uint64
		for indexed < batch {
			var ok bool
			id, _, _, ok = it.Next()
			if !ok {
				break
			}
			if n, alive := g.GetNode(id); alive {
				idx.IndexNodeEntity(n)
			}
			indexed++
		}

		g.ReleaseLock()
		total += uint64(indexed)
		populatedEntities.WithLabelValues(g.Name(), "node").Add(float64(indexed))
		populationBatches.WithLabelValues(g.Name(), "node").Inc()

		if indexed != batch {
			// iterator depleted
			break
		}
		it.Detach()
		// diagonal matrix: the next unseen row is id+1
		rowIdx = id + 1
	}

	it.Detach()
	p.log().WithFields(logrus.Fields{
		"graph":   g.Name(),
		"indexed": total,
	}).Debug("node index population finished")
}

// populateEdges walks the relation matrix resuming strictly after the
// last indexed (src, dest) pair: tuples with src == resumeSrc and
// dest <= resumeDest are skipped after the jump.
func (p *Populator) populateEdges(idx EntityIndexer, g *graph.Graph) {
	var (
		srcID   uint64
		destID  uint64
		it      matrix.TupleIter
		batch   = p.batchSize()
		total   uint64
		started bool
		relID   = entities.RelationID(idx.LabelID())
	)

	indexSlot := func(raw uint64) {
		for _, eid := range g.ExpandSlot(relID, raw) {
			if e, alive := g.GetEdge(eid); alive {
				idx.IndexEdgeEntity(e)
			}
		}
	}

	for {
		if idx.State() != StatePopulating {
			break
		}

		indexed := 0
		prevSrc, prevDest := srcID, destID

		g.AcquireReadLock()

		m := g.RelationMatrix(relID)
		if err := it.Attach(m); err != nil {
			g.ReleaseLock()
			break
		}
		if err := it.JumpToRow(srcID); err != nil {
			g.ReleaseLock()
			break
		}

		// skip entries indexed in previous batches
		var raw uint64
		var ok bool
		for {
			srcID, destID, raw, ok = it.Next()
			if !ok {
				break
			}
			if started && srcID == prevSrc && destID <= prevDest {
				continue
			}
			break
		}
		if !ok {
			g.ReleaseLock()
			break
		}

		for {
			indexSlot(raw)
			indexed++
			started = true
			if indexed >= batch {
				break
			}
			srcID, destID, raw, ok = it.Next()
			if !ok {
				break
			}
		}

		g.ReleaseLock()
		total += uint64(indexed)
		populatedEntities.WithLabelValues(g.Name(), "edge").Add(float64(indexed))
		populationBatches.WithLabelValues(g.Name(), "edge").Inc()

		if indexed != batch {
			break
		}
		it.Detach()
	}

	it.Detach()
	p.log().WithFields(logrus.Fields{
		"graph":   g.Name(),
		"indexed": total,
	}).Debug("edge index population finished")
}
