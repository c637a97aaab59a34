package hnsw

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/latticedb/vdb/internal/util"
)

// Insert adds or updates a vector under id. Re-inserting an existing id
// replaces its vector and metadata in place without touching the graph
// structure: cheap, and sufficient for the index-rebuild-from-storage path
// to converge on "last write wins" per id without needing delete-then-insert.
func (idx *Index) Insert(ctx context.Context, id string, vector []float32, metadata map[string]interface{}) error {
	if len(vector) != idx.cfg.Dimension {
		return fmt.Errorf("hnsw: vector dimension %d does not match index dimension %d", len(vector), idx.cfg.Dimension)
	}

	if existing, _, ok := idx.lookup(id); ok {
		vecCopy := make([]float32, len(vector))
		copy(vecCopy, vector)
		existing.mu.Lock()
		existing.Vector = vecCopy
		existing.Metadata = metadata
		existing.mu.Unlock()
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	level := idx.randomLevel()
	vecCopy := make([]float32, len(vector))
	copy(vecCopy, vector)
	node := newNode(id, vecCopy, metadata, level)

	idx.structMu.Lock()
	slot := uint32(len(idx.nodes))
	idx.nodes = append(idx.nodes, node)
	first := !idx.hasEntry
	entrySlot, entryLevel := idx.entryPoint, idx.maxLevel
	if first {
		idx.entryPoint = slot
		idx.hasEntry = true
		idx.maxLevel = level
	}
	idx.structMu.Unlock()

	idx.idIndex.Store(id, slot)
	atomic.AddInt64(&idx.size, 1)

	if first {
		return nil
	}

	cur := entrySlot
	for l := entryLevel; l > level; l-- {
		cands := idx.searchLayer(vecCopy, []uint32{cur}, 1, l)
		if len(cands) > 0 {
			cur = cands[0].ID
		}
	}

	top := level
	if entryLevel < top {
		top = entryLevel
	}
	for l := top; l >= 0; l-- {
		candidates := idx.searchLayer(vecCopy, []uint32{cur}, idx.cfg.EfConstruction, l)
		mMax := idx.cfg.M
		if l == 0 {
			mMax = idx.cfg.M * 2
		}
		selected := candidates
		if len(selected) > idx.cfg.M {
			selected = selected[:idx.cfg.M]
		}
		idx.connect(slot, selected, l, mMax)
		if len(selected) > 0 {
			cur = selected[0].ID
		}
	}

	if level > entryLevel {
		idx.structMu.Lock()
		if level > idx.maxLevel {
			idx.entryPoint = slot
			idx.maxLevel = level
		}
		idx.structMu.Unlock()
	}

	return nil
}

// connect wires nodeSlot bidirectionally to neighbors at level, then prunes
// any neighbor whose degree now exceeds mMax down to its mMax closest links.
func (idx *Index) connect(nodeSlot uint32, neighbors []*util.Candidate, level, mMax int) {
	node := idx.nodeAt(nodeSlot)
	if node == nil {
		return
	}
	ids := make([]uint32, len(neighbors))
	for i, c := range neighbors {
		ids[i] = c.ID
	}
	node.setLinks(level, ids)

	for _, c := range neighbors {
		neighbor := idx.nodeAt(c.ID)
		if neighbor == nil {
			continue
		}
		neighbor.addLink(level, nodeSlot)
		if len(neighbor.linksAt(level)) > mMax {
			idx.pruneToNearest(neighbor, level, mMax)
		}
	}
}

// pruneToNearest keeps only the mMax links of neighbor (at level) nearest to
// neighbor's own vector, dropping the rest.
func (idx *Index) pruneToNearest(neighbor *Node, level, mMax int) {
	neighbor.mu.Lock()
	vec := neighbor.Vector
	neighbor.mu.Unlock()

	links := neighbor.linksAt(level)
	candidates := make([]*util.Candidate, 0, len(links))
	for _, l := range links {
		if d, ok := idx.distanceTo(l, vec); ok {
			candidates = append(candidates, &util.Candidate{ID: l, Distance: d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Distance < candidates[j].Distance })
	if len(candidates) > mMax {
		candidates = candidates[:mMax]
	}
	kept := make([]uint32, len(candidates))
	for i, c := range candidates {
		kept[i] = c.ID
	}
	neighbor.setLinks(level, kept)
}
