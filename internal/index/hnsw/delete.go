package hnsw

import (
	"context"
	"sync/atomic"
)

// Delete removes id from the graph. It unlinks the node from every neighbor
// that pointed to it, opportunistically wires those former co-neighbors to
// each other so the graph doesn't fragment, and replaces the entry point if
// the deleted node held it. There is no tombstone: the id becomes available
// for reuse by a later Insert of the same id as a brand new node.
func (idx *Index) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	node, slot, ok := idx.lookup(id)
	if !ok {
		return false, nil
	}

	node.mu.Lock()
	level := node.Level
	node.mu.Unlock()

	idx.structMu.RLock()
	all := make([]*Node, len(idx.nodes))
	copy(all, idx.nodes)
	idx.structMu.RUnlock()

	for l := 0; l <= level; l++ {
		mMax := idx.cfg.M
		if l == 0 {
			mMax = idx.cfg.M * 2
		}
		neighbors := node.linksAt(l)
		for i, n := range all {
			if n != nil && uint32(i) != slot {
				n.removeLink(l, slot)
			}
		}
		idx.reconnectAfterDelete(neighbors, l, mMax)
	}

	idx.idIndex.Delete(id)

	idx.structMu.Lock()
	idx.nodes[slot] = nil
	wasEntry := idx.hasEntry && idx.entryPoint == slot
	idx.structMu.Unlock()

	atomic.AddInt64(&idx.size, -1)

	if wasEntry {
		idx.replaceEntryPoint(slot)
	}
	return true, nil
}

// reconnectAfterDelete links former co-neighbors of a deleted node to each
// other, up to mMax connections per node, without any distance-based
// re-ranking: it is best-effort connectivity repair, not re-optimization.
func (idx *Index) reconnectAfterDelete(neighbors []uint32, level, mMax int) {
	for i, a := range neighbors {
		nodeA := idx.nodeAt(a)
		if nodeA == nil {
			continue
		}
		for j, b := range neighbors {
			if i == j {
				continue
			}
			if len(nodeA.linksAt(level)) >= mMax {
				break
			}
			nodeB := idx.nodeAt(b)
			if nodeB == nil || containsLink(nodeA.linksAt(level), b) {
				continue
			}
			nodeA.addLink(level, b)
			nodeB.addLink(level, a)
		}
	}
}

func containsLink(links []uint32, id uint32) bool {
	for _, l := range links {
		if l == id {
			return true
		}
	}
	return false
}

// replaceEntryPoint scans for the surviving node with the highest level to
// serve as the new entry point, excluding the just-deleted slot.
func (idx *Index) replaceEntryPoint(excluded uint32) {
	idx.structMu.Lock()
	defer idx.structMu.Unlock()

	bestLevel := -1
	var bestSlot uint32
	found := false
	for i, n := range idx.nodes {
		if n == nil || uint32(i) == excluded {
			continue
		}
		n.mu.Lock()
		lvl := n.Level
		n.mu.Unlock()
		if lvl > bestLevel {
			bestLevel = lvl
			bestSlot = uint32(i)
			found = true
		}
	}

	if found {
		idx.entryPoint = bestSlot
		idx.maxLevel = bestLevel
		idx.hasEntry = true
	} else {
		idx.hasEntry = false
		idx.maxLevel = 0
	}
}
