package hnsw

import (
	"context"
	"fmt"

	"github.com/latticedb/vdb/internal/util"
)

// SearchResult is one ranked neighbor returned from Search.
type SearchResult struct {
	ID       string
	Score    float32
	Vector   []float32
	Metadata map[string]interface{}
}

// searchLayer is the core greedy beam search ("SEARCH-LAYER" in the HNSW
// paper): it expands from entries, keeping the ef closest candidates found
// so far in a max-heap (W) while a min-heap (C) drives which unvisited node
// to expand next. It returns up to ef results ordered nearest-first.
func (idx *Index) searchLayer(query []float32, entries []uint32, ef, level int) []*util.Candidate {
	visited := make(map[uint32]bool, ef*2)
	w := util.NewMaxHeap(ef)
	c := util.NewMinHeap(ef)

	for _, e := range entries {
		if visited[e] {
			continue
		}
		visited[e] = true
		d, ok := idx.distanceTo(e, query)
		if !ok {
			continue
		}
		cand := &util.Candidate{ID: e, Distance: d}
		c.PushCandidate(cand)
		w.PushCandidate(cand)
	}

	for c.Len() > 0 {
		current := c.PopCandidate()
		if w.Len() >= ef && current.Distance > w.Top().Distance {
			break
		}

		node := idx.nodeAt(current.ID)
		if node == nil {
			continue
		}
		for _, neighborID := range node.linksAt(level) {
			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true
			d, ok := idx.distanceTo(neighborID, query)
			if !ok {
				continue
			}
			if w.Len() < ef || d < w.Top().Distance {
				cand := &util.Candidate{ID: neighborID, Distance: d}
				c.PushCandidate(cand)
				w.PushCandidate(cand)
				if w.Len() > ef {
					w.PopCandidate()
				}
			}
		}
	}

	result := make([]*util.Candidate, w.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = w.PopCandidate()
	}
	return result
}

// Get performs a direct point lookup by id, bypassing any distance search.
func (idx *Index) Get(id string) (*SearchResult, bool) {
	node, _, ok := idx.lookup(id)
	if !ok {
		return nil, false
	}
	node.mu.Lock()
	defer node.mu.Unlock()
	vec := make([]float32, len(node.Vector))
	copy(vec, node.Vector)
	return &SearchResult{ID: node.ID, Score: 0, Vector: vec, Metadata: node.Metadata}, true
}

// Search returns the k approximate nearest neighbors to query: a greedy
// descent from the top layer down to layer 1 narrows to a single best entry
// point, then layer 0 is searched with ef = max(EfSearch, k) to gather the
// final candidate set.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]*SearchResult, error) {
	if len(query) != idx.cfg.Dimension {
		return nil, fmt.Errorf("hnsw: query dimension %d does not match index dimension %d", len(query), idx.cfg.Dimension)
	}
	if k <= 0 {
		return nil, fmt.Errorf("hnsw: k must be positive")
	}

	entry, level, ok := idx.currentEntry()
	if !ok {
		return nil, nil
	}

	cur := entry
	for l := level; l > 0; l-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cands := idx.searchLayer(query, []uint32{cur}, 1, l)
		if len(cands) > 0 {
			cur = cands[0].ID
		}
	}

	ef := idx.cfg.EfSearch
	if k > ef {
		ef = k
	}
	cands := idx.searchLayer(query, []uint32{cur}, ef, 0)

	if len(cands) > k {
		cands = cands[:k]
	}

	results := make([]*SearchResult, 0, len(cands))
	for _, cand := range cands {
		node := idx.nodeAt(cand.ID)
		if node == nil {
			continue
		}
		node.mu.Lock()
		vec := make([]float32, len(node.Vector))
		copy(vec, node.Vector)
		id := node.ID
		meta := node.Metadata
		node.mu.Unlock()
		results = append(results, &SearchResult{ID: id, Score: cand.Distance, Vector: vec, Metadata: meta})
	}
	return results, nil
}
