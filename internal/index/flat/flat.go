// Package flat implements brute-force exact nearest-neighbor search. It
// exists as the correctness oracle that the HNSW index's recall is measured
// against, not as a pluggable production index.
package flat

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/latticedb/vdb/internal/util"
)

type Config struct {
	Dimension int
	Metric    util.DistanceMetric
}

type entry struct {
	id       string
	vector   []float32
	metadata map[string]interface{}
}

// Index is a brute-force, exhaustive-scan vector index.
type Index struct {
	cfg      Config
	distFunc util.DistanceFunc
	entries  []*entry
	byID     map[string]int
	mu       sync.RWMutex
}

func NewIndex(cfg Config) (*Index, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("flat: dimension must be positive")
	}
	distFunc, err := util.GetDistanceFunc(cfg.Metric)
	if err != nil {
		return nil, err
	}
	return &Index{
		cfg:      cfg,
		distFunc: distFunc,
		byID:     make(map[string]int),
	}, nil
}

func (idx *Index) Insert(ctx context.Context, id string, vector []float32, metadata map[string]interface{}) error {
	if len(vector) != idx.cfg.Dimension {
		return fmt.Errorf("flat: vector dimension %d does not match index dimension %d", len(vector), idx.cfg.Dimension)
	}
	vecCopy := make([]float32, len(vector))
	copy(vecCopy, vector)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if i, ok := idx.byID[id]; ok {
		idx.entries[i] = &entry{id: id, vector: vecCopy, metadata: metadata}
		return nil
	}
	idx.byID[id] = len(idx.entries)
	idx.entries = append(idx.entries, &entry{id: id, vector: vecCopy, metadata: metadata})
	return nil
}

type SearchResult struct {
	ID       string
	Score    float32
	Vector   []float32
	Metadata map[string]interface{}
}

func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]*SearchResult, error) {
	if len(query) != idx.cfg.Dimension {
		return nil, fmt.Errorf("flat: query dimension %d does not match index dimension %d", len(query), idx.cfg.Dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([]*SearchResult, 0, len(idx.entries))
	for _, e := range idx.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results = append(results, &SearchResult{
			ID:       e.id,
			Score:    idx.distFunc(query, e.vector),
			Vector:   e.vector,
			Metadata: e.metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Get performs a direct point lookup by id, bypassing the distance scan.
func (idx *Index) Get(id string) (*SearchResult, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	i, ok := idx.byID[id]
	if !ok {
		return nil, false
	}
	e := idx.entries[i]
	return &SearchResult{ID: e.id, Score: 0, Vector: e.vector, Metadata: e.metadata}, true
}

func (idx *Index) Delete(ctx context.Context, id string) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	i, ok := idx.byID[id]
	if !ok {
		return false, nil
	}
	idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
	delete(idx.byID, id)
	for j := i; j < len(idx.entries); j++ {
		idx.byID[idx.entries[j].id] = j
	}
	return true, nil
}

func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

func (idx *Index) Close() error { return nil }
