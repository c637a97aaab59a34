// Package hnsw implements a hierarchical navigable small world graph: a
// multi-layer approximate nearest-neighbor index with logarithmic expected
// search cost. Layer 0 holds every vector; each layer above it holds a
// geometrically-shrinking subset, letting search descend from a sparse top
// layer into a dense greedy walk at the bottom.
package hnsw

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/latticedb/vdb/internal/quant"
	"github.com/latticedb/vdb/internal/util"
)

// Config holds the construction-time parameters of an index. Defaults
// mirror the values widely reported to work well in the original HNSW
// paper: M=16, EfConstruction=200, EfSearch=50, MaxLayer=16.
type Config struct {
	Dimension      int
	Metric         util.DistanceMetric
	M              int
	EfConstruction int
	EfSearch       int
	MaxLayer       int

	// Quantization is validated for shape fidelity but, since only
	// quant.None has a working implementation, any other type makes
	// NewIndex return an error rather than silently storing
	// full-precision vectors under a false label.
	Quantization *quant.Config

	// Seed fixes the level-assignment RNG so tests are reproducible.
	Seed int64
}

func (c Config) withDefaults() Config {
	if c.M <= 0 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 50
	}
	if c.MaxLayer <= 0 {
		c.MaxLayer = 16
	}
	return c
}

func (c Config) validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("hnsw: dimension must be positive")
	}
	if c.Quantization != nil {
		if err := c.Quantization.Validate(); err != nil {
			return fmt.Errorf("hnsw: %w", err)
		}
	}
	return nil
}

// Index is a concurrent HNSW graph. Distinct ids can be inserted, searched
// and deleted concurrently: the id->slot lookup is a sync.Map, per-node edge
// lists are guarded by their own mutex, and only structural events (first
// insert, entry-point replacement, node-slice growth) take the index-wide
// lock.
type Index struct {
	cfg      Config
	distFunc util.DistanceFunc

	idIndex sync.Map // string id -> uint32 slot

	structMu   sync.RWMutex
	nodes      []*Node // slot -> node; nil once deleted, slots are never reused
	entryPoint uint32
	hasEntry   bool
	maxLevel   int

	size int64

	rngMu sync.Mutex
	rng   *rand.Rand

	levelMultiplier float64
}

// NewIndex builds an empty index for the given configuration.
func NewIndex(cfg Config) (*Index, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	distFunc, err := util.GetDistanceFunc(cfg.Metric)
	if err != nil {
		return nil, err
	}
	return &Index{
		cfg:             cfg,
		distFunc:        distFunc,
		rng:             rand.New(rand.NewSource(cfg.Seed)),
		levelMultiplier: 1.0 / math.Log(float64(cfg.M)),
	}, nil
}

// Size returns the number of live (non-deleted) vectors.
func (idx *Index) Size() int {
	return int(atomic.LoadInt64(&idx.size))
}

// Dimension returns the configured vector dimension.
func (idx *Index) Dimension() int { return idx.cfg.Dimension }

// MemoryUsage estimates resident bytes: vectors plus link-list overhead.
func (idx *Index) MemoryUsage() int64 {
	idx.structMu.RLock()
	nodes := idx.nodes
	idx.structMu.RUnlock()

	var total int64
	for _, n := range nodes {
		if n == nil {
			continue
		}
		n.mu.Lock()
		total += int64(len(n.Vector) * 4)
		for _, l := range n.Links {
			total += int64(len(l) * 4)
		}
		n.mu.Unlock()
	}
	return total
}

// Close releases index resources. The in-memory graph holds nothing beyond
// Go-managed memory, so Close is a formality kept for interface symmetry
// with the on-disk index implementations.
func (idx *Index) Close() error { return nil }

func (idx *Index) randomLevel() int {
	idx.rngMu.Lock()
	defer idx.rngMu.Unlock()
	level := 0
	for idx.rng.Float64() < 0.5 && level < idx.cfg.MaxLayer {
		level++
	}
	return level
}

func (idx *Index) nodeAt(slot uint32) *Node {
	idx.structMu.RLock()
	defer idx.structMu.RUnlock()
	if int(slot) >= len(idx.nodes) {
		return nil
	}
	return idx.nodes[slot]
}

func (idx *Index) lookup(id string) (*Node, uint32, bool) {
	v, ok := idx.idIndex.Load(id)
	if !ok {
		return nil, 0, false
	}
	slot := v.(uint32)
	n := idx.nodeAt(slot)
	return n, slot, n != nil
}

func (idx *Index) distanceTo(slot uint32, query []float32) (float32, bool) {
	n := idx.nodeAt(slot)
	if n == nil {
		return 0, false
	}
	n.mu.Lock()
	vec := n.Vector
	n.mu.Unlock()
	return idx.distFunc(query, vec), true
}

// currentEntry returns the current entry point slot and its level, or ok=false
// for an empty index.
func (idx *Index) currentEntry() (uint32, int, bool) {
	idx.structMu.RLock()
	defer idx.structMu.RUnlock()
	if !idx.hasEntry {
		return 0, 0, false
	}
	return idx.entryPoint, idx.maxLevel, true
}

// Stats summarizes current graph shape for diagnostics and collection stats.
type Stats struct {
	VectorCount int
	MaxLevel    int
	Dimension   int
	Metric      string
}

func (idx *Index) Stats() Stats {
	idx.structMu.RLock()
	level := idx.maxLevel
	idx.structMu.RUnlock()
	return Stats{
		VectorCount: idx.Size(),
		MaxLevel:    level,
		Dimension:   idx.cfg.Dimension,
		Metric:      idx.cfg.Metric.String(),
	}
}
