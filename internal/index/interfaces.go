// Package index defines the common contract vector indexes implement and
// adapts each concrete implementation (HNSW, flat) to it.
package index

import (
	"context"
	"fmt"

	"github.com/latticedb/vdb/internal/index/flat"
	"github.com/latticedb/vdb/internal/index/hnsw"
	"github.com/latticedb/vdb/internal/quant"
	"github.com/latticedb/vdb/internal/util"
)

// VectorEntry is a vector plus its id and metadata, kept independent of any
// one index package's own type to avoid circular imports.
type VectorEntry struct {
	ID       string
	Vector   []float32
	Metadata map[string]interface{}
}

// SearchResult is one ranked neighbor.
type SearchResult struct {
	ID       string
	Score    float32
	Vector   []float32
	Metadata map[string]interface{}
}

// Index is the contract every index implementation satisfies.
type Index interface {
	Insert(ctx context.Context, entry *VectorEntry) error
	Search(ctx context.Context, query []float32, k int) ([]*SearchResult, error)
	Get(id string) (*SearchResult, bool)
	Delete(ctx context.Context, id string) error
	Size() int
	MemoryUsage() int64
	Close() error
	SaveToDisk(path string) error
	LoadFromDisk(path string) error
}

// Type identifies a supported index algorithm.
type Type int

const (
	TypeHNSW Type = iota
	TypeFlat
)

func (t Type) String() string {
	switch t {
	case TypeHNSW:
		return "hnsw"
	case TypeFlat:
		return "flat"
	default:
		return "unknown"
	}
}

// HNSWConfig holds construction parameters for an HNSW index.
type HNSWConfig struct {
	Dimension      int
	M              int
	EfConstruction int
	EfSearch       int
	MaxLayer       int
	Metric         util.DistanceMetric
	Quantization   *quant.Config
	Seed           int64
}

// FlatConfig holds construction parameters for a flat (brute-force) index.
type FlatConfig struct {
	Dimension int
	Metric    util.DistanceMetric
}

type hnswWrapper struct {
	index *hnsw.Index
}

func (w *hnswWrapper) Insert(ctx context.Context, entry *VectorEntry) error {
	return w.index.Insert(ctx, entry.ID, entry.Vector, entry.Metadata)
}

func (w *hnswWrapper) Search(ctx context.Context, query []float32, k int) ([]*SearchResult, error) {
	results, err := w.index.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]*SearchResult, len(results))
	for i, r := range results {
		out[i] = &SearchResult{ID: r.ID, Score: r.Score, Vector: r.Vector, Metadata: r.Metadata}
	}
	return out, nil
}

func (w *hnswWrapper) Get(id string) (*SearchResult, bool) {
	r, ok := w.index.Get(id)
	if !ok {
		return nil, false
	}
	return &SearchResult{ID: r.ID, Score: r.Score, Vector: r.Vector, Metadata: r.Metadata}, true
}

func (w *hnswWrapper) Delete(ctx context.Context, id string) error {
	ok, err := w.index.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("index: id %q not found", id)
	}
	return nil
}

func (w *hnswWrapper) Size() int                 { return w.index.Size() }
func (w *hnswWrapper) MemoryUsage() int64        { return w.index.MemoryUsage() }
func (w *hnswWrapper) Close() error              { return w.index.Close() }
func (w *hnswWrapper) SaveToDisk(p string) error { return w.index.SaveToDisk(p) }

func (w *hnswWrapper) LoadFromDisk(path string) error {
	loaded, err := hnsw.LoadFromDisk(path)
	if err != nil {
		return err
	}
	w.index = loaded
	return nil
}

// NewHNSW builds an HNSW-backed Index.
func NewHNSW(config *HNSWConfig) (Index, error) {
	idx, err := hnsw.NewIndex(hnsw.Config{
		Dimension:      config.Dimension,
		Metric:         config.Metric,
		M:              config.M,
		EfConstruction: config.EfConstruction,
		EfSearch:       config.EfSearch,
		MaxLayer:       config.MaxLayer,
		Quantization:   config.Quantization,
		Seed:           config.Seed,
	})
	if err != nil {
		return nil, err
	}
	return &hnswWrapper{index: idx}, nil
}

type flatWrapper struct {
	index *flat.Index
}

func (w *flatWrapper) Insert(ctx context.Context, entry *VectorEntry) error {
	return w.index.Insert(ctx, entry.ID, entry.Vector, entry.Metadata)
}

func (w *flatWrapper) Search(ctx context.Context, query []float32, k int) ([]*SearchResult, error) {
	results, err := w.index.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]*SearchResult, len(results))
	for i, r := range results {
		out[i] = &SearchResult{ID: r.ID, Score: r.Score, Vector: r.Vector, Metadata: r.Metadata}
	}
	return out, nil
}

func (w *flatWrapper) Get(id string) (*SearchResult, bool) {
	r, ok := w.index.Get(id)
	if !ok {
		return nil, false
	}
	return &SearchResult{ID: r.ID, Score: r.Score, Vector: r.Vector, Metadata: r.Metadata}, true
}

func (w *flatWrapper) Delete(ctx context.Context, id string) error {
	ok, err := w.index.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("index: id %q not found", id)
	}
	return nil
}

func (w *flatWrapper) Size() int          { return w.index.Size() }
func (w *flatWrapper) MemoryUsage() int64 { return 0 }
func (w *flatWrapper) Close() error       { return w.index.Close() }

// SaveToDisk/LoadFromDisk are no-ops: flat is the in-memory recall oracle
// used by tests, never a persisted production index (see DESIGN.md).
func (w *flatWrapper) SaveToDisk(path string) error   { return nil }
func (w *flatWrapper) LoadFromDisk(path string) error { return nil }

// NewFlat builds a flat (brute-force) Index.
func NewFlat(config *FlatConfig) (Index, error) {
	idx, err := flat.NewIndex(flat.Config{Dimension: config.Dimension, Metric: config.Metric})
	if err != nil {
		return nil, err
	}
	return &flatWrapper{index: idx}, nil
}
