// Package engine coordinates the write-ahead log and the set of open
// collections: discovery at startup, WAL replay, and routing every public
// vector/collection operation to the right collection's storage and index.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/latticedb/vdb/internal/index"
	"github.com/latticedb/vdb/internal/storage/collection"
	"github.com/latticedb/vdb/internal/types"
)

// Collection bundles one collection's on-disk storage with its in-memory
// index. It is the unit cloned under the Engine's lock and operated on
// without holding that lock.
type Collection struct {
	mu      sync.RWMutex
	storage *collection.Storage
	idx     index.Index
}

func newCollectionHandle(storage *collection.Storage, idx index.Index) *Collection {
	return &Collection{storage: storage, idx: idx}
}

// Config returns the collection's immutable configuration.
func (c *Collection) Config() *types.CollectionConfig {
	return c.storage.Config()
}

// Insert validates the vector, appends it to the vectors file, then adds it
// to the index — in that order, so a concurrent searcher never observes a
// vector that isn't yet written to the file (written, not fsynced: Sync
// makes it durable).
func (c *Collection) Insert(ctx context.Context, id uuid.UUID, vector []float32, metadata map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.storage.Insert(id, vector, metadata); err != nil {
		return err
	}
	return c.idx.Insert(ctx, &index.VectorEntry{ID: id.String(), Vector: vector, Metadata: metadata})
}

// BatchInsert validates and appends every vector in one contiguous write,
// then inserts each into the index.
func (c *Collection) BatchInsert(ctx context.Context, ids []uuid.UUID, vectors [][]float32, metadatas []map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.storage.BatchInsert(ids, vectors, metadatas); err != nil {
		return err
	}
	for i := range vectors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.idx.Insert(ctx, &index.VectorEntry{ID: ids[i].String(), Vector: vectors[i], Metadata: metadatas[i]}); err != nil {
			return fmt.Errorf("engine: index insert for %s: %w", ids[i], err)
		}
	}
	return nil
}

// Delete removes id from the index. The vectors file is append-only, holds
// inserts only, and keeps the stale record; rebuild-from-storage therefore
// brings the id back, and WAL replay removes it again by re-applying the
// logged deletion.
func (c *Collection) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idx.Delete(ctx, id)
}

// Get performs a point lookup through the index, which is the sole source
// of a vector's current (possibly updated) value.
func (c *Collection) Get(id string) (*types.Vector, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.idx.Get(id)
	if !ok {
		return nil, false
	}
	return &types.Vector{ID: r.ID, Data: r.Vector, Metadata: r.Metadata}, true
}

// Search runs a nearest-neighbor query against the index.
func (c *Collection) Search(ctx context.Context, query []float32, k int) ([]*index.SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.idx.Search(ctx, query, k)
}

// Index exposes the underlying index for callers (the vdb facade) that need
// direct access beyond Search, such as persistence or stats.
func (c *Collection) Index() index.Index { return c.idx }

// Storage exposes the underlying on-disk storage.
func (c *Collection) Storage() *collection.Storage { return c.storage }

// Sync flushes the vectors file and the index's persisted form, if any.
func (c *Collection) Sync() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.storage.Sync(); err != nil {
		return err
	}
	return c.idx.SaveToDisk(c.storage.IndexPath())
}

// Close releases the collection's storage and index resources.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.idx.Close(); err != nil {
		return err
	}
	return c.storage.Close()
}
