package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/latticedb/vdb/internal/index"
	"github.com/latticedb/vdb/internal/obs"
	"github.com/latticedb/vdb/internal/storage/collection"
	"github.com/latticedb/vdb/internal/storage/wal"
	"github.com/latticedb/vdb/internal/types"
)

const walFileName = "wal"

// Engine holds the write-ahead log and every open collection, routing each
// vector operation to the right collection after cloning its handle under
// a single read-write lock, which is released before the vector I/O.
// CreateCollection, RegisterImportedCollection and Close hold the lock for
// their whole duration, file I/O included.
type Engine struct {
	mu          sync.RWMutex
	dataDir     string
	wal         *wal.WAL
	collections map[string]*Collection
	logger      *slog.Logger
	metrics     *obs.Metrics
}

// Open discovers existing collections under dataDir, opens the write-ahead
// log, and replays its tail against the discovered set.
func Open(dataDir string, logger *slog.Logger, metrics *obs.Metrics) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("engine: mkdir %s: %w", dataDir, err)
	}

	log, err := wal.New(filepath.Join(dataDir, walFileName))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		dataDir:     dataDir,
		wal:         log,
		collections: make(map[string]*Collection),
		logger:      logger,
		metrics:     metrics,
	}

	if err := e.discover(); err != nil {
		return nil, err
	}
	if err := e.replayWAL(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// discover scans dataDir for subdirectories holding a metadata.json,
// skipping the wal file, dotfiles, .deleted, and .backups.
func (e *Engine) discover() error {
	entries, err := os.ReadDir(e.dataDir)
	if err != nil {
		return fmt.Errorf("engine: read data dir %s: %w", e.dataDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == walFileName || strings.HasPrefix(name, ".") {
			continue
		}

		dir := filepath.Join(e.dataDir, name)
		metaPath := filepath.Join(dir, "metadata.json")
		if _, err := os.Stat(metaPath); err != nil {
			continue
		}

		storage, err := collection.Load(dir, e.logger)
		if err != nil {
			e.logger.Warn("engine: failed to load collection, skipping", "collection", name, "error", err)
			continue
		}

		idx, err := buildIndex(storage.Config())
		if err != nil {
			e.logger.Warn("engine: failed to build index for collection, skipping", "collection", name, "error", err)
			continue
		}
		if err := rebuildIndexFromStorage(context.Background(), storage, idx); err != nil {
			e.logger.Warn("engine: failed to rebuild index from storage", "collection", name, "error", err)
		}

		e.collections[name] = newCollectionHandle(storage, idx)
	}
	return nil
}

// rebuildIndexFromStorage iterates every record in a collection's vectors
// file and replays it into idx, giving "last write wins" semantics for any
// id appended more than once (see hnsw.Index.Insert's upsert behavior).
func rebuildIndexFromStorage(ctx context.Context, storage *collection.Storage, idx index.Index) error {
	return storage.IterVectors(func(rec *collection.Record) error {
		return idx.Insert(ctx, &index.VectorEntry{ID: rec.ID.String(), Vector: rec.Vector, Metadata: rec.Metadata})
	})
}

func buildIndex(config *types.CollectionConfig) (index.Index, error) {
	return index.NewHNSW(&index.HNSWConfig{
		Dimension:      config.Dimension,
		M:              config.Index.MaxConnections,
		EfConstruction: config.Index.EfConstruction,
		EfSearch:       config.Index.EfSearch,
		MaxLayer:       config.Index.MaxLayer,
		Metric:         config.Metric,
		Quantization:   config.Quantization,
	})
}

// replayWAL applies every operation recorded since the last checkpoint.
// Replay tolerates duplication: CreateCollection on an existing name and
// DeleteCollection on an absent one are no-ops, and Insert/Delete are
// re-applied unconditionally because the index (rebuilt from storage
// before replay) is the source of correctness, not the physical file.
func (e *Engine) replayWAL(ctx context.Context) error {
	ops, err := e.wal.ReadAll()
	if err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.RecoveryRuns.Inc()
	}
	for _, op := range ops {
		if err := e.apply(ctx, op); err != nil {
			e.logger.Warn("engine: skipping WAL entry during replay", "op", op.Type, "collection", op.Collection, "error", err)
			if e.metrics != nil {
				e.metrics.RecoverySkipped.Inc()
			}
			continue
		}
		if e.metrics != nil {
			e.metrics.RecoveryEntries.Inc()
		}
	}
	return nil
}

// apply replays a single WAL operation directly against storage, bypassing
// a second WAL append (the entry being replayed already is that append).
func (e *Engine) apply(ctx context.Context, op wal.Operation) error {
	switch op.Type {
	case wal.OpCreateCollection:
		if _, exists := e.collections[op.Collection]; exists {
			return nil
		}
		return e.createCollectionStorage(op.Config)

	case wal.OpDeleteCollection:
		handle, exists := e.collections[op.Collection]
		if !exists {
			return nil
		}
		delete(e.collections, op.Collection)
		handle.Close()
		return os.RemoveAll(filepath.Join(e.dataDir, op.Collection))

	case wal.OpInsertVector:
		handle, exists := e.collections[op.Collection]
		if !exists {
			return fmt.Errorf("engine: insert into unknown collection %q", op.Collection)
		}
		id, err := uuid.Parse(op.Vector.ID)
		if err != nil {
			return err
		}
		return handle.Insert(ctx, id, op.Vector.Data, op.Vector.Metadata)

	case wal.OpBatchInsert:
		handle, exists := e.collections[op.Collection]
		if !exists {
			return fmt.Errorf("engine: batch insert into unknown collection %q", op.Collection)
		}
		ids := make([]uuid.UUID, len(op.Vectors))
		vectors := make([][]float32, len(op.Vectors))
		metadatas := make([]map[string]interface{}, len(op.Vectors))
		for i, v := range op.Vectors {
			id, err := uuid.Parse(v.ID)
			if err != nil {
				return err
			}
			ids[i], vectors[i], metadatas[i] = id, v.Data, v.Metadata
		}
		return handle.BatchInsert(ctx, ids, vectors, metadatas)

	case wal.OpDeleteVector:
		handle, exists := e.collections[op.Collection]
		if !exists {
			return fmt.Errorf("engine: delete from unknown collection %q", op.Collection)
		}
		return handle.Delete(ctx, op.VectorID)

	default:
		return fmt.Errorf("engine: unknown operation type %v", op.Type)
	}
}

func (e *Engine) createCollectionStorage(config *types.CollectionConfig) error {
	dir := filepath.Join(e.dataDir, config.Name)
	storage, err := collection.Create(dir, config, e.logger)
	if err != nil {
		return err
	}
	idx, err := buildIndex(config)
	if err != nil {
		return err
	}
	e.collections[config.Name] = newCollectionHandle(storage, idx)
	return nil
}

// CreateCollection writes the WAL record before creating the on-disk
// directory and index, per the WAL-then-storage ordering for creates.
func (e *Engine) CreateCollection(ctx context.Context, config *types.CollectionConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.collections[config.Name]; exists {
		return fmt.Errorf("engine: collection %q already exists", config.Name)
	}
	if err := e.wal.Append(ctx, wal.Operation{Type: wal.OpCreateCollection, Collection: config.Name, Config: config}); err != nil {
		return err
	}
	return e.createCollectionStorage(config)
}

// DeleteCollection hard-deletes: removes the in-memory handle, appends the
// WAL record, then removes the directory from disk.
func (e *Engine) DeleteCollection(ctx context.Context, name string) error {
	e.mu.Lock()
	handle, exists := e.collections[name]
	if !exists {
		e.mu.Unlock()
		return fmt.Errorf("engine: collection %q not found", name)
	}
	delete(e.collections, name)
	e.mu.Unlock()

	if err := e.wal.Append(ctx, wal.Operation{Type: wal.OpDeleteCollection, Collection: name}); err != nil {
		return err
	}
	if err := handle.Close(); err != nil {
		e.logger.Warn("engine: error closing collection during delete", "collection", name, "error", err)
	}
	return os.RemoveAll(filepath.Join(e.dataDir, name))
}

// UnregisterCollection removes a collection from the live map and appends
// its WAL tombstone, without touching the on-disk directory. It exists
// for soft-delete, where the caller relocates the directory under
// .deleted/ itself rather than having it removed outright.
func (e *Engine) UnregisterCollection(ctx context.Context, name string) error {
	e.mu.Lock()
	handle, exists := e.collections[name]
	if !exists {
		e.mu.Unlock()
		return fmt.Errorf("engine: collection %q not found", name)
	}
	delete(e.collections, name)
	e.mu.Unlock()

	if err := e.wal.Append(ctx, wal.Operation{Type: wal.OpDeleteCollection, Collection: name}); err != nil {
		return err
	}
	if err := handle.Close(); err != nil {
		e.logger.Warn("engine: error closing collection during unregister", "collection", name, "error", err)
	}
	return nil
}

func (e *Engine) clone(name string) (*Collection, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	handle, exists := e.collections[name]
	if !exists {
		return nil, fmt.Errorf("engine: collection %q not found", name)
	}
	return handle, nil
}

// InsertVector appends to the collection's vectors file and index first
// (storage-then-WAL, a latency optimization since the file is the rebuild
// source of truth), then records the operation in the WAL.
func (e *Engine) InsertVector(ctx context.Context, collectionName string, id uuid.UUID, vector []float32, metadata map[string]interface{}) error {
	handle, err := e.clone(collectionName)
	if err != nil {
		return err
	}
	if err := handle.Insert(ctx, id, vector, metadata); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.VectorInserts.Inc()
	}
	return e.wal.Append(ctx, wal.Operation{
		Type:       wal.OpInsertVector,
		Collection: collectionName,
		Vector:     &wal.VectorPayload{ID: id.String(), Data: vector, Metadata: metadata},
	})
}

// BatchInsert writes every vector to storage and the index, then appends a
// single WAL record covering the whole batch.
func (e *Engine) BatchInsert(ctx context.Context, collectionName string, ids []uuid.UUID, vectors [][]float32, metadatas []map[string]interface{}) error {
	handle, err := e.clone(collectionName)
	if err != nil {
		return err
	}
	if err := handle.BatchInsert(ctx, ids, vectors, metadatas); err != nil {
		return err
	}
	payloads := make([]*wal.VectorPayload, len(ids))
	for i := range ids {
		payloads[i] = &wal.VectorPayload{ID: ids[i].String(), Data: vectors[i], Metadata: metadatas[i]}
	}
	if e.metrics != nil {
		e.metrics.VectorInserts.Add(float64(len(ids)))
	}
	return e.wal.Append(ctx, wal.Operation{Type: wal.OpBatchInsert, Collection: collectionName, Vectors: payloads})
}

// DeleteVector removes id from the index, then records the deletion.
func (e *Engine) DeleteVector(ctx context.Context, collectionName, id string) error {
	handle, err := e.clone(collectionName)
	if err != nil {
		return err
	}
	if err := handle.Delete(ctx, id); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.VectorDeletes.Inc()
	}
	return e.wal.Append(ctx, wal.Operation{Type: wal.OpDeleteVector, Collection: collectionName, VectorID: id})
}

// GetVector performs a point lookup through the collection's index.
func (e *Engine) GetVector(collectionName, id string) (*types.Vector, error) {
	handle, err := e.clone(collectionName)
	if err != nil {
		return nil, err
	}
	v, ok := handle.Get(id)
	if !ok {
		return nil, fmt.Errorf("engine: vector %q not found in collection %q", id, collectionName)
	}
	return v, nil
}

// Search runs a nearest-neighbor query against a collection's index.
func (e *Engine) Search(ctx context.Context, collectionName string, query []float32, k int) ([]*index.SearchResult, error) {
	handle, err := e.clone(collectionName)
	if err != nil {
		return nil, err
	}
	return handle.Search(ctx, query, k)
}

// ListCollections returns every open collection's name.
func (e *Engine) ListCollections() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.collections))
	for name := range e.collections {
		names = append(names, name)
	}
	return names
}

// GetCollectionConfig returns a collection's immutable configuration.
func (e *Engine) GetCollectionConfig(name string) (*types.CollectionConfig, error) {
	handle, err := e.clone(name)
	if err != nil {
		return nil, err
	}
	return handle.Config(), nil
}

// GetCollectionStats derives current size and memory usage from the index.
func (e *Engine) GetCollectionStats(name string) (*types.CollectionStats, error) {
	handle, err := e.clone(name)
	if err != nil {
		return nil, err
	}
	idx := handle.Index()
	cfg := handle.Config()
	return &types.CollectionStats{
		Name:             name,
		VectorCount:      idx.Size(),
		Dimension:        cfg.Dimension,
		MemoryUsageBytes: idx.MemoryUsage(),
	}, nil
}

// GetAllVectors returns every record in a collection's vectors file, in
// file order. The file is append-only, so records of since-deleted ids and
// superseded values of re-inserted ids are included. Scroll and filtered
// Count read through it.
func (e *Engine) GetAllVectors(collectionName string) ([]*types.Vector, error) {
	handle, err := e.clone(collectionName)
	if err != nil {
		return nil, err
	}
	var vectors []*types.Vector
	err = handle.Storage().IterVectors(func(rec *collection.Record) error {
		vectors = append(vectors, &types.Vector{ID: rec.ID.String(), Data: rec.Vector, Metadata: rec.Metadata})
		return nil
	})
	return vectors, err
}

// RegisterImportedCollection wires a collection directory that was copied
// onto disk out-of-band (by the recovery manager's orphan import) into the
// engine's live map, rebuilding its index from the imported vectors file.
func (e *Engine) RegisterImportedCollection(config *types.CollectionConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.collections[config.Name]; exists {
		return fmt.Errorf("engine: collection %q already exists", config.Name)
	}
	dir := filepath.Join(e.dataDir, config.Name)
	storage, err := collection.Load(dir, e.logger)
	if err != nil {
		return err
	}
	idx, err := buildIndex(config)
	if err != nil {
		return err
	}
	if err := rebuildIndexFromStorage(context.Background(), storage, idx); err != nil {
		return err
	}
	e.collections[config.Name] = newCollectionHandle(storage, idx)
	return nil
}

// Sync flushes the WAL and every open collection's storage and index.
func (e *Engine) Sync() error {
	e.mu.RLock()
	handles := make([]*Collection, 0, len(e.collections))
	for _, h := range e.collections {
		handles = append(handles, h)
	}
	e.mu.RUnlock()

	if err := e.wal.Sync(); err != nil {
		return err
	}
	for _, h := range handles {
		if err := h.Sync(); err != nil {
			return err
		}
	}
	return nil
}

// DataDir returns the engine's root data directory.
func (e *Engine) DataDir() string { return e.dataDir }

// WAL exposes the write-ahead log for the recovery and snapshot managers.
func (e *Engine) WAL() *wal.WAL { return e.wal }

// Close flushes and closes every resource the engine owns.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for name, h := range e.collections {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("engine: closing collection %q: %w", name, err)
		}
	}
	if err := e.wal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
