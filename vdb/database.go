// Package vdb is the public facade over the storage engine, HNSW index,
// recovery manager, and snapshot manager: it validates inputs, wires
// together the internal layers, and implements the higher-order queries
// (recommend, discover, scroll, count, batch search) that don't belong in
// any single lower layer.
package vdb

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/latticedb/vdb/internal/obs"
	"github.com/latticedb/vdb/internal/recovery"
	"github.com/latticedb/vdb/internal/snapshot"
	"github.com/latticedb/vdb/internal/storage/engine"
	"github.com/latticedb/vdb/internal/types"
)

// Database is the top-level entry point: one instance per data directory.
type Database struct {
	mu       sync.RWMutex
	config   *Config
	engine   *engine.Engine
	recovery *recovery.Manager
	snapshot *snapshot.Manager
	metrics  *obs.Metrics
	health   *obs.HealthChecker
	logger   *slog.Logger
	runtime  map[string]collectionRuntime
	closed   bool
}

type collectionRuntime struct {
	persistIndexEvery time.Duration
	stopPersist       chan struct{}
}

// Open discovers existing collections under the configured data directory,
// replays the write-ahead log tail, and returns a ready-to-use Database.
func Open(opts ...Option) (*Database, error) {
	config := &Config{
		DataDir:        "./data",
		MetricsEnabled: true,
	}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("vdb: applying option: %w", err)
		}
	}
	if config.SnapshotDir == "" {
		config.SnapshotDir = filepath.Join(config.DataDir, "snapshots")
	}

	logger := slog.Default().With("component", "vdb")

	var metrics *obs.Metrics
	if config.MetricsEnabled {
		metrics = obs.NewMetrics()
	}

	eng, err := engine.Open(config.DataDir, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("vdb: opening storage engine: %w", err)
	}

	db := &Database{
		config:   config,
		engine:   eng,
		recovery: recovery.New(config.DataDir, logger),
		snapshot: snapshot.New(config.DataDir, logger),
		metrics:  metrics,
		health:   obs.NewHealthChecker(),
		logger:   logger,
		runtime:  make(map[string]collectionRuntime),
	}

	db.health.Register("storage-engine", obs.Readiness, func(ctx context.Context) *obs.CheckResult {
		_ = db.engine.ListCollections()
		return &obs.CheckResult{Healthy: true, Message: "storage engine reachable"}
	})
	db.health.Register("consistency", obs.Deep, func(ctx context.Context) *obs.CheckResult {
		issues, err := db.recovery.CheckConsistency()
		if err != nil {
			return &obs.CheckResult{Healthy: false, Message: err.Error()}
		}
		if len(issues) > 0 {
			return &obs.CheckResult{Healthy: false, Message: fmt.Sprintf("%d issue(s): %v", len(issues), issues)}
		}
		return &obs.CheckResult{Healthy: true, Message: "no consistency issues found"}
	})

	if config.RecoveryObserver != nil {
		config.RecoveryObserver("startup", fmt.Sprintf("opened data dir %q with %d collection(s)", config.DataDir, len(eng.ListCollections())))
	}

	return db, nil
}

// Health runs every check registered at or below tier.
func (db *Database) Health(ctx context.Context, tier obs.Tier) *obs.Status {
	return db.health.Check(ctx, tier)
}

// CreateCollection validates the assembled config and creates a new,
// empty collection.
func (db *Database) CreateCollection(ctx context.Context, name string, opts ...CollectionOption) error {
	spec := &collectionSpec{config: types.CollectionConfig{
		Name:  name,
		Index: types.DefaultIndexConfig(),
	}}
	for _, opt := range opts {
		if err := opt(spec); err != nil {
			return errInvalidInput(err.Error())
		}
	}
	if err := spec.config.Validate(); err != nil {
		return errInvalidInput(err.Error()).WithCause(err)
	}
	if _, err := db.engine.GetCollectionConfig(name); err == nil {
		return errCollectionExists(name)
	}

	if err := db.engine.CreateCollection(ctx, &spec.config); err != nil {
		return NewError(KindInternal, "creating collection").WithCause(err)
	}

	if spec.persistIndexEvery > 0 {
		db.startIndexPersistence(name, spec.persistIndexEvery)
	}
	return nil
}

func (db *Database) startIndexPersistence(name string, interval time.Duration) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if rt, exists := db.runtime[name]; exists && rt.stopPersist != nil {
		close(rt.stopPersist)
	}
	stop := make(chan struct{})
	db.runtime[name] = collectionRuntime{persistIndexEvery: interval, stopPersist: stop}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := db.engine.Sync(); err != nil {
					db.logger.Warn("vdb: background index persistence failed", "collection", name, "error", err)
				}
			}
		}
	}()
}

// DeleteCollection soft-deletes: the collection directory is moved under
// .deleted/ rather than removed, so Restore can bring it back.
func (db *Database) DeleteCollection(ctx context.Context, name string) error {
	if _, err := db.engine.GetCollectionConfig(name); err != nil {
		return errCollectionNotFound(name)
	}

	db.mu.Lock()
	if rt, exists := db.runtime[name]; exists && rt.stopPersist != nil {
		close(rt.stopPersist)
		delete(db.runtime, name)
	}
	db.mu.Unlock()

	// Drop the collection from the engine's live map (flushing and closing
	// its files, appending the WAL tombstone) before relocating its
	// directory, so no in-process handle still references the old path.
	if err := db.engine.UnregisterCollection(ctx, name); err != nil {
		return NewError(KindInternal, "unregistering collection").WithCause(err)
	}
	if _, err := db.recovery.SoftDeleteCollection(name); err != nil {
		return NewError(KindStorageError, "moving collection to .deleted").WithCause(err)
	}
	return nil
}

// HardDelete removes a collection outright: no .deleted/ staging, no
// restore path.
func (db *Database) HardDelete(ctx context.Context, name string) error {
	if _, err := db.engine.GetCollectionConfig(name); err != nil {
		return errCollectionNotFound(name)
	}

	db.mu.Lock()
	if rt, exists := db.runtime[name]; exists && rt.stopPersist != nil {
		close(rt.stopPersist)
		delete(db.runtime, name)
	}
	db.mu.Unlock()

	if err := db.engine.DeleteCollection(ctx, name); err != nil {
		return NewError(KindInternal, "removing collection from engine").WithCause(err)
	}
	return nil
}

// Restore brings back a collection previously moved to .deleted/ or
// .backups/ by path, optionally under a new name.
func (db *Database) Restore(ctx context.Context, backupPath, newName string) error {
	dst, err := db.recovery.RestoreCollection(backupPath, newName)
	if err != nil {
		return NewError(KindStorageError, "restoring collection").WithCause(err)
	}
	cfg, err := loadRestoredConfig(dst)
	if err != nil {
		return NewError(KindCorruption, "reading restored collection metadata").WithCause(err)
	}
	cfg.Name = filepath.Base(dst)
	if err := writeCollectionMetadata(dst, cfg); err != nil {
		return NewError(KindIO, "writing restored collection metadata").WithCause(err)
	}
	if err := db.engine.RegisterImportedCollection(cfg); err != nil {
		return NewError(KindInternal, "registering restored collection").WithCause(err)
	}
	return nil
}

// ImportOrphaned adopts a bare vectors.bin/index.bin pair with no
// metadata.json, attaching the supplied config and registering it with
// the live engine.
func (db *Database) ImportOrphaned(ctx context.Context, path, newName string, opts ...CollectionOption) error {
	spec := &collectionSpec{config: types.CollectionConfig{Name: newName, Index: types.DefaultIndexConfig()}}
	for _, opt := range opts {
		if err := opt(spec); err != nil {
			return errInvalidInput(err.Error())
		}
	}
	if err := spec.config.Validate(); err != nil {
		return errInvalidInput(err.Error()).WithCause(err)
	}

	dst, err := db.recovery.ImportOrphanedCollection(path, newName)
	if err != nil {
		return NewError(KindStorageError, "importing orphaned collection").WithCause(err)
	}
	if err := writeCollectionMetadata(dst, &spec.config); err != nil {
		return NewError(KindIO, "writing imported collection metadata").WithCause(err)
	}
	if err := db.engine.RegisterImportedCollection(&spec.config); err != nil {
		return NewError(KindInternal, "registering imported collection").WithCause(err)
	}
	return nil
}

// Backup copies a collection into .backups/<name>_<timestamp>/.
func (db *Database) Backup(name string) (string, error) {
	dst, err := db.recovery.BackupCollection(name)
	if err != nil {
		return "", NewError(KindStorageError, "backing up collection").WithCause(err)
	}
	return dst, nil
}

// List returns every currently open collection's name.
func (db *Database) List() []string {
	return db.engine.ListCollections()
}

// ListDeleted enumerates soft-deleted collections under .deleted/.
func (db *Database) ListDeleted() ([]recovery.DeletedCollection, error) {
	return db.recovery.ListDeletedCollections()
}

// CleanupOldDeleted permanently removes soft-deleted collections older
// than maxAge.
func (db *Database) CleanupOldDeleted(maxAge time.Duration) error {
	return db.recovery.CleanupOldDeleted(maxAge)
}

// GetConfig returns a collection's immutable configuration.
func (db *Database) GetConfig(name string) (*types.CollectionConfig, error) {
	cfg, err := db.engine.GetCollectionConfig(name)
	if err != nil {
		return nil, errCollectionNotFound(name)
	}
	return cfg, nil
}

// GetStats returns a collection's current size and memory usage.
func (db *Database) GetStats(name string) (*types.CollectionStats, error) {
	stats, err := db.engine.GetCollectionStats(name)
	if err != nil {
		return nil, errCollectionNotFound(name)
	}
	return stats, nil
}

// Sync flushes the write-ahead log and every open collection to disk.
func (db *Database) Sync() error {
	return db.engine.Sync()
}

// Close stops background index persistence and releases every resource
// the engine owns.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	for _, rt := range db.runtime {
		if rt.stopPersist != nil {
			close(rt.stopPersist)
		}
	}
	db.closed = true
	return db.engine.Close()
}

func idOrErr(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errInvalidInput(fmt.Sprintf("invalid vector id %q: %v", raw, err))
	}
	return id, nil
}
