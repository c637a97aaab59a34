package vdb

import (
	"context"
	"fmt"

	"github.com/latticedb/vdb/internal/types"
)

// CreateSnapshot archives a collection's current on-disk files under
// <data dir>/snapshots/.
func (db *Database) CreateSnapshot(ctx context.Context, collectionName string) (*types.SnapshotMetadata, error) {
	cfg, err := db.engine.GetCollectionConfig(collectionName)
	if err != nil {
		return nil, errCollectionNotFound(collectionName)
	}
	if err := db.engine.Sync(); err != nil {
		return nil, NewError(KindIO, "flushing collection before snapshot").WithCause(err)
	}

	sourceDir := fmt.Sprintf("%s/%s", db.engine.DataDir(), cfg.Name)
	meta, err := db.snapshot.CreateSnapshot(ctx, collectionName, sourceDir)
	if err != nil {
		if db.metrics != nil {
			db.metrics.SnapshotFailures.Inc()
		}
		return nil, NewError(KindStorageError, "creating snapshot").WithCause(err)
	}
	if db.metrics != nil {
		db.metrics.SnapshotsTaken.Inc()
		db.metrics.SnapshotSizeBytes.Observe(float64(meta.SizeBytes))
	}
	if db.config.RecoveryObserver != nil {
		db.config.RecoveryObserver("snapshot-created", fmt.Sprintf("%s: %d bytes, %d vectors", collectionName, meta.SizeBytes, meta.VectorCount))
	}
	return meta, nil
}

// ListSnapshots returns every snapshot's metadata, newest first.
func (db *Database) ListSnapshots() ([]*types.SnapshotMetadata, error) {
	metas, err := db.snapshot.ListSnapshots()
	if err != nil {
		return nil, NewError(KindIO, "listing snapshots").WithCause(err)
	}
	return metas, nil
}

// GetSnapshot returns one snapshot's metadata.
func (db *Database) GetSnapshot(name string) (*types.SnapshotMetadata, error) {
	meta, err := db.snapshot.GetSnapshot(name)
	if err != nil {
		return nil, errNotFound(fmt.Sprintf("snapshot %q", name))
	}
	return meta, nil
}

// DeleteSnapshot removes a snapshot archive.
func (db *Database) DeleteSnapshot(name string) error {
	if err := db.snapshot.DeleteSnapshot(name); err != nil {
		return errNotFound(fmt.Sprintf("snapshot %q", name)).WithCause(err)
	}
	return nil
}

// RestoreSnapshot copies a snapshot's files into the live collection
// directory, verifying its checksum first, then rebuilds the collection's
// in-memory index from the restored vectors.
func (db *Database) RestoreSnapshot(ctx context.Context, name string) error {
	meta, err := db.snapshot.GetSnapshot(name)
	if err != nil {
		return errNotFound(fmt.Sprintf("snapshot %q", name))
	}

	// The collection may already be open under a now-stale index; drop it
	// (which also clears its on-disk directory) before copying the
	// snapshot's files into a fresh one, so restore never layers on top
	// of live in-memory state.
	if _, err := db.engine.GetCollectionConfig(meta.Collection); err == nil {
		if err := db.engine.DeleteCollection(ctx, meta.Collection); err != nil {
			return NewError(KindInternal, "removing stale collection before restore").WithCause(err)
		}
	}

	targetDir := fmt.Sprintf("%s/%s", db.engine.DataDir(), meta.Collection)
	if err := db.snapshot.RestoreSnapshot(ctx, name, targetDir); err != nil {
		return NewError(KindCorruption, "restoring snapshot").WithCause(err)
	}

	cfg, err := loadRestoredConfig(targetDir)
	if err != nil {
		return NewError(KindCorruption, "reading restored collection metadata").WithCause(err)
	}
	if err := db.engine.RegisterImportedCollection(cfg); err != nil {
		return NewError(KindInternal, "re-registering restored collection").WithCause(err)
	}
	return nil
}

// CleanupOldSnapshots retains the newest keep snapshots and deletes the
// rest.
func (db *Database) CleanupOldSnapshots(keep int) error {
	if err := db.snapshot.CleanupOldSnapshots(keep); err != nil {
		return NewError(KindIO, "cleaning up old snapshots").WithCause(err)
	}
	return nil
}

// ExportSnapshot archives a snapshot as a gzip+tar file at destPath.
func (db *Database) ExportSnapshot(name, destPath string) error {
	if err := db.snapshot.ExportSnapshot(name, destPath); err != nil {
		return NewError(KindIO, "exporting snapshot").WithCause(err)
	}
	return nil
}

// ImportSnapshot extracts a gzip+tar snapshot archive into the snapshots
// directory, without registering it as a live collection.
func (db *Database) ImportSnapshot(archivePath string) error {
	if err := db.snapshot.ImportSnapshot(archivePath); err != nil {
		return NewError(KindIO, "importing snapshot archive").WithCause(err)
	}
	return nil
}
