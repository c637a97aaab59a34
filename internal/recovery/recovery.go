// Package recovery implements crash-consistency checks, soft-delete,
// backup/restore, and orphan-directory import around an engine's data
// directory.
package recovery

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/latticedb/vdb/internal/storage/wal"
)

// Manager operates directly on a data directory; it does not hold any
// in-memory engine state beyond what it needs for one call, since recovery
// runs before or outside the engine's normal operating lifetime.
type Manager struct {
	dataDir string
	logger  *slog.Logger
}

func New(dataDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dataDir: dataDir, logger: logger}
}

// RecoverFromWAL reads every entry from w and drops any whose operation is
// invalid against a running projection of which collections exist: an
// insert into a collection that was never created (or was since deleted)
// is dropped with a warning rather than propagated as a fatal error.
func (m *Manager) RecoverFromWAL(w *wal.WAL) ([]wal.Operation, error) {
	ops, err := w.ReadAll()
	if err != nil {
		return nil, err
	}

	exists := make(map[string]bool)
	var valid []wal.Operation
	for _, op := range ops {
		switch op.Type {
		case wal.OpCreateCollection:
			exists[op.Collection] = true
			valid = append(valid, op)
		case wal.OpDeleteCollection:
			if !exists[op.Collection] {
				m.logger.Warn("recovery: delete for unknown collection, dropping", "collection", op.Collection)
				continue
			}
			delete(exists, op.Collection)
			valid = append(valid, op)
		case wal.OpInsertVector, wal.OpBatchInsert, wal.OpDeleteVector:
			if !exists[op.Collection] {
				m.logger.Warn("recovery: vector operation for unknown collection, dropping", "collection", op.Collection, "op", op.Type)
				continue
			}
			valid = append(valid, op)
		default:
			m.logger.Warn("recovery: unrecognized operation type, dropping", "op", op.Type)
		}
	}
	return valid, nil
}

// CheckConsistency verifies every on-disk collection has a non-empty
// vectors.bin, returning one issue string per problem found.
func (m *Manager) CheckConsistency() ([]string, error) {
	entries, err := os.ReadDir(m.dataDir)
	if err != nil {
		return nil, fmt.Errorf("recovery: read data dir: %w", err)
	}

	var issues []string
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == "wal" || entry.Name()[0] == '.' {
			continue
		}
		dir := filepath.Join(m.dataDir, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, "metadata.json")); err != nil {
			continue
		}
		vectorsPath := filepath.Join(dir, "vectors.bin")
		stat, err := os.Stat(vectorsPath)
		if err != nil {
			issues = append(issues, fmt.Sprintf("collection %q: vectors.bin missing: %v", entry.Name(), err))
			continue
		}
		if stat.Size() == 0 {
			issues = append(issues, fmt.Sprintf("collection %q: vectors.bin is empty", entry.Name()))
		}
	}
	return issues, nil
}

func timestampSuffix() string {
	return time.Now().UTC().Format("20060102_150405")
}

// CreateBackup recursively copies every collection directory into
// backupDir.
func (m *Manager) CreateBackup(backupDir string) error {
	entries, err := os.ReadDir(m.dataDir)
	if err != nil {
		return fmt.Errorf("recovery: read data dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == "wal" || entry.Name()[0] == '.' {
			continue
		}
		src := filepath.Join(m.dataDir, entry.Name())
		dst := filepath.Join(backupDir, entry.Name())
		if err := copyDir(src, dst); err != nil {
			return fmt.Errorf("recovery: backing up %q: %w", entry.Name(), err)
		}
	}
	return nil
}

// BackupCollection copies one collection into .backups/<name>_<timestamp>/.
func (m *Manager) BackupCollection(name string) (string, error) {
	src := filepath.Join(m.dataDir, name)
	dst := filepath.Join(m.dataDir, ".backups", fmt.Sprintf("%s_%s", name, timestampSuffix()))
	if err := copyDir(src, dst); err != nil {
		return "", fmt.Errorf("recovery: backing up collection %q: %w", name, err)
	}
	return dst, nil
}

// SoftDeleteCollection moves a collection's directory to
// .deleted/<name>_<timestamp>/ rather than removing it outright.
func (m *Manager) SoftDeleteCollection(name string) (string, error) {
	src := filepath.Join(m.dataDir, name)
	dst := filepath.Join(m.dataDir, ".deleted", fmt.Sprintf("%s_%s", name, timestampSuffix()))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("recovery: mkdir for soft delete: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("recovery: moving %q to %q: %w", src, dst, err)
	}
	return dst, nil
}

// DeletedCollection describes one entry under .deleted/.
type DeletedCollection struct {
	Name    string
	Path    string
	ModTime time.Time
}

// ListDeletedCollections enumerates everything under .deleted/.
func (m *Manager) ListDeletedCollections() ([]DeletedCollection, error) {
	deletedDir := filepath.Join(m.dataDir, ".deleted")
	entries, err := os.ReadDir(deletedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("recovery: read .deleted: %w", err)
	}

	var out []DeletedCollection
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, DeletedCollection{
			Name:    entry.Name(),
			Path:    filepath.Join(deletedDir, entry.Name()),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

// CleanupOldDeleted removes every .deleted/ entry older than maxAge.
func (m *Manager) CleanupOldDeleted(maxAge time.Duration) error {
	deleted, err := m.ListDeletedCollections()
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-maxAge)
	for _, d := range deleted {
		if d.ModTime.Before(cutoff) {
			if err := os.RemoveAll(d.Path); err != nil {
				return fmt.Errorf("recovery: removing %q: %w", d.Path, err)
			}
		}
	}
	return nil
}

// RestoreCollection copies a backed-up or soft-deleted collection directory
// back into the data directory. If newName is empty the target name is
// derived from the trailing path component of backupPath.
func (m *Manager) RestoreCollection(backupPath, newName string) (string, error) {
	if newName == "" {
		newName = filepath.Base(backupPath)
	}
	dst := filepath.Join(m.dataDir, newName)
	if _, err := os.Stat(dst); err == nil {
		return "", fmt.Errorf("recovery: restore target %q already exists", newName)
	}
	if err := copyDir(backupPath, dst); err != nil {
		return "", fmt.Errorf("recovery: restoring %q: %w", backupPath, err)
	}
	return dst, nil
}

// ImportOrphanedCollection copies a bare vectors.bin/index.bin pair (with
// no metadata.json) into a fresh collection directory. The caller is
// expected to follow up with RegisterImportedCollection once it has a
// CollectionConfig to attach.
func (m *Manager) ImportOrphanedCollection(path, newName string) (string, error) {
	dst := filepath.Join(m.dataDir, newName)
	if _, err := os.Stat(dst); err == nil {
		return "", fmt.Errorf("recovery: import target %q already exists", newName)
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return "", fmt.Errorf("recovery: mkdir %q: %w", dst, err)
	}
	for _, file := range []string{"vectors.bin", "index.bin"} {
		src := filepath.Join(path, file)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyFile(src, filepath.Join(dst, file)); err != nil {
			return "", fmt.Errorf("recovery: importing %q: %w", file, err)
		}
	}
	return dst, nil
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
