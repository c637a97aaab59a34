package recovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/latticedb/vdb/internal/storage/wal"
)

func TestRecoverFromWALDropsOrphanedOps(t *testing.T) {
	dir := t.TempDir()
	w, err := wal.New(filepath.Join(dir, "wal.log"))
	if err != nil {
		t.Fatalf("wal.New: %v", err)
	}
	defer w.Close()

	ctx := context.Background()
	ops := []wal.Operation{
		{Type: wal.OpInsertVector, Collection: "ghost", Vector: &wal.VectorPayload{ID: "1", Data: []float32{1}}},
		{Type: wal.OpCreateCollection, Collection: "docs"},
		{Type: wal.OpInsertVector, Collection: "docs", Vector: &wal.VectorPayload{ID: "2", Data: []float32{2}}},
		{Type: wal.OpDeleteCollection, Collection: "docs"},
		{Type: wal.OpInsertVector, Collection: "docs", Vector: &wal.VectorPayload{ID: "3", Data: []float32{3}}},
	}
	for _, op := range ops {
		if err := w.Append(ctx, op); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	m := New(dir, nil)
	valid, err := m.RecoverFromWAL(w)
	if err != nil {
		t.Fatalf("RecoverFromWAL: %v", err)
	}
	// Expect: create docs, insert 2, delete docs survive; the insert into
	// "ghost" (never created) and the insert after docs was deleted are
	// dropped.
	if len(valid) != 3 {
		t.Fatalf("expected 3 surviving ops, got %d: %+v", len(valid), valid)
	}
	if valid[0].Type != wal.OpCreateCollection || valid[1].Type != wal.OpInsertVector || valid[2].Type != wal.OpDeleteCollection {
		t.Errorf("unexpected surviving op sequence: %+v", valid)
	}
}

func TestCheckConsistencyFindsEmptyVectorsFile(t *testing.T) {
	dir := t.TempDir()
	collDir := filepath.Join(dir, "docs")
	if err := os.MkdirAll(collDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(collDir, "metadata.json"), []byte(`{}`), 0644); err != nil {
		t.Fatalf("WriteFile metadata: %v", err)
	}
	if err := os.WriteFile(filepath.Join(collDir, "vectors.bin"), nil, 0644); err != nil {
		t.Fatalf("WriteFile vectors: %v", err)
	}

	m := New(dir, nil)
	issues, err := m.CheckConsistency()
	if err != nil {
		t.Fatalf("CheckConsistency: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %v", len(issues), issues)
	}
}

func TestSoftDeleteAndListAndCleanup(t *testing.T) {
	dir := t.TempDir()
	collDir := filepath.Join(dir, "docs")
	if err := os.MkdirAll(collDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(collDir, "metadata.json"), []byte(`{}`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m := New(dir, nil)
	deletedPath, err := m.SoftDeleteCollection("docs")
	if err != nil {
		t.Fatalf("SoftDeleteCollection: %v", err)
	}
	if _, err := os.Stat(collDir); !os.IsNotExist(err) {
		t.Fatal("expected original directory to be gone after soft delete")
	}
	if _, err := os.Stat(deletedPath); err != nil {
		t.Fatalf("expected soft-deleted directory to exist: %v", err)
	}

	deleted, err := m.ListDeletedCollections()
	if err != nil {
		t.Fatalf("ListDeletedCollections: %v", err)
	}
	if len(deleted) != 1 {
		t.Fatalf("expected 1 deleted collection, got %d", len(deleted))
	}

	if err := m.CleanupOldDeleted(time.Hour); err != nil {
		t.Fatalf("CleanupOldDeleted: %v", err)
	}
	stillThere, err := m.ListDeletedCollections()
	if err != nil {
		t.Fatalf("ListDeletedCollections: %v", err)
	}
	if len(stillThere) != 1 {
		t.Fatalf("expected recent soft-delete to survive a 1h cutoff, got %d", len(stillThere))
	}

	if err := m.CleanupOldDeleted(0); err != nil {
		t.Fatalf("CleanupOldDeleted: %v", err)
	}
	gone, err := m.ListDeletedCollections()
	if err != nil {
		t.Fatalf("ListDeletedCollections: %v", err)
	}
	if len(gone) != 0 {
		t.Fatalf("expected zero-duration cutoff to remove everything, got %d", len(gone))
	}
}

func TestBackupAndRestoreCollection(t *testing.T) {
	dir := t.TempDir()
	collDir := filepath.Join(dir, "docs")
	if err := os.MkdirAll(collDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(collDir, "vectors.bin"), []byte("data"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m := New(dir, nil)
	backupPath, err := m.BackupCollection("docs")
	if err != nil {
		t.Fatalf("BackupCollection: %v", err)
	}

	restoredPath, err := m.RestoreCollection(backupPath, "docs-restored")
	if err != nil {
		t.Fatalf("RestoreCollection: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(restoredPath, "vectors.bin"))
	if err != nil {
		t.Fatalf("ReadFile restored vectors.bin: %v", err)
	}
	if string(data) != "data" {
		t.Errorf("restored content = %q, want %q", data, "data")
	}
}

func TestRestoreCollectionRefusesExistingTarget(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backup-src")
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	existing := filepath.Join(dir, "docs")
	if err := os.MkdirAll(existing, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	m := New(dir, nil)
	if _, err := m.RestoreCollection(backupDir, "docs"); err == nil {
		t.Fatal("expected error restoring onto an existing directory")
	}
}
