package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func setupSourceCollection(t *testing.T, vectorsContent string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "vectors.bin"), []byte(vectorsContent), 0644); err != nil {
		t.Fatalf("WriteFile vectors.bin: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(`{"name":"docs"}`), 0644); err != nil {
		t.Fatalf("WriteFile metadata.json: %v", err)
	}
	return dir
}

func TestCreateAndGetSnapshot(t *testing.T) {
	dataDir := t.TempDir()
	sourceDir := setupSourceCollection(t, "abc")
	m := New(dataDir, nil)

	meta, err := m.CreateSnapshot(context.Background(), "docs", sourceDir)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if meta.Collection != "docs" {
		t.Errorf("Collection = %q, want %q", meta.Collection, "docs")
	}
	if meta.Checksum == "" {
		t.Error("expected non-empty checksum")
	}

	got, err := m.GetSnapshot("docs")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if got.Checksum != meta.Checksum {
		t.Errorf("checksum mismatch: got %q, want %q", got.Checksum, meta.Checksum)
	}
}

func TestListSnapshotsNewestFirst(t *testing.T) {
	dataDir := t.TempDir()
	m := New(dataDir, nil)

	for _, name := range []string{"a", "b"} {
		src := setupSourceCollection(t, "content-"+name)
		if _, err := m.CreateSnapshot(context.Background(), name, src); err != nil {
			t.Fatalf("CreateSnapshot(%s): %v", name, err)
		}
	}

	metas, err := m.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(metas))
	}
	if metas[0].CreatedAt.Before(metas[1].CreatedAt) {
		t.Errorf("snapshots not newest-first: %v listed before %v", metas[0].CreatedAt, metas[1].CreatedAt)
	}
}

func TestRestoreSnapshotRoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	sourceDir := setupSourceCollection(t, "payload-bytes")
	m := New(dataDir, nil)

	if _, err := m.CreateSnapshot(context.Background(), "docs", sourceDir); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	target := filepath.Join(dataDir, "restored")
	if err := m.RestoreSnapshot(context.Background(), "docs", target); err != nil {
		t.Fatalf("RestoreSnapshot: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(target, "vectors.bin"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "payload-bytes" {
		t.Errorf("restored content = %q, want %q", data, "payload-bytes")
	}
}

func TestRestoreSnapshotDetectsChecksumMismatch(t *testing.T) {
	dataDir := t.TempDir()
	sourceDir := setupSourceCollection(t, "original")
	m := New(dataDir, nil)

	meta, err := m.CreateSnapshot(context.Background(), "docs", sourceDir)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	snapDir, err := m.findSnapshotDir("docs")
	if err != nil {
		t.Fatalf("findSnapshotDir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(snapDir, "vectors.bin"), []byte("tampered"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	err = m.RestoreSnapshot(context.Background(), "docs", filepath.Join(dataDir, "restored"))
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}
	_ = meta
}

func TestDeleteSnapshot(t *testing.T) {
	dataDir := t.TempDir()
	sourceDir := setupSourceCollection(t, "x")
	m := New(dataDir, nil)
	if _, err := m.CreateSnapshot(context.Background(), "docs", sourceDir); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if err := m.DeleteSnapshot("docs"); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	if _, err := m.GetSnapshot("docs"); err == nil {
		t.Fatal("expected GetSnapshot to fail after delete")
	}
}

func TestCleanupOldSnapshotsRetainsNewest(t *testing.T) {
	dataDir := t.TempDir()
	m := New(dataDir, nil)
	for _, name := range []string{"a", "b", "c"} {
		src := setupSourceCollection(t, "v-"+name)
		if _, err := m.CreateSnapshot(context.Background(), name, src); err != nil {
			t.Fatalf("CreateSnapshot(%s): %v", name, err)
		}
	}
	if err := m.CleanupOldSnapshots(1); err != nil {
		t.Fatalf("CleanupOldSnapshots: %v", err)
	}
	metas, err := m.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected 1 snapshot to survive cleanup, got %d", len(metas))
	}
}

func TestExportAndImportSnapshot(t *testing.T) {
	dataDir := t.TempDir()
	sourceDir := setupSourceCollection(t, "export-me")
	m := New(dataDir, nil)
	if _, err := m.CreateSnapshot(context.Background(), "docs", sourceDir); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	archivePath := filepath.Join(dataDir, "docs.tar.gz")
	if err := m.ExportSnapshot("docs", archivePath); err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	if _, err := os.Stat(archivePath); err != nil {
		t.Fatalf("expected archive file to exist: %v", err)
	}

	importDataDir := t.TempDir()
	m2 := New(importDataDir, nil)
	if err := m2.ImportSnapshot(archivePath); err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(importDataDir, "snapshots"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 imported snapshot directory, got %d", len(entries))
	}
}
