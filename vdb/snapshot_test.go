package vdb

import (
	"context"
	"path/filepath"
	"testing"
)

func TestCreateListGetSnapshot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	createTestCollection(t, db, "docs", 2)
	if _, err := db.Insert(ctx, "docs", "", []float32{1, 2}, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	meta, err := db.CreateSnapshot(ctx, "docs")
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if meta.Collection != "docs" {
		t.Errorf("Collection = %q, want %q", meta.Collection, "docs")
	}

	list, err := db.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(list))
	}

	got, err := db.GetSnapshot("docs")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if got.Checksum != meta.Checksum {
		t.Errorf("checksum mismatch: %q vs %q", got.Checksum, meta.Checksum)
	}
}

func TestCreateSnapshotRequiresExistingCollection(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.CreateSnapshot(context.Background(), "missing"); err == nil {
		t.Fatal("expected error snapshotting a nonexistent collection")
	}
}

func TestRestoreSnapshotRebuildsCollection(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	createTestCollection(t, db, "docs", 2)
	id, err := db.Insert(ctx, "docs", "", []float32{3, 4}, nil)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := db.CreateSnapshot(ctx, "docs"); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	if _, err := db.Insert(ctx, "docs", "", []float32{9, 9}, nil); err != nil {
		t.Fatalf("Insert second vector: %v", err)
	}

	if err := db.RestoreSnapshot(ctx, "docs"); err != nil {
		t.Fatalf("RestoreSnapshot: %v", err)
	}

	v, err := db.Get("docs", id)
	if err != nil {
		t.Fatalf("Get after restore: %v", err)
	}
	if v.Data[0] != 3 || v.Data[1] != 4 {
		t.Errorf("unexpected restored vector: %v", v.Data)
	}
	count, err := db.Count("docs", nil)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected restore to roll back to the snapshotted 1 vector, got %d", count)
	}
}

func TestDeleteSnapshotRemovesIt(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	createTestCollection(t, db, "docs", 1)
	if _, err := db.Insert(ctx, "docs", "", []float32{1}, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := db.CreateSnapshot(ctx, "docs"); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if err := db.DeleteSnapshot("docs"); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	if _, err := db.GetSnapshot("docs"); err == nil {
		t.Fatal("expected GetSnapshot to fail after delete")
	}
}

func TestCleanupOldSnapshotsKeepsNewest(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		createTestCollection(t, db, name, 1)
		if _, err := db.Insert(ctx, name, "", []float32{1}, nil); err != nil {
			t.Fatalf("Insert(%s): %v", name, err)
		}
		if _, err := db.CreateSnapshot(ctx, name); err != nil {
			t.Fatalf("CreateSnapshot(%s): %v", name, err)
		}
	}
	if err := db.CleanupOldSnapshots(1); err != nil {
		t.Fatalf("CleanupOldSnapshots: %v", err)
	}
	list, err := db.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 snapshot to survive cleanup, got %d", len(list))
	}
}

func TestExportAndImportSnapshot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	createTestCollection(t, db, "docs", 1)
	if _, err := db.Insert(ctx, "docs", "", []float32{1}, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := db.CreateSnapshot(ctx, "docs"); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	archivePath := filepath.Join(t.TempDir(), "docs.tar.gz")
	if err := db.ExportSnapshot("docs", archivePath); err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}

	db2 := openTestDB(t)
	if err := db2.ImportSnapshot(archivePath); err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	list, err := db2.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 imported snapshot, got %d", len(list))
	}
}
