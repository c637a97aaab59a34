package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/latticedb/vdb/internal/types"
)

func testConfig(name string, dim int) *types.CollectionConfig {
	return &types.CollectionConfig{Name: name, Dimension: dim, Index: types.DefaultIndexConfig()}
}

func TestCreateCollectionAndInsertSearch(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	ctx := context.Background()
	if err := e.CreateCollection(ctx, testConfig("docs", 2)); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	id := uuid.New()
	if err := e.InsertVector(ctx, "docs", id, []float32{1, 2}, map[string]interface{}{"k": "v"}); err != nil {
		t.Fatalf("InsertVector: %v", err)
	}

	results, err := e.Search(ctx, "docs", []float32{1, 2}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != id.String() {
		t.Fatalf("unexpected search results: %+v", results)
	}

	stats, err := e.GetCollectionStats("docs")
	if err != nil {
		t.Fatalf("GetCollectionStats: %v", err)
	}
	if stats.VectorCount != 1 {
		t.Errorf("VectorCount = %d, want 1", stats.VectorCount)
	}
}

func TestCreateCollectionRejectsDuplicate(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	ctx := context.Background()
	if err := e.CreateCollection(ctx, testConfig("docs", 2)); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if err := e.CreateCollection(ctx, testConfig("docs", 2)); err == nil {
		t.Fatal("expected error creating duplicate collection")
	}
}

func TestDeleteVectorThenSearchExcludesIt(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	ctx := context.Background()
	if err := e.CreateCollection(ctx, testConfig("docs", 2)); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	id := uuid.New()
	if err := e.InsertVector(ctx, "docs", id, []float32{1, 1}, nil); err != nil {
		t.Fatalf("InsertVector: %v", err)
	}
	if err := e.DeleteVector(ctx, "docs", id.String()); err != nil {
		t.Fatalf("DeleteVector: %v", err)
	}
	if _, err := e.GetVector("docs", id.String()); err == nil {
		t.Fatal("expected GetVector to fail after delete")
	}
}

func TestDeleteCollectionRemovesDirectory(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	ctx := context.Background()
	if err := e.CreateCollection(ctx, testConfig("docs", 2)); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if err := e.DeleteCollection(ctx, "docs"); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "docs")); !os.IsNotExist(err) {
		t.Fatal("expected collection directory to be removed")
	}
	if _, err := e.GetCollectionConfig("docs"); err == nil {
		t.Fatal("expected deleted collection to be gone from the live map")
	}
}

func TestUnregisterCollectionLeavesDirectoryIntact(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	ctx := context.Background()
	if err := e.CreateCollection(ctx, testConfig("docs", 2)); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if err := e.UnregisterCollection(ctx, "docs"); err != nil {
		t.Fatalf("UnregisterCollection: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "docs")); err != nil {
		t.Fatalf("expected collection directory to survive unregister: %v", err)
	}
	if _, err := e.GetCollectionConfig("docs"); err == nil {
		t.Fatal("expected unregistered collection to be gone from the live map")
	}
}

func TestReopenReplaysWALAndStorage(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	e1, err := Open(dir, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := e1.CreateCollection(ctx, testConfig("docs", 2)); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	id := uuid.New()
	if err := e1.InsertVector(ctx, "docs", id, []float32{3, 4}, map[string]interface{}{"k": "v"}); err != nil {
		t.Fatalf("InsertVector: %v", err)
	}
	if err := e1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e2, err := Open(dir, nil, nil)
	if err != nil {
		t.Fatalf("re-Open: %v", err)
	}
	defer e2.Close()

	v, err := e2.GetVector("docs", id.String())
	if err != nil {
		t.Fatalf("GetVector after reopen: %v", err)
	}
	if v.Data[0] != 3 || v.Data[1] != 4 {
		t.Errorf("unexpected vector after reopen: %v", v.Data)
	}
}

func TestBatchInsert(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	ctx := context.Background()
	if err := e.CreateCollection(ctx, testConfig("docs", 1)); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	vectors := [][]float32{{1}, {2}}
	metas := []map[string]interface{}{nil, nil}
	if err := e.BatchInsert(ctx, "docs", ids, vectors, metas); err != nil {
		t.Fatalf("BatchInsert: %v", err)
	}
	stats, err := e.GetCollectionStats("docs")
	if err != nil {
		t.Fatalf("GetCollectionStats: %v", err)
	}
	if stats.VectorCount != 2 {
		t.Errorf("VectorCount = %d, want 2", stats.VectorCount)
	}
}
