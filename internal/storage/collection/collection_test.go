package collection

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/latticedb/vdb/internal/types"
)

func testConfig(name string, dim int) *types.CollectionConfig {
	return &types.CollectionConfig{Name: name, Dimension: dim, Index: types.DefaultIndexConfig()}
}

func TestCreateWritesMetadataAndVectorsFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	s, err := Create(dir, testConfig("docs", 3), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	if s.Config().Name != "docs" {
		t.Errorf("Config().Name = %q, want %q", s.Config().Name, "docs")
	}
	if s.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", s.Dir(), dir)
	}
}

func TestInsertAndIterVectors(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	s, err := Create(dir, testConfig("docs", 2), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	id1, id2 := uuid.New(), uuid.New()
	if err := s.Insert(id1, []float32{1, 2}, map[string]interface{}{"k": "v1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(id2, []float32{3, 4}, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var records []*Record
	if err := s.IterVectors(func(r *Record) error {
		records = append(records, r)
		return nil
	}); err != nil {
		t.Fatalf("IterVectors: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != id1 || records[0].Vector[0] != 1 || records[0].Vector[1] != 2 {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[0].Metadata["k"] != "v1" {
		t.Errorf("expected metadata to survive round trip, got %v", records[0].Metadata)
	}
	if records[1].ID != id2 {
		t.Errorf("unexpected second record id: %v", records[1].ID)
	}
}

func TestInsertRejectsDimensionMismatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	s, err := Create(dir, testConfig("docs", 3), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()
	if err := s.Insert(uuid.New(), []float32{1, 2}, nil); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestBatchInsert(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	s, err := Create(dir, testConfig("docs", 1), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Close()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	vectors := [][]float32{{1}, {2}, {3}}
	metas := []map[string]interface{}{nil, nil, nil}
	if err := s.BatchInsert(ids, vectors, metas); err != nil {
		t.Fatalf("BatchInsert: %v", err)
	}

	count := 0
	if err := s.IterVectors(func(r *Record) error { count++; return nil }); err != nil {
		t.Fatalf("IterVectors: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 records, got %d", count)
	}
}

func TestLoadExistingCollection(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	s1, err := Create(dir, testConfig("docs", 2), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id := uuid.New()
	if err := s1.Insert(id, []float32{5, 6}, nil); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer s2.Close()
	if s2.Config().Dimension != 2 {
		t.Errorf("expected dimension 2, got %d", s2.Config().Dimension)
	}

	var found bool
	if err := s2.IterVectors(func(r *Record) error {
		if r.ID == id {
			found = true
		}
		return nil
	}); err != nil {
		t.Fatalf("IterVectors: %v", err)
	}
	if !found {
		t.Fatal("expected previously inserted vector to survive reload")
	}
}
