package quant

import (
	"context"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	if err := (&Config{Type: None}).Validate(); err != nil {
		t.Errorf("Validate(None) = %v, want nil", err)
	}
	if err := (*Config)(nil).Validate(); err != nil {
		t.Errorf("Validate(nil) = %v, want nil", err)
	}
	for _, typ := range []Type{Scalar, Product, Binary} {
		if err := (&Config{Type: typ}).Validate(); err == nil {
			t.Errorf("Validate(%v) = nil, want error for unimplemented type", typ)
		}
	}
	if err := (&Config{Type: Type(99)}).Validate(); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestCreateNoneQuantizer(t *testing.T) {
	q, err := Create(nil)
	if err != nil {
		t.Fatalf("Create(nil): %v", err)
	}
	if !q.IsTrained() {
		t.Error("expected none quantizer to report trained")
	}
	if err := q.Train(context.Background(), nil); err != nil {
		t.Errorf("Train: %v", err)
	}
}

func TestCreateRejectsUnimplementedType(t *testing.T) {
	if _, err := Create(&Config{Type: Scalar}); err == nil {
		t.Error("expected error creating an unimplemented quantizer type")
	}
}

func TestNoneQuantizerCompressDecompressRoundTrip(t *testing.T) {
	q, err := Create(&Config{Type: None})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	original := []float32{1.5, -2.25, 3.0}
	data, err := q.Compress(original)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	got, err := q.Decompress(data)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if len(got) != len(original) {
		t.Fatalf("Decompress length = %d, want %d", len(got), len(original))
	}
	for i := range original {
		if got[i] != original[i] {
			t.Errorf("element %d = %v, want %v", i, got[i], original[i])
		}
	}
}

func TestNoneQuantizerDistanceToQuery(t *testing.T) {
	q, err := Create(&Config{Type: None})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	data, err := q.Compress([]float32{1, 0})
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	dist, err := q.DistanceToQuery(data, []float32{1, 0}, func(a, b []float32) float32 {
		var sum float32
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return sum
	})
	if err != nil {
		t.Fatalf("DistanceToQuery: %v", err)
	}
	if dist != 0 {
		t.Errorf("distance to identical vector = %v, want 0", dist)
	}
}

func TestMemoryUsage(t *testing.T) {
	q, _ := Create(&Config{Type: None})
	if q.MemoryUsage() != 0 {
		t.Errorf("MemoryUsage() = %d, want 0 for a none quantizer", q.MemoryUsage())
	}
}
