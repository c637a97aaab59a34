package util

import (
	"encoding/json"
	"math"
	"testing"
)

func floatsClose(a, b, tol float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestEuclidean(t *testing.T) {
	got := Euclidean([]float32{0, 0}, []float32{3, 4})
	if !floatsClose(got, 5, 1e-5) {
		t.Errorf("Euclidean = %v, want 5", got)
	}
}

func TestCosineIdentical(t *testing.T) {
	got := Cosine([]float32{1, 2, 3}, []float32{1, 2, 3})
	if !floatsClose(got, 0, 1e-5) {
		t.Errorf("Cosine of identical vectors = %v, want 0", got)
	}
}

func TestCosineZeroNorm(t *testing.T) {
	got := Cosine([]float32{0, 0}, []float32{1, 1})
	if got != 1.0 {
		t.Errorf("Cosine with zero-norm vector = %v, want 1.0", got)
	}
}

func TestNegatedDotProduct(t *testing.T) {
	got := NegatedDotProduct([]float32{1, 2}, []float32{3, 4})
	want := float32(-(1*3 + 2*4))
	if !floatsClose(got, want, 1e-5) {
		t.Errorf("NegatedDotProduct = %v, want %v", got, want)
	}
}

func TestManhattan(t *testing.T) {
	got := Manhattan([]float32{0, 0}, []float32{3, -4})
	if !floatsClose(got, 7, 1e-5) {
		t.Errorf("Manhattan = %v, want 7", got)
	}
}

func TestGetDistanceFuncUnsupported(t *testing.T) {
	if _, err := GetDistanceFunc(DistanceMetric(99)); err == nil {
		t.Fatal("expected error for unsupported metric")
	}
}

func TestDistanceMetricJSONRoundTrip(t *testing.T) {
	for _, m := range []DistanceMetric{CosineDistance, L2Distance, DotProduct, ManhattanDistance} {
		data, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", m, err)
		}
		var back DistanceMetric
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if back != m {
			t.Errorf("round trip mismatch: got %v, want %v", back, m)
		}
	}
}

func TestDistanceMetricUnmarshalUnknown(t *testing.T) {
	var m DistanceMetric
	if err := json.Unmarshal([]byte(`"bogus"`), &m); err == nil {
		t.Fatal("expected error for unknown metric name")
	}
}

func TestEuclideanMatchesManualSqrt(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 6, 3}
	want := float32(math.Sqrt(9 + 16 + 0))
	got := Euclidean(a, b)
	if !floatsClose(got, want, 1e-4) {
		t.Errorf("Euclidean = %v, want %v", got, want)
	}
}
