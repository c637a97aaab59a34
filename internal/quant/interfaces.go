// Package quant defines the vector quantization contract used by the HNSW
// index's optional compression path. Only the None quantizer is faithfully
// implemented; Scalar/Product/Binary are shaped in the config but left
// unimplemented by design (see the quantization note in the design ledger).
package quant

import (
	"context"
	"fmt"
)

// Type identifies a quantization algorithm.
type Type int

const (
	None Type = iota
	Scalar
	Product
	Binary
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Scalar:
		return "scalar"
	case Product:
		return "product"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// Config holds quantization parameters. Only Type == None is guaranteed to
// produce a working Quantizer from Create.
type Config struct {
	Type       Type    `json:"type"`
	Codebooks  int     `json:"codebooks,omitempty"`
	Bits       int     `json:"bits,omitempty"`
	TrainRatio float64 `json:"train_ratio,omitempty"`
}

func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	switch c.Type {
	case None:
		return nil
	case Scalar, Product, Binary:
		return fmt.Errorf("quant: %s quantization is not implemented by this build", c.Type)
	default:
		return fmt.Errorf("quant: unsupported quantization type %v", c.Type)
	}
}

// Quantizer compresses and decompresses vectors, and computes distances
// directly over compressed representations.
type Quantizer interface {
	Train(ctx context.Context, vectors [][]float32) error
	Compress(vector []float32) ([]byte, error)
	Decompress(data []byte) ([]float32, error)
	DistanceToQuery(compressed []byte, query []float32, distFn func(a, b []float32) float32) (float32, error)
	MemoryUsage() int64
	IsTrained() bool
}

// Create returns a Quantizer for the given config. Only Type == None is
// supported; other types return an error rather than a fake implementation.
func Create(cfg *Config) (Quantizer, error) {
	if cfg == nil || cfg.Type == None {
		return &noneQuantizer{}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("quant: no quantizer registered for type %v", cfg.Type)
}

// noneQuantizer stores vectors uncompressed, encoded as little-endian
// float32s, so the HNSW persistence format has a single on-disk shape
// regardless of whether quantization is configured.
type noneQuantizer struct{}

func (noneQuantizer) Train(ctx context.Context, vectors [][]float32) error { return nil }

func (noneQuantizer) Compress(vector []float32) ([]byte, error) {
	return encodeFloat32s(vector), nil
}

func (noneQuantizer) Decompress(data []byte) ([]float32, error) {
	return decodeFloat32s(data), nil
}

func (noneQuantizer) DistanceToQuery(compressed []byte, query []float32, distFn func(a, b []float32) float32) (float32, error) {
	vec := decodeFloat32s(compressed)
	return distFn(vec, query), nil
}

func (noneQuantizer) MemoryUsage() int64 { return 0 }

func (noneQuantizer) IsTrained() bool { return true }
