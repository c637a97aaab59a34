// Package types holds the data-model values shared across the storage,
// recovery, snapshot, and facade layers, kept independent of any one
// layer's package to avoid import cycles.
package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/latticedb/vdb/internal/quant"
	"github.com/latticedb/vdb/internal/util"
)

// VectorType is the on-wire numeric type a collection's vectors are
// transmitted as. Internal computation always uses float32 regardless of
// this setting.
type VectorType int

const (
	Float32 VectorType = iota
	Float16
	Int8
)

func (t VectorType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	case Int8:
		return "int8"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the vector type by name.
func (t VectorType) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

// UnmarshalJSON parses the name produced by MarshalJSON.
func (t *VectorType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "float32":
		*t = Float32
	case "float16":
		*t = Float16
	case "int8":
		*t = Int8
	default:
		return fmt.Errorf("types: unknown vector type %q", name)
	}
	return nil
}

// IndexConfig holds HNSW construction parameters.
type IndexConfig struct {
	MaxConnections int
	EfConstruction int
	EfSearch       int
	MaxLayer       int
}

// DefaultIndexConfig returns the spec-mandated defaults: M=16, ef_c=200,
// ef_s=50, max_layer=16.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{MaxConnections: 16, EfConstruction: 200, EfSearch: 50, MaxLayer: 16}
}

// CollectionConfig is immutable once a collection is created.
type CollectionConfig struct {
	Name         string
	Dimension    int
	Metric       util.DistanceMetric
	VectorType   VectorType
	Index        IndexConfig
	Quantization *quant.Config
}

// Validate checks the structural requirements every collection must meet.
func (c *CollectionConfig) Validate() error {
	if c.Name == "" {
		return errInvalidInput("collection name must not be empty")
	}
	if c.Dimension <= 0 {
		return errInvalidInput("collection dimension must be positive")
	}
	if err := c.Quantization.Validate(); err != nil {
		return errInvalidInput(err.Error())
	}
	return nil
}

func errInvalidInput(msg string) error { return &validationError{msg} }

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

// CollectionStats is derived on demand, never stored.
type CollectionStats struct {
	Name             string
	VectorCount      int
	Dimension        int
	IndexSizeBytes   int64
	MemoryUsageBytes int64
}

// Vector is a stored point: an id, its coordinates, and optional metadata.
type Vector struct {
	ID       string
	Data     []float32
	Metadata map[string]interface{}
}

// ScoredPoint is a Vector annotated with its distance from a query.
type ScoredPoint struct {
	ID       string
	Score    float32
	Vector   []float32
	Metadata map[string]interface{}
}

// SnapshotMetadata describes a point-in-time collection archive.
type SnapshotMetadata struct {
	Name        string    `json:"name"`
	Collection  string    `json:"collection"`
	CreatedAt   time.Time `json:"created_at"`
	SizeBytes   int64     `json:"size_bytes"`
	VectorCount int       `json:"vector_count"`
	Checksum    string    `json:"checksum"`
}
