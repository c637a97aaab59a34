package collection

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/latticedb/vdb/internal/storage/segment"
	"github.com/latticedb/vdb/internal/types"
)

const (
	metadataFileName = "metadata.json"
	vectorsFileName  = "vectors.bin"
	indexFileName    = "index.bin"
)

// Storage owns one collection's on-disk files: metadata.json, vectors.bin,
// and the path (not the open handle) of index.bin, which the index package
// owns the serialization format for.
type Storage struct {
	mu      sync.RWMutex
	dir     string
	config  *types.CollectionConfig
	vectors *segment.File
	logger  *slog.Logger
}

// Create makes dir, opens vectors.bin and index.bin's path, and writes
// metadata.json pretty-printed.
func Create(dir string, config *types.CollectionConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("collection: mkdir %s: %w", dir, err)
	}

	metaPath := filepath.Join(dir, metadataFileName)
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("collection: marshal metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		return nil, fmt.Errorf("collection: write metadata: %w", err)
	}

	vectors, err := segment.Open(filepath.Join(dir, vectorsFileName))
	if err != nil {
		return nil, err
	}

	return &Storage{dir: dir, config: config, vectors: vectors, logger: logger}, nil
}

// Load reads metadata.json and opens the vectors.bin handle for an existing
// collection directory.
func Load(dir string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(filepath.Join(dir, metadataFileName))
	if err != nil {
		return nil, fmt.Errorf("collection: read metadata: %w", err)
	}
	var config types.CollectionConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("collection: unmarshal metadata: %w", err)
	}

	vectors, err := segment.Open(filepath.Join(dir, vectorsFileName))
	if err != nil {
		return nil, err
	}

	return &Storage{dir: dir, config: &config, vectors: vectors, logger: logger}, nil
}

// Config returns the collection's immutable configuration.
func (s *Storage) Config() *types.CollectionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Dir returns the collection's directory.
func (s *Storage) Dir() string { return s.dir }

// IndexPath returns where the serialized index is (or would be) stored.
func (s *Storage) IndexPath() string { return filepath.Join(s.dir, indexFileName) }

// VectorsPath returns the append-only vector file's path.
func (s *Storage) VectorsPath() string { return filepath.Join(s.dir, vectorsFileName) }

// Insert validates the vector's dimension, serializes it, and appends it
// framed as length(u32 LE) || payload.
func (s *Storage) Insert(id uuid.UUID, vector []float32, metadata map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(vector) != s.config.Dimension {
		return fmt.Errorf("collection: vector dimension %d does not match collection dimension %d", len(vector), s.config.Dimension)
	}
	record := &Record{ID: id, Vector: vector, Metadata: metadata}
	payload, err := record.Encode()
	if err != nil {
		return err
	}
	return s.vectors.Append(payload)
}

// BatchInsert validates every vector, serializes them into one contiguous
// buffer, and writes it with a single append call.
func (s *Storage) BatchInsert(ids []uuid.UUID, vectors [][]float32, metadatas []map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloads := make([][]byte, len(vectors))
	for i, vector := range vectors {
		if len(vector) != s.config.Dimension {
			return fmt.Errorf("collection: vector dimension %d does not match collection dimension %d", len(vector), s.config.Dimension)
		}
		record := &Record{ID: ids[i], Vector: vector, Metadata: metadatas[i]}
		payload, err := record.Encode()
		if err != nil {
			return err
		}
		payloads[i] = payload
	}
	return s.vectors.AppendBatch(payloads)
}

// IterVectors replays every record in vectors.bin in file order. A record
// that fails to deserialize is logged and skipped rather than aborting the
// whole iteration.
func (s *Storage) IterVectors(fn func(*Record) error) error {
	s.mu.RLock()
	dimension := s.config.Dimension
	path := s.VectorsPath()
	s.mu.RUnlock()

	return segment.Iterate(path, func(payload []byte) error {
		record, err := DecodeRecord(payload, dimension)
		if err != nil {
			s.logger.Warn("collection: skipping malformed vector record", "dir", s.dir, "error", err)
			return nil
		}
		return fn(record)
	})
}

// Sync fsyncs the vector file.
func (s *Storage) Sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectors.Sync()
}

// Close flushes and closes the vector file handle.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vectors.Close()
}
