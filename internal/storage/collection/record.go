// Package collection implements per-collection on-disk storage: a metadata
// file, an append-only vector file, and an optional serialized index file.
package collection

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
)

func floatBits(v float32) uint32     { return math.Float32bits(v) }
func floatFromBits(b uint32) float32 { return math.Float32frombits(b) }

// Record is a vector plus its id and optional metadata, deterministically
// encoded as id(16 bytes) || data(len*4 bytes, float32 LE) || metaLen(u32 LE)
// || metaJSON(metaLen bytes). metaLen is zero when Metadata is nil.
type Record struct {
	ID       uuid.UUID
	Vector   []float32
	Metadata map[string]interface{}
}

// Encode produces the payload handed to segment.File.Append.
func (r *Record) Encode() ([]byte, error) {
	var metaJSON []byte
	if r.Metadata != nil {
		var err error
		metaJSON, err = json.Marshal(r.Metadata)
		if err != nil {
			return nil, fmt.Errorf("collection: marshal metadata: %w", err)
		}
	}

	buf := make([]byte, 16+len(r.Vector)*4+4+len(metaJSON))
	copy(buf[0:16], r.ID[:])

	offset := 16
	for _, v := range r.Vector {
		binary.LittleEndian.PutUint32(buf[offset:offset+4], floatBits(v))
		offset += 4
	}

	binary.LittleEndian.PutUint32(buf[offset:offset+4], uint32(len(metaJSON)))
	offset += 4
	copy(buf[offset:], metaJSON)

	return buf, nil
}

// DecodeRecord parses a payload produced by Record.Encode. dimension tells
// it how many float32s to expect.
func DecodeRecord(payload []byte, dimension int) (*Record, error) {
	minLen := 16 + dimension*4 + 4
	if len(payload) < minLen {
		return nil, fmt.Errorf("collection: record too short: got %d bytes, want at least %d", len(payload), minLen)
	}

	var id uuid.UUID
	copy(id[:], payload[0:16])

	offset := 16
	vector := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		vector[i] = floatFromBits(binary.LittleEndian.Uint32(payload[offset : offset+4]))
		offset += 4
	}

	metaLen := binary.LittleEndian.Uint32(payload[offset : offset+4])
	offset += 4
	if offset+int(metaLen) > len(payload) {
		return nil, fmt.Errorf("collection: record metadata length %d exceeds payload", metaLen)
	}

	var metadata map[string]interface{}
	if metaLen > 0 {
		if err := json.Unmarshal(payload[offset:offset+int(metaLen)], &metadata); err != nil {
			return nil, fmt.Errorf("collection: unmarshal metadata: %w", err)
		}
	}

	return &Record{ID: id, Vector: vector, Metadata: metadata}, nil
}
