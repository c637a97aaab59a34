// Package wal implements the write-ahead log every collection appends to
// before a create, delete, insert, or batch-insert is considered durable.
package wal

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/latticedb/vdb/internal/types"
)

const (
	entryMagic uint32 = 0xDEADBEEF

	// maxEntryLength rejects frames whose declared length is absurd,
	// guarding replay against a corrupted length header sending it off
	// into the weeds trying to allocate gigabytes.
	maxEntryLength = 100 * 1024 * 1024

	// flushThreshold is how many buffered bytes accumulate before Append
	// forces an fsync, rather than syncing on every single write.
	flushThreshold = 256 * 1024
)

// OpType identifies the kind of change a WAL Operation records.
type OpType uint8

const (
	OpCreateCollection OpType = iota
	OpDeleteCollection
	OpInsertVector
	OpBatchInsert
	OpDeleteVector
)

// VectorPayload is the WAL's copy of a vector, independent of
// internal/storage/collection.Record so the WAL package has no dependency
// on the file-encoding details of the vectors file.
type VectorPayload struct {
	ID       string                 `json:"id"`
	Data     []float32              `json:"data"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Operation is the payload of a WAL entry: exactly one of Config, Vector,
// Vectors, or VectorID is populated, depending on Type.
type Operation struct {
	Type       OpType                    `json:"type"`
	Collection string                    `json:"collection"`
	Config     *types.CollectionConfig   `json:"config,omitempty"`
	Vector     *VectorPayload            `json:"vector,omitempty"`
	Vectors    []*VectorPayload          `json:"vectors,omitempty"`
	VectorID   string                    `json:"vector_id,omitempty"`
}

// Entry wraps an Operation with the bookkeeping needed to detect corruption
// and order replay.
type Entry struct {
	EntryID   uuid.UUID `json:"entry_id"`
	Timestamp int64     `json:"timestamp"`
	Checksum  uint32    `json:"checksum"`
	Op        Operation `json:"op"`
}

// WAL implements write-ahead logging for durability.
type WAL struct {
	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	path    string
	offset  int64
	pending int
	closed  bool
}

// New opens or creates the WAL file at path, appending to it if it exists.
func New(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("wal: stat %s: %w", path, err)
	}

	return &WAL{
		file:   file,
		writer: bufio.NewWriter(file),
		path:   path,
		offset: stat.Size(),
	}, nil
}

// Append serializes op deterministically, computes its CRC32, wraps it in a
// fresh-uuid, timestamped Entry, and writes
// MAGIC(u32 LE) | LEN(u32 LE) | entry-bytes(LEN). The write is flushed
// immediately but only fsynced once flushThreshold bytes have accumulated
// since the last sync; call Sync for an unconditional flush.
func (w *WAL) Append(ctx context.Context, op Operation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opBytes, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("wal: marshal operation: %w", err)
	}
	entry := Entry{
		EntryID:   uuid.New(),
		Timestamp: time.Now().Unix(),
		Checksum:  crc32.ChecksumIEEE(opBytes),
		Op:        op,
	}
	entryBytes, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("wal: marshal entry: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("wal: closed")
	}

	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], entryMagic)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(entryBytes)))

	if _, err := w.writer.Write(header[:]); err != nil {
		return fmt.Errorf("wal: write header: %w", err)
	}
	if _, err := w.writer.Write(entryBytes); err != nil {
		return fmt.Errorf("wal: write entry: %w", err)
	}

	written := len(header) + len(entryBytes)
	w.offset += int64(written)
	w.pending += written

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if w.pending >= flushThreshold {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("wal: sync: %w", err)
		}
		w.pending = 0
	}

	return nil
}

// Sync forces any buffered bytes not yet fsynced to disk; Engine.Sync calls
// it, which the facade runs before taking a snapshot.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.pending = 0
	return nil
}

// ReadAll flushes the buffer, then sequentially reads every frame,
// recomputing each operation's CRC32 and comparing it to the entry's stored
// checksum. A frame with a checksum mismatch or a deserialize failure is
// skipped with a warning. A bad magic, an absurd length, or a truncated
// frame means the framing itself is unreadable: replay stops there with a
// warning and returns the operations read so far, without an error.
func (w *WAL) ReadAll() ([]Operation, error) {
	w.mu.Lock()
	if !w.closed {
		if err := w.writer.Flush(); err != nil {
			w.mu.Unlock()
			return nil, fmt.Errorf("wal: flush before read: %w", err)
		}
	}
	w.mu.Unlock()

	file, err := os.Open(w.path)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s for reading: %w", w.path, err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	var ops []Operation

	for {
		var header [8]byte
		if _, err := io.ReadFull(reader, header[:]); err != nil {
			if err == io.EOF {
				break
			}
			slog.Warn("wal: record truncated, stopping replay", "path", w.path, "error", err)
			break
		}

		magic := binary.LittleEndian.Uint32(header[0:4])
		if magic != entryMagic {
			slog.Warn("wal: bad magic, stopping replay", "path", w.path)
			break
		}
		length := binary.LittleEndian.Uint32(header[4:8])
		if length > maxEntryLength {
			slog.Warn("wal: entry length exceeds sanity limit, stopping replay", "path", w.path, "length", length)
			break
		}

		entryBytes := make([]byte, length)
		if _, err := io.ReadFull(reader, entryBytes); err != nil {
			slog.Warn("wal: entry truncated, stopping replay", "path", w.path, "error", err)
			break
		}

		var entry Entry
		if err := json.Unmarshal(entryBytes, &entry); err != nil {
			slog.Warn("wal: malformed entry, skipping", "path", w.path, "error", err)
			continue
		}

		opBytes, err := json.Marshal(entry.Op)
		if err != nil {
			slog.Warn("wal: could not re-marshal operation for checksum check, skipping", "path", w.path, "error", err)
			continue
		}
		if crc32.ChecksumIEEE(opBytes) != entry.Checksum {
			slog.Warn("wal: checksum mismatch, entry may be corrupted, skipping", "path", w.path, "entry_id", entry.EntryID)
			continue
		}

		ops = append(ops, entry.Op)
	}

	return ops, nil
}

// Truncate flushes, closes, and reopens the log as a fresh empty file,
// discarding every entry. No code path in the module calls it; snapshot
// creation leaves the log as it is.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("wal: closed")
	}

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush before truncate: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wal: close before truncate: %w", err)
	}

	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("wal: recreate %s: %w", w.path, err)
	}

	w.file = file
	w.writer = bufio.NewWriter(file)
	w.offset = 0
	w.pending = 0

	return nil
}

// Close flushes and fsyncs any remaining buffered bytes before closing the
// underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	var errs []error
	if err := w.writer.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := w.file.Sync(); err != nil {
		errs = append(errs, err)
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, err)
	}
	w.closed = true

	if len(errs) > 0 {
		return fmt.Errorf("wal: close errors: %v", errs)
	}
	return nil
}
