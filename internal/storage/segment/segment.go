// Package segment implements the append-only, length-prefixed record file
// every collection's vectors.bin and index.bin are built on.
package segment

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/blevesearch/mmap-go"
)

// File is an append-only byte stream with synchronous flush and ordered,
// length-prefixed iteration. It is safe for concurrent Append/Size/Sync
// calls but Iterate opens its own read handle rather than sharing the
// mmap'd view, so iteration is never blocked by a concurrent writer.
type File struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
	size   int64
}

// Open creates path if absent and opens it for append and read.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("segment: open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("segment: stat %s: %w", path, err)
	}
	return &File{
		file:   f,
		writer: bufio.NewWriter(f),
		path:   path,
		size:   stat.Size(),
	}, nil
}

// Append writes payload framed as length(u32 LE) || payload, returning once
// the bytes are in the OS page cache. Call Sync for durability.
func (f *File) Append(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(payload)))
	if _, err := f.writer.Write(length[:]); err != nil {
		return fmt.Errorf("segment: write length: %w", err)
	}
	if _, err := f.writer.Write(payload); err != nil {
		return fmt.Errorf("segment: write payload: %w", err)
	}
	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("segment: flush: %w", err)
	}
	f.size += int64(4 + len(payload))
	return nil
}

// AppendBatch frames and writes every payload as a single contiguous
// buffer, avoiding a flush per record.
func (f *File) AppendBatch(payloads [][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var written int64
	for _, payload := range payloads {
		var length [4]byte
		binary.LittleEndian.PutUint32(length[:], uint32(len(payload)))
		if _, err := f.writer.Write(length[:]); err != nil {
			return fmt.Errorf("segment: write length: %w", err)
		}
		if _, err := f.writer.Write(payload); err != nil {
			return fmt.Errorf("segment: write payload: %w", err)
		}
		written += int64(4 + len(payload))
	}
	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("segment: flush: %w", err)
	}
	f.size += written
	return nil
}

// Sync fsyncs the underlying file.
func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("segment: flush before sync: %w", err)
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("segment: sync %s: %w", f.path, err)
	}
	return nil
}

// Size returns the current length of the file in bytes.
func (f *File) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Close flushes and closes the underlying file handle.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writer.Flush(); err != nil {
		return err
	}
	return f.file.Close()
}

// ErrTruncatedRecord is returned by Iterate's callback path when a record's
// length header claims more bytes than remain in the file.
var ErrTruncatedRecord = fmt.Errorf("segment: truncated record")

// Iterate memory-maps the file read-only at its current size and invokes fn
// with each record's payload in file order, starting at offset 0. A
// length(u32 LE) header followed by fewer bytes than it claims is reported
// as ErrTruncatedRecord rather than silently stopping, since callers
// (vector-file replay) distinguish "clean EOF" from "corrupt tail".
func Iterate(path string, fn func(payload []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("segment: open %s for iteration: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("segment: stat %s: %w", path, err)
	}
	if stat.Size() == 0 {
		return nil
	}

	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return fmt.Errorf("segment: mmap %s: %w", path, err)
	}
	defer mapped.Unmap()

	data := []byte(mapped)
	offset := 0
	for offset < len(data) {
		if offset+4 > len(data) {
			return fmt.Errorf("%w: %s at offset %d", ErrTruncatedRecord, path, offset)
		}
		length := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		offset += 4
		if offset+length > len(data) {
			return fmt.Errorf("%w: %s at offset %d", ErrTruncatedRecord, path, offset)
		}
		if err := fn(data[offset : offset+length]); err != nil {
			return err
		}
		offset += length
	}
	return nil
}

// Reader streams records from a file lazily instead of mapping it whole,
// used when a caller wants to stop early without paying to map a large
// file (e.g. existence probes).
type Reader struct {
	r *bufio.Reader
	f *os.File
}

// NewReader opens path for sequential record-at-a-time reads.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("segment: open %s for reading: %w", path, err)
	}
	return &Reader{r: bufio.NewReader(f), f: f}, nil
}

// Next returns the next record's payload, or io.EOF when the file is
// exhausted cleanly. A header claiming a length longer than the remaining
// stream is reported as ErrTruncatedRecord.
func (r *Reader) Next() ([]byte, error) {
	var length [4]byte
	if _, err := io.ReadFull(r.r, length[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %v", ErrTruncatedRecord, err)
	}
	payload := make([]byte, binary.LittleEndian.Uint32(length[:]))
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedRecord, err)
	}
	return payload, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
