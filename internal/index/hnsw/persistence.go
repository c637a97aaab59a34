package hnsw

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/latticedb/vdb/internal/util"
)

const (
	persistMagic   uint32 = 0x484e5357 // "HNSW"
	persistVersion uint8  = 1
)

// SaveToDisk serializes the full graph (header, every node's vector,
// metadata and per-level link lists) followed by a trailing CRC32 over the
// whole body, so LoadFromDisk can detect truncation or bit rot before
// trusting the file.
func (idx *Index) SaveToDisk(path string) error {
	idx.structMu.RLock()
	nodes := make([]*Node, len(idx.nodes))
	copy(nodes, idx.nodes)
	maxLevel := idx.maxLevel
	idx.structMu.RUnlock()

	var buf bytes.Buffer
	writeU32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	writeU16 := func(v uint16) { binary.Write(&buf, binary.LittleEndian, v) }

	writeU32(persistMagic)
	buf.WriteByte(persistVersion)
	writeU32(uint32(idx.cfg.Dimension))
	buf.WriteByte(byte(idx.cfg.Metric))
	writeU32(uint32(idx.cfg.M))
	writeU32(uint32(idx.cfg.EfConstruction))
	writeU32(uint32(idx.cfg.EfSearch))
	writeU32(uint32(idx.cfg.MaxLayer))
	writeU32(uint32(maxLevel))

	live := 0
	for _, n := range nodes {
		if n != nil {
			live++
		}
	}
	writeU32(uint32(live))

	for slot, n := range nodes {
		if n == nil {
			continue
		}
		n.mu.Lock()
		id, vector, level, links := n.ID, n.Vector, n.Level, n.Links
		metadata := n.Metadata
		n.mu.Unlock()

		writeU32(uint32(slot))
		writeU16(uint16(len(id)))
		buf.WriteString(id)
		writeU16(uint16(level))

		writeU32(uint32(len(vector)))
		for _, v := range vector {
			binary.Write(&buf, binary.LittleEndian, v)
		}

		metaBytes, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("hnsw: marshal metadata for %q: %w", id, err)
		}
		writeU32(uint32(len(metaBytes)))
		buf.Write(metaBytes)

		for l := 0; l <= level; l++ {
			writeU32(uint32(len(links[l])))
			for _, linkID := range links[l] {
				writeU32(linkID)
			}
		}
	}

	checksum := crc32.ChecksumIEEE(buf.Bytes())

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("hnsw: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("hnsw: write %s: %w", path, err)
	}
	if err := binary.Write(w, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("hnsw: write checksum for %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

type pendingNode struct {
	slot uint32
	node *Node
}

// LoadFromDisk rebuilds an index from a file written by SaveToDisk. The
// loaded graph's node slots match their original positions so link ids
// embedded in other nodes' link lists remain valid without renumbering.
func LoadFromDisk(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hnsw: read %s: %w", path, err)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("hnsw: %s too small to be an index file", path)
	}

	body, trailer := data[:len(data)-4], data[len(data)-4:]
	wantChecksum := binary.LittleEndian.Uint32(trailer)
	if got := crc32.ChecksumIEEE(body); got != wantChecksum {
		return nil, fmt.Errorf("hnsw: checksum mismatch in %s: corrupt index file", path)
	}

	r := bytes.NewReader(body)
	readU32 := func() (uint32, error) {
		var v uint32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	}
	readU16 := func() (uint16, error) {
		var v uint16
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	}

	magic, err := readU32()
	if err != nil || magic != persistMagic {
		return nil, fmt.Errorf("hnsw: %s is not a valid index file", path)
	}
	version, err := r.ReadByte()
	if err != nil || version != persistVersion {
		return nil, fmt.Errorf("hnsw: unsupported index file version in %s", path)
	}

	dimension, _ := readU32()
	metricByte, _ := r.ReadByte()
	m, _ := readU32()
	efConstruction, _ := readU32()
	efSearch, _ := readU32()
	maxLayer, _ := readU32()
	maxLevel, _ := readU32()
	nodeCount, err := readU32()
	if err != nil {
		return nil, fmt.Errorf("hnsw: truncated header in %s", path)
	}

	cfg := Config{
		Dimension:      int(dimension),
		Metric:         util.DistanceMetric(metricByte),
		M:              int(m),
		EfConstruction: int(efConstruction),
		EfSearch:       int(efSearch),
		MaxLayer:       int(maxLayer),
	}
	idx, err := NewIndex(cfg)
	if err != nil {
		return nil, err
	}

	var maxSlot uint32
	entries := make([]pendingNode, 0, nodeCount)

	for i := uint32(0); i < nodeCount; i++ {
		slot, err := readU32()
		if err != nil {
			return nil, fmt.Errorf("hnsw: truncated node record in %s", path)
		}
		idLen, err := readU16()
		if err != nil {
			return nil, err
		}
		idBytes := make([]byte, idLen)
		if _, err := r.Read(idBytes); err != nil {
			return nil, err
		}
		level, err := readU16()
		if err != nil {
			return nil, err
		}
		vecLen, err := readU32()
		if err != nil {
			return nil, err
		}
		vector := make([]float32, vecLen)
		for j := range vector {
			if err := binary.Read(r, binary.LittleEndian, &vector[j]); err != nil {
				return nil, err
			}
		}
		metaLen, err := readU32()
		if err != nil {
			return nil, err
		}
		metaBytes := make([]byte, metaLen)
		if _, err := r.Read(metaBytes); err != nil {
			return nil, err
		}
		var metadata map[string]interface{}
		if len(metaBytes) > 0 {
			if err := json.Unmarshal(metaBytes, &metadata); err != nil {
				return nil, fmt.Errorf("hnsw: unmarshal metadata in %s: %w", path, err)
			}
		}

		links := make([][]uint32, int(level)+1)
		for l := 0; l <= int(level); l++ {
			count, err := readU32()
			if err != nil {
				return nil, err
			}
			links[l] = make([]uint32, count)
			for k := range links[l] {
				links[l][k], err = readU32()
				if err != nil {
					return nil, err
				}
			}
		}

		node := newNode(string(idBytes), vector, metadata, int(level))
		node.Links = links
		entries = append(entries, pendingNode{slot: slot, node: node})
		if slot > maxSlot {
			maxSlot = slot
		}
	}

	nodes := make([]*Node, maxSlot+1)
	for _, e := range entries {
		nodes[e.slot] = e.node
		idx.idIndex.Store(e.node.ID, e.slot)
	}

	idx.structMu.Lock()
	idx.nodes = nodes
	idx.maxLevel = int(maxLevel)
	idx.hasEntry = len(entries) > 0
	if idx.hasEntry {
		best := entries[0]
		for _, e := range entries {
			if e.node.Level > best.node.Level {
				best = e
			}
		}
		idx.entryPoint = best.slot
	}
	idx.structMu.Unlock()

	idx.size = int64(len(entries))
	return idx, nil
}
