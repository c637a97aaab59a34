package vdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/latticedb/vdb/internal/types"
)

const metadataFileName = "metadata.json"

// loadRestoredConfig reads metadata.json out of a freshly restored
// collection directory, without going through internal/storage/collection
// (which would also try to open vectors.bin for writing before the engine
// has taken ownership of the directory).
func loadRestoredConfig(dir string) (*types.CollectionConfig, error) {
	data, err := os.ReadFile(filepath.Join(dir, metadataFileName))
	if err != nil {
		return nil, fmt.Errorf("vdb: reading %s: %w", metadataFileName, err)
	}
	var cfg types.CollectionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("vdb: parsing %s: %w", metadataFileName, err)
	}
	return &cfg, nil
}

// writeCollectionMetadata writes metadata.json into a directory the
// recovery manager has already populated with vectors.bin/index.bin, for
// orphan imports that arrive with no config of their own.
func writeCollectionMetadata(dir string, cfg *types.CollectionConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("vdb: marshaling metadata: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, metadataFileName), data, 0644)
}
