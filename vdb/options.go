package vdb

import (
	"fmt"
	"time"

	"github.com/latticedb/vdb/internal/quant"
	"github.com/latticedb/vdb/internal/types"
	"github.com/latticedb/vdb/internal/util"
)

// Config holds database-wide configuration, assembled from the defaults
// below and every Option passed to Open.
type Config struct {
	DataDir          string
	MetricsEnabled   bool
	SnapshotDir      string
	RecoveryObserver func(event string, detail string)
}

// Option configures a Database at Open time.
type Option func(*Config) error

// WithDataDir sets the root directory the engine persists collections,
// the write-ahead log, and soft-deletes/backups under.
func WithDataDir(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return fmt.Errorf("vdb: data dir must not be empty")
		}
		c.DataDir = path
		return nil
	}
}

// WithMetrics enables or disables Prometheus metrics collection.
func WithMetrics(enabled bool) Option {
	return func(c *Config) error {
		c.MetricsEnabled = enabled
		return nil
	}
}

// WithSnapshotDir sets Config.SnapshotDir, which defaults to
// "<data dir>/snapshots" when unset. The snapshot manager does not read
// this field: it always writes under "<data dir>/snapshots".
func WithSnapshotDir(path string) Option {
	return func(c *Config) error {
		c.SnapshotDir = path
		return nil
	}
}

// WithRecoveryObserver registers a callback invoked with a short event name
// and a human-readable detail string: once by Open ("startup") and once
// per successful CreateSnapshot ("snapshot-created"). Backup, restore and
// soft delete do not invoke it. A nil observer (the default) means no
// callback is made.
func WithRecoveryObserver(fn func(event string, detail string)) Option {
	return func(c *Config) error {
		c.RecoveryObserver = fn
		return nil
	}
}

// collectionSpec is the mutable target CollectionOptions apply to: the
// persisted CollectionConfig plus runtime policy that has no business in
// metadata.json.
type collectionSpec struct {
	config            types.CollectionConfig
	persistIndexEvery time.Duration
}

// CollectionOption configures a collection at creation time.
type CollectionOption func(*collectionSpec) error

// WithDimension sets the vector dimension for the collection. Required.
func WithDimension(dim int) CollectionOption {
	return func(s *collectionSpec) error {
		if dim <= 0 {
			return fmt.Errorf("vdb: dimension must be positive")
		}
		s.config.Dimension = dim
		return nil
	}
}

// WithMetric sets the distance metric, including Manhattan.
func WithMetric(metric util.DistanceMetric) CollectionOption {
	return func(s *collectionSpec) error {
		s.config.Metric = metric
		return nil
	}
}

// WithVectorType sets the collection's on-wire vector type.
func WithVectorType(vt types.VectorType) CollectionOption {
	return func(s *collectionSpec) error {
		s.config.VectorType = vt
		return nil
	}
}

// WithHNSW configures the HNSW graph's construction parameters.
func WithHNSW(m, efConstruction, efSearch int) CollectionOption {
	return func(s *collectionSpec) error {
		if m <= 0 || efConstruction <= 0 || efSearch <= 0 {
			return fmt.Errorf("vdb: HNSW parameters must be positive")
		}
		s.config.Index.MaxConnections = m
		s.config.Index.EfConstruction = efConstruction
		s.config.Index.EfSearch = efSearch
		return nil
	}
}

// WithMaxLayer overrides the HNSW graph's maximum layer; defaults to 16.
func WithMaxLayer(maxLayer int) CollectionOption {
	return func(s *collectionSpec) error {
		if maxLayer <= 0 {
			return fmt.Errorf("vdb: max layer must be positive")
		}
		s.config.Index.MaxLayer = maxLayer
		return nil
	}
}

// WithQuantization attaches a quantization config to the collection. Only
// quant.None is implemented; other types are accepted here (so a caller
// can round-trip stored config) but rejected at collection creation time
// by CollectionConfig.Validate via quant.Config.Validate.
func WithQuantization(cfg *quant.Config) CollectionOption {
	return func(s *collectionSpec) error {
		s.config.Quantization = cfg
		return nil
	}
}

// WithIndexPersistence enables periodic background persistence of the
// HNSW graph to index.bin every interval, in addition to the persistence
// that already happens on an explicit Sync. A zero interval (the default)
// disables background persistence. Startup does not read index.bin: the
// index is always rebuilt from vectors.bin on restart.
func WithIndexPersistence(interval time.Duration) CollectionOption {
	return func(s *collectionSpec) error {
		s.persistIndexEvery = interval
		return nil
	}
}
