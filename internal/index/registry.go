package index

import "fmt"

// Factory builds Index instances from typed configuration.
type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

// Create builds an index for the given type and configuration.
func (f *Factory) Create(t Type, config interface{}) (Index, error) {
	switch t {
	case TypeHNSW:
		cfg, ok := config.(*HNSWConfig)
		if !ok {
			return nil, fmt.Errorf("index: invalid config type for hnsw index")
		}
		return NewHNSW(cfg)

	case TypeFlat:
		cfg, ok := config.(*FlatConfig)
		if !ok {
			return nil, fmt.Errorf("index: invalid config type for flat index")
		}
		return NewFlat(cfg)

	default:
		return nil, fmt.Errorf("index: unsupported index type: %v", t)
	}
}

// SupportedTypes lists the index algorithms this factory can build.
func (f *Factory) SupportedTypes() []Type {
	return []Type{TypeHNSW, TypeFlat}
}

// DefaultFactory is the package-level factory instance.
var DefaultFactory = NewFactory()
