package postprocessors

import (
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
	"github.com/custodia-labs/scholar/internal/postprocessors/chunker"
	"github.com/custodia-labs/scholar/internal/postprocessors/references"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("references", buildReferences)
	r.Register("chunker", buildChunker)
}

// DefaultRegistry returns a registry with the built-in processors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

func buildReferences(_ map[string]any) (driven.PostProcessor, error) {
	return references.New(), nil
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Units per chunk (default: 1000)
//   - overlap (int): Overlapping units between chunks (default: 200)
//   - unit (string): "characters" or "tokens" (default: characters)
//
// An overlap not smaller than chunk_size is rejected with domain.ErrInvalidConfig.
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if cfg != nil {
		if size, ok := getIntFromConfig(cfg, "chunk_size"); ok {
			opts = append(opts, chunker.WithChunkSize(size))
		}
		if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
			opts = append(opts, chunker.WithOverlap(overlap))
		}
		if name, ok := cfg["unit"].(string); ok {
			unit, err := chunker.UnitByName(name)
			if err != nil {
				return nil, err
			}
			opts = append(opts, chunker.WithUnit(unit))
		}
	}

	return chunker.New(opts...)
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
