// Package config holds the typed build-parameter bag the host supplies
// when creating an index, plus env-var loading and validation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// GraphStorageKind selects the graph store back-end.
type GraphStorageKind string

const (
	GraphStorageFlat       GraphStorageKind = "flat"
	GraphStorageCompressed GraphStorageKind = "compressed"
)

// QuantizationKind selects the vector store's encode/decode family.
type QuantizationKind string

const (
	QuantizationFlat    QuantizationKind = "flat"
	QuantizationScalar  QuantizationKind = "sq8"
	QuantizationProduct QuantizationKind = "pq"
)

// EdgeSelectionKind selects the edge-selection heuristic variant.
type EdgeSelectionKind string

const (
	EdgeSelectionAlpha EdgeSelectionKind = "alpha"
	EdgeSelectionTau   EdgeSelectionKind = "tau"
)

// Config is the build-parameter bag recognized at index creation:
// dtype/metric_type/dim plus the kind-specific subtree of max_degree,
// ef_construction, base_quantization_type, use_reorder, and
// graph_storage_type.
type Config struct {
	Dtype     string `json:"dtype"`
	Metric    string `json:"metric_type"`
	Dim       int    `json:"dim"`
	MaxDegree int    `json:"max_degree"`

	EfConstruction       int              `json:"ef_construction"`
	BaseQuantizationType QuantizationKind `json:"base_quantization_type"`
	UseReorder           bool             `json:"use_reorder"`
	GraphStorageType     GraphStorageKind `json:"graph_storage_type"`
	EdgeSelection        EdgeSelectionKind `json:"edge_selection,omitempty"`

	// Product-quantization-only knobs; ignored by other quantization kinds.
	PQSubvectors  int `json:"pq_subvectors,omitempty"`
	PQBitsPerCode int `json:"pq_bits_per_code,omitempty"`

	// RandomSeed fixes the layer-assignment RNG for reproducible
	// builds. Zero seeds from the clock.
	RandomSeed int64 `json:"random_seed,omitempty"`
}

// Default returns the recommended configuration for a float32, L2,
// flat-graph HNSW-style index (M=16, efConstruction=200).
func Default() *Config {
	return &Config{
		Dtype:                "float32",
		Metric:               "l2",
		Dim:                  768,
		MaxDegree:            16,
		EfConstruction:       200,
		BaseQuantizationType: QuantizationFlat,
		UseReorder:           false,
		GraphStorageType:     GraphStorageFlat,
		EdgeSelection:        EdgeSelectionAlpha,
		PQSubvectors:         8,
		PQBitsPerCode:        8,
	}
}

// LoadFromEnv loads configuration overrides from environment
// variables.
func LoadFromEnv() *Config {
	cfg := Default()

	if dtype := os.Getenv("VECTOR_DTYPE"); dtype != "" {
		cfg.Dtype = dtype
	}
	if metric := os.Getenv("VECTOR_METRIC_TYPE"); metric != "" {
		cfg.Metric = metric
	}
	if dim := os.Getenv("VECTOR_DIM"); dim != "" {
		if d, err := strconv.Atoi(dim); err == nil {
			cfg.Dim = d
		}
	}
	if m := os.Getenv("VECTOR_MAX_DEGREE"); m != "" {
		if mVal, err := strconv.Atoi(m); err == nil {
			cfg.MaxDegree = mVal
		}
	}
	if ef := os.Getenv("VECTOR_EF_CONSTRUCTION"); ef != "" {
		if efVal, err := strconv.Atoi(ef); err == nil {
			cfg.EfConstruction = efVal
		}
	}
	if quant := os.Getenv("VECTOR_QUANTIZATION_TYPE"); quant != "" {
		cfg.BaseQuantizationType = QuantizationKind(quant)
	}
	if reorder := os.Getenv("VECTOR_USE_REORDER"); reorder == "true" {
		cfg.UseReorder = true
	}
	if storage := os.Getenv("VECTOR_GRAPH_STORAGE_TYPE"); storage != "" {
		cfg.GraphStorageType = GraphStorageKind(storage)
	}

	return cfg
}

// Validate checks that the configuration describes a buildable index.
func (c *Config) Validate() error {
	if c.Dtype != "float32" {
		return fmt.Errorf("config: unsupported dtype %q (only float32)", c.Dtype)
	}
	if c.Metric != "l2" && c.Metric != "ip" {
		return fmt.Errorf("config: unsupported metric_type %q (want l2 or ip)", c.Metric)
	}
	if c.Dim < 1 {
		return fmt.Errorf("config: invalid dim %d (must be > 0)", c.Dim)
	}
	if c.MaxDegree < 2 || c.MaxDegree > 512 {
		return fmt.Errorf("config: invalid max_degree %d (recommended range 2-512)", c.MaxDegree)
	}
	if c.EfConstruction < c.MaxDegree {
		return fmt.Errorf("config: ef_construction %d must be >= max_degree %d", c.EfConstruction, c.MaxDegree)
	}
	switch c.BaseQuantizationType {
	case QuantizationFlat, QuantizationScalar, QuantizationProduct:
	default:
		return fmt.Errorf("config: unknown base_quantization_type %q", c.BaseQuantizationType)
	}
	switch c.GraphStorageType {
	case GraphStorageFlat, GraphStorageCompressed:
	default:
		return fmt.Errorf("config: unknown graph_storage_type %q", c.GraphStorageType)
	}
	if c.BaseQuantizationType == QuantizationProduct {
		if c.PQSubvectors < 1 {
			return fmt.Errorf("config: pq_subvectors must be > 0 for product quantization")
		}
		if c.Dim%c.PQSubvectors != 0 {
			return fmt.Errorf("config: dim %d not divisible by pq_subvectors %d", c.Dim, c.PQSubvectors)
		}
	}
	return nil
}

// ParamsFromJSON parses the build-parameter JSON blob supplied at
// index creation.
func ParamsFromJSON(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: invalid params json: %w", err)
	}
	return cfg, nil
}

// ToJSON serializes the configuration, used both as constructor input
// and as the parameter blob written into a serialized index.
func (c *Config) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

// CompatibleWith reports whether other describes an index with the
// same invariants as c: same dim, metric, max_degree, and graph
// storage kind. Deserialization refuses a mismatch.
func (c *Config) CompatibleWith(other *Config) bool {
	return c.Dim == other.Dim &&
		c.Metric == other.Metric &&
		c.MaxDegree == other.MaxDegree &&
		c.GraphStorageType == other.GraphStorageType
}
