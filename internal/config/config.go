// Package config loads photoidx configuration from layered YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ANNBackend names one of the three interchangeable ANN backends (spec §4.4).
type ANNBackend string

const (
	ANNBackendFlat  ANNBackend = "flat"
	ANNBackendGraph ANNBackend = "graph"
	ANNBackendTree  ANNBackend = "tree"
)

// Config is the complete photoidx configuration.
// Fields mirror the tiers in spec §2.3 of SPEC_FULL.md: hardcoded defaults,
// then user config, then per-root project config, then environment variables.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	ANN         ANNTuningConfig   `yaml:"ann" json:"ann"`
}

// PathsConfig configures which index roots to scan.
type PathsConfig struct {
	Roots   []string `yaml:"roots" json:"roots"`
	Exclude []string `yaml:"exclude" json:"exclude"`
	// AppDataDir overrides the default `{root}/.photo_index` storage location
	// with `{appdata}/{sanitized(root)}/{sanitized(index_key)}` (spec §3).
	AppDataDir string `yaml:"appdata_dir" json:"appdata_dir"`
}

// SearchConfig configures fusion weights and default top-K (spec §4.6).
type SearchConfig struct {
	// ImageWeight and AuxWeight must sum to 1.0 for hybrid fusion.
	ImageWeight float64 `yaml:"image_weight" json:"image_weight"`
	AuxWeight   float64 `yaml:"aux_weight" json:"aux_weight"`
	TopK        int     `yaml:"top_k" json:"top_k"`
	// ANNBackend is the default backend hint for text->image search ("" = exact).
	ANNBackend ANNBackend `yaml:"ann_backend" json:"ann_backend"`
	// UseEXIFDate resolves the spec's open question on date-filter semantics:
	// when true, date_from/date_to compare against the EXIF capture date and
	// a photo without one fails the date constraint (there is no mtime
	// fallback); when false, mtime is always used.
	UseEXIFDate bool `yaml:"use_exif_date" json:"use_exif_date"`
}

// EmbeddingsConfig selects and tunes the Embedder backend.
type EmbeddingsConfig struct {
	// Backend is "onnx" or "static".
	Backend    string `yaml:"backend" json:"backend"`
	ModelDir   string `yaml:"model_dir" json:"model_dir"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	// CacheSize bounds the LRU cache of embed_text(query) -> vector.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// PerformanceConfig tunes the concurrency model (spec §5).
type PerformanceConfig struct {
	// DecodeWorkers is the bounded decode worker pool size; 0 = auto
	// (min(4, cpus/2), halved when UsesAccelerator is true).
	DecodeWorkers   int  `yaml:"decode_workers" json:"decode_workers"`
	UsesAccelerator bool `yaml:"uses_accelerator" json:"uses_accelerator"`
}

// ANNTuningConfig carries per-backend tuning parameters (spec §4.4 table).
type ANNTuningConfig struct {
	GraphM              int `yaml:"graph_m" json:"graph_m"`
	GraphEfConstruction int `yaml:"graph_ef_construction" json:"graph_ef_construction"`
	GraphEfSearch       int `yaml:"graph_ef_search" json:"graph_ef_search"`
	TreeCount           int `yaml:"tree_count" json:"tree_count"`
}

// DecodeWorkerCount resolves PerformanceConfig.DecodeWorkers to a concrete
// worker count, applying the auto-sizing and accelerator-halving rule from
// spec §5.
func (p PerformanceConfig) DecodeWorkerCount() int {
	if p.DecodeWorkers > 0 {
		return p.DecodeWorkers
	}
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	if p.UsesAccelerator {
		n = n / 2
		if n < 1 {
			n = 1
		}
	}
	return n
}

// New returns the hardcoded defaults (tier 1 of spec §2.3).
func New() *Config {
	return &Config{
		Version: 1,
		Paths:   PathsConfig{},
		Search: SearchConfig{
			ImageWeight: 0.7,
			AuxWeight:   0.3,
			TopK:        20,
			ANNBackend:  "",
			UseEXIFDate: false,
		},
		Embeddings: EmbeddingsConfig{
			Backend:    "static",
			Dimensions: 512,
			BatchSize:  32,
			CacheSize:  512,
		},
		Performance: PerformanceConfig{
			DecodeWorkers:   0,
			UsesAccelerator: false,
		},
		ANN: ANNTuningConfig{
			GraphM:              32,
			GraphEfConstruction: 128,
			GraphEfSearch:       64,
			TreeCount:           10,
		},
	}
}

// Load builds a Config by layering, in increasing priority:
//  1. hardcoded defaults (New)
//  2. the user config at ~/.config/photoidx/config.yaml
//  3. the per-root project config at {root}/.photoindex.yaml, if rootDir != ""
//  4. PHOTOIDX_* environment variables
func Load(rootDir string) (*Config, error) {
	cfg := New()

	if userPath, err := UserConfigPath(); err == nil {
		if err := mergeYAMLFile(cfg, userPath); err != nil {
			return nil, fmt.Errorf("user config: %w", err)
		}
	}

	if rootDir != "" {
		projectPath := filepath.Join(rootDir, ProjectConfigFileName)
		if err := mergeYAMLFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("project config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ProjectConfigFileName is the per-root project config file name.
const ProjectConfigFileName = ".photoindex.yaml"

// UserConfigPath returns ~/.config/photoidx/config.yaml.
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "photoidx", "config.yaml"), nil
}

// mergeYAMLFile unmarshals path onto cfg in place; a missing file is not an error.
func mergeYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// envPrefix is the environment variable prefix for all overrides.
const envPrefix = "PHOTOIDX_"

// applyEnvOverrides reads PHOTOIDX_* variables onto cfg, the highest-priority tier.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envPrefix + "IMAGE_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.ImageWeight = f
		}
	}
	if v := os.Getenv(envPrefix + "AUX_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.AuxWeight = f
		}
	}
	if v := os.Getenv(envPrefix + "TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.TopK = n
		}
	}
	if v := os.Getenv(envPrefix + "ANN_BACKEND"); v != "" {
		cfg.Search.ANNBackend = ANNBackend(v)
	}
	if v := os.Getenv(envPrefix + "EMBEDDER_BACKEND"); v != "" {
		cfg.Embeddings.Backend = v
	}
	if v := os.Getenv(envPrefix + "MODEL_DIR"); v != "" {
		cfg.Embeddings.ModelDir = v
	}
	if v := os.Getenv(envPrefix + "BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embeddings.BatchSize = n
		}
	}
	if v := os.Getenv(envPrefix + "DECODE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Performance.DecodeWorkers = n
		}
	}
	if v := os.Getenv(envPrefix + "APPDATA_DIR"); v != "" {
		cfg.Paths.AppDataDir = v
	}
}

// Validate checks invariants that downstream packages rely on without
// re-checking (fusion weights summing to ~1.0, positive batch sizes, etc).
func (c *Config) Validate() error {
	if c.Search.ImageWeight < 0 || c.Search.AuxWeight < 0 {
		return fmt.Errorf("config: fusion weights must be non-negative")
	}
	if sum := c.Search.ImageWeight + c.Search.AuxWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("config: image_weight + aux_weight must equal 1.0, got %.3f", sum)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("config: top_k must be positive")
	}
	switch c.Search.ANNBackend {
	case "", ANNBackendFlat, ANNBackendGraph, ANNBackendTree:
	default:
		return fmt.Errorf("config: unknown ann_backend %q", c.Search.ANNBackend)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("config: embeddings.batch_size must be positive")
	}
	switch strings.ToLower(c.Embeddings.Backend) {
	case "onnx", "static":
	default:
		return fmt.Errorf("config: unknown embeddings.backend %q", c.Embeddings.Backend)
	}
	return nil
}

// SanitizeKey replaces path-unsafe characters in an index key or root path,
// per spec §6.1: `/`, ` `, `:`, `|` become `-`.
func SanitizeKey(s string) string {
	replacer := strings.NewReplacer("/", "-", " ", "-", ":", "-", "|", "-")
	return replacer.Replace(s)
}

// StoreDir resolves the on-disk storage directory for an index, following
// spec §3's IndexKey rule: `{root}/.photo_index/{sanitized(index_key)}`
// unless an appdata root is configured, in which case
// `{appdata}/{sanitized(root)}/{sanitized(index_key)}`.
func (c *Config) StoreDir(root, indexKey string) string {
	key := SanitizeKey(indexKey)
	if c.Paths.AppDataDir != "" {
		return filepath.Join(c.Paths.AppDataDir, SanitizeKey(root), key)
	}
	return filepath.Join(root, ".photo_index", key)
}
