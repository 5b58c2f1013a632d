package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/hnswgraph/distance"
	"github.com/hupe1980/hnswgraph/hnsw"
)

// Config holds all settings of a benchmark run.
type Config struct {
	Dimension    int    `yaml:"dimension"`
	Vectors      int    `yaml:"vectors"`
	Queries      int    `yaml:"queries"`
	K            int    `yaml:"k"`
	Seed         int64  `yaml:"seed"`
	Metric       string `yaml:"metric"`
	Distribution string `yaml:"distribution"`

	Index  IndexConfig  `yaml:"index"`
	Search SearchConfig `yaml:"search"`

	// WarmStartFraction builds the graph over this share of the vectors
	// first, then adds the rest and rebuilds from the first graph.
	WarmStartFraction float64 `yaml:"warm_start_fraction"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// IndexConfig holds graph construction settings.
type IndexConfig struct {
	M                int   `yaml:"m"`
	BeamWidth        int   `yaml:"beam_width"`
	Workers          int   `yaml:"workers"`
	BatchSize        int   `yaml:"batch_size"`
	MemoryLimitBytes int64 `yaml:"memory_limit_bytes"`
}

// SearchConfig holds query settings.
type SearchConfig struct {
	// FilterRate is the share of ids a query filter accepts. 0 disables filtering.
	FilterRate              float64 `yaml:"filter_rate"`
	VisitLimit              int64   `yaml:"visit_limit"`
	FilteredSearchThreshold int     `yaml:"filtered_search_threshold"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Dimension:    32,
		Vectors:      10000,
		Queries:      100,
		K:            10,
		Seed:         42,
		Metric:       "euclidean",
		Distribution: "unit",
		Index: IndexConfig{
			M:         hnsw.DefaultM,
			BeamWidth: hnsw.DefaultBeamWidth,
			Workers:   1,
			BatchSize: hnsw.DefaultBatchSize,
		},
		Search: SearchConfig{
			FilteredSearchThreshold: 60,
		},
		LogLevel: "info",
	}
}

// LoadConfig reads the YAML file at path over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Dimension <= 0:
		return fmt.Errorf("dimension must be positive, got %d", c.Dimension)
	case c.Vectors <= 0:
		return fmt.Errorf("vectors must be positive, got %d", c.Vectors)
	case c.Queries < 0:
		return fmt.Errorf("queries must not be negative, got %d", c.Queries)
	case c.K <= 0:
		return fmt.Errorf("k must be positive, got %d", c.K)
	case c.WarmStartFraction < 0 || c.WarmStartFraction >= 1:
		return fmt.Errorf("warm_start_fraction must be in [0, 1), got %v", c.WarmStartFraction)
	case c.Search.FilterRate < 0 || c.Search.FilterRate > 1:
		return fmt.Errorf("filter_rate must be in [0, 1], got %v", c.Search.FilterRate)
	}

	if _, err := c.metric(); err != nil {
		return err
	}
	if _, err := c.logLevel(); err != nil {
		return err
	}

	switch c.Distribution {
	case "unit", "uniform", "clustered":
	default:
		return fmt.Errorf("unknown distribution %q", c.Distribution)
	}

	return nil
}

func (c Config) metric() (distance.Metric, error) {
	return distance.ParseMetric(c.Metric)
}

func (c Config) logLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
