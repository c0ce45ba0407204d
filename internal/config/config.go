// Package config handles pipeline configuration loading and management.
package config

import "fmt"

// Config holds all pipeline settings.
type Config struct {
	Cache    CacheConfig    `yaml:"cache"`
	Overdraw OverdrawConfig `yaml:"overdraw"`
	Meshlets MeshletConfig  `yaml:"meshlets"`
	Strip    StripConfig    `yaml:"strip"`
	Simplify SimplifyConfig `yaml:"simplify"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CacheConfig holds vertex cache optimization settings.
type CacheConfig struct {
	// FIFOSize switches to the FIFO optimizer when nonzero; 0 selects
	// the default LRU-scored optimizer.
	FIFOSize int `yaml:"fifo_size"`
}

// OverdrawConfig holds overdraw optimization settings.
type OverdrawConfig struct {
	Enabled bool `yaml:"enabled"`
	// Threshold bounds the allowed ACMR regression, e.g. 1.05 allows 5%.
	Threshold float32 `yaml:"threshold"`
}

// MeshletConfig holds meshlet builder settings.
type MeshletConfig struct {
	MaxVertices  int     `yaml:"max_vertices"`
	MaxTriangles int     `yaml:"max_triangles"`
	ConeWeight   float32 `yaml:"cone_weight"`
	// Scan selects the sequential builder over the adjacency-greedy one.
	Scan bool `yaml:"scan"`
}

// StripConfig holds triangle strip settings.
type StripConfig struct {
	RestartIndex uint32 `yaml:"restart_index"`
}

// SimplifyConfig holds mesh simplification settings.
type SimplifyConfig struct {
	Ratio       float32 `yaml:"ratio"`
	TargetError float32 `yaml:"target_error"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			FIFOSize: 0,
		},
		Overdraw: OverdrawConfig{
			Enabled:   true,
			Threshold: 1.05,
		},
		Meshlets: MeshletConfig{
			MaxVertices:  64,
			MaxTriangles: 126,
			ConeWeight:   0,
			Scan:         false,
		},
		Strip: StripConfig{
			RestartIndex: 0xffffffff,
		},
		Simplify: SimplifyConfig{
			Ratio:       0.5,
			TargetError: 0.01,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks that all settings are in range before a pipeline run.
func (c *Config) Validate() error {
	if c.Cache.FIFOSize != 0 && (c.Cache.FIFOSize < 3 || c.Cache.FIFOSize > 64) {
		return fmt.Errorf("cache.fifo_size %d not in [3, 64]", c.Cache.FIFOSize)
	}
	if c.Overdraw.Enabled && c.Overdraw.Threshold < 1 {
		return fmt.Errorf("overdraw.threshold %v must be at least 1", c.Overdraw.Threshold)
	}
	if c.Meshlets.MaxVertices < 3 || c.Meshlets.MaxVertices > 255 {
		return fmt.Errorf("meshlets.max_vertices %d not in [3, 255]", c.Meshlets.MaxVertices)
	}
	if c.Meshlets.MaxTriangles < 1 || c.Meshlets.MaxTriangles > 512 {
		return fmt.Errorf("meshlets.max_triangles %d not in [1, 512]", c.Meshlets.MaxTriangles)
	}
	if c.Meshlets.ConeWeight < 0 || c.Meshlets.ConeWeight > 1 {
		return fmt.Errorf("meshlets.cone_weight %v not in [0, 1]", c.Meshlets.ConeWeight)
	}
	if c.Simplify.Ratio <= 0 || c.Simplify.Ratio > 1 {
		return fmt.Errorf("simplify.ratio %v not in (0, 1]", c.Simplify.Ratio)
	}
	if c.Simplify.TargetError < 0 {
		return fmt.Errorf("simplify.target_error %v must not be negative", c.Simplify.TargetError)
	}
	return nil
}
