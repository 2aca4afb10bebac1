// Package config provides the JSON run configuration for the simulator.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/gbasim/timing/cache"
)

// Defaults.
const (
	DefaultEntryPC   uint32 = 0x08000000
	DefaultExitPC    uint32 = 0x12341234
	DefaultMaxCycles uint64 = 100000
)

// RunConfig holds the settings for one simulation run.
type RunConfig struct {
	// EntryPC is the address of the first fetch. Default: cartridge ROM base.
	EntryPC uint32 `json:"entry_pc"`

	// ExitPC is the sentinel address; the run ends when the next fetch
	// address equals it. LR is seeded with this value. Default: 0x12341234.
	ExitPC uint32 `json:"exit_pc"`

	// MaxCycles bounds the run. Default: 100000.
	MaxCycles uint64 `json:"max_cycles"`

	// FetchCache configures the optional line cache in front of the bus.
	FetchCache CacheConfig `json:"fetch_cache"`

	// LogLevel is a logrus level name. Default: "info".
	LogLevel string `json:"log_level"`

	entrySet bool
}

// HasEntry reports whether the loaded file named entry_pc explicitly.
func (c *RunConfig) HasEntry() bool {
	return c.entrySet
}

// SetEntry sets EntryPC and marks it as explicit.
func (c *RunConfig) SetEntry(pc uint32) {
	c.EntryPC = pc
	c.entrySet = true
}

// CacheConfig is the JSON form of the line cache geometry.
type CacheConfig struct {
	Enabled       bool `json:"enabled"`
	Size          int  `json:"size"`
	Associativity int  `json:"associativity"`
	BlockSize     int  `json:"block_size"`
}

// Cache converts to the cache package's configuration.
func (c CacheConfig) Cache() cache.Config {
	return cache.Config{
		Size:          c.Size,
		Associativity: c.Associativity,
		BlockSize:     c.BlockSize,
	}
}

// Default returns a RunConfig with default values.
func Default() *RunConfig {
	geometry := cache.DefaultConfig()
	return &RunConfig{
		EntryPC:   DefaultEntryPC,
		ExitPC:    DefaultExitPC,
		MaxCycles: DefaultMaxCycles,
		FetchCache: CacheConfig{
			Enabled:       false,
			Size:          geometry.Size,
			Associativity: geometry.Associativity,
			BlockSize:     geometry.BlockSize,
		},
		LogLevel: "info",
	}
}

// LoadConfig loads a RunConfig from a JSON file. Fields missing from the
// file keep their defaults.
func LoadConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse run config: %w", err)
	}

	var present struct {
		EntryPC *uint32 `json:"entry_pc"`
	}
	if err := json.Unmarshal(data, &present); err != nil {
		return nil, fmt.Errorf("failed to parse run config: %w", err)
	}
	config.entrySet = present.EntryPC != nil

	return config, nil
}

// SaveConfig writes a RunConfig to a JSON file.
func (c *RunConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration can drive a run.
func (c *RunConfig) Validate() error {
	if c.MaxCycles == 0 {
		return fmt.Errorf("max_cycles must be > 0")
	}
	if c.EntryPC&3 != 0 {
		return fmt.Errorf("entry_pc 0x%08X must be word aligned", c.EntryPC)
	}
	if c.EntryPC == c.ExitPC {
		return fmt.Errorf("entry_pc and exit_pc must differ")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.FetchCache.Enabled {
		if err := c.FetchCache.Cache().Validate(); err != nil {
			return fmt.Errorf("fetch_cache: %w", err)
		}
	}
	return nil
}

// Level returns the parsed log level, falling back to Info.
func (c *RunConfig) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Clone returns a copy of the RunConfig.
func (c *RunConfig) Clone() *RunConfig {
	clone := *c
	return &clone
}
