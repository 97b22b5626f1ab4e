// Package config loads the optional importer configuration file (HCL).
//
//	store {
//	  page_size    = 65536
//	  synchronous  = "OFF"
//	  journal_mode = "MEMORY"
//	}
//	assets {
//	  strategy = "pooled"
//	  workers  = 4
//	}
//	log {
//	  level = "info"
//	}
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/rs/zerolog"
)

// Asset read strategies.
const (
	StrategyBuffered = "buffered"
	StrategyMmap     = "mmap"
	StrategyPooled   = "pooled"
)

type Config struct {
	Store  *Store  `hcl:"store,block"`
	Assets *Assets `hcl:"assets,block"`
	Log    *Log    `hcl:"log,block"`
}

// Store holds the tuning pragmas for a bulk, single-writer build.
type Store struct {
	PageSize    int    `hcl:"page_size,optional"`
	Synchronous string `hcl:"synchronous,optional"`
	JournalMode string `hcl:"journal_mode,optional"`
}

type Assets struct {
	Strategy string `hcl:"strategy,optional"`
	Workers  int    `hcl:"workers,optional"`
}

type Log struct {
	Level string `hcl:"level,optional"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: &Store{
			PageSize:    65536,
			Synchronous: "OFF",
			JournalMode: "MEMORY",
		},
		Assets: &Assets{
			Strategy: StrategyBuffered,
			Workers:  4,
		},
		Log: &Log{Level: "info"},
	}
}

// Load reads filename, fills unset fields from Default and validates the
// result. An empty filename returns the defaults.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}
	var cfg Config
	if err := hclsimple.DecodeFile(filename, nil, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", filename, err)
	}
	return finish(&cfg)
}

// Parse decodes HCL source; filename is only used in diagnostics.
func Parse(filename string, src []byte) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, src, nil, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", filename, err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	def := Default()
	if cfg.Store == nil {
		cfg.Store = def.Store
	}
	if cfg.Store.PageSize == 0 {
		cfg.Store.PageSize = def.Store.PageSize
	}
	if cfg.Store.Synchronous == "" {
		cfg.Store.Synchronous = def.Store.Synchronous
	}
	if cfg.Store.JournalMode == "" {
		cfg.Store.JournalMode = def.Store.JournalMode
	}
	if cfg.Assets == nil {
		cfg.Assets = def.Assets
	}
	if cfg.Assets.Strategy == "" {
		cfg.Assets.Strategy = def.Assets.Strategy
	}
	if cfg.Assets.Workers == 0 {
		cfg.Assets.Workers = def.Assets.Workers
	}
	if cfg.Log == nil {
		cfg.Log = def.Log
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside an import.
func (c *Config) Validate() error {
	if !slices.Contains([]string{StrategyBuffered, StrategyMmap, StrategyPooled}, c.Assets.Strategy) {
		return fmt.Errorf("assets.strategy %q: want %s, %s or %s",
			c.Assets.Strategy, StrategyBuffered, StrategyMmap, StrategyPooled)
	}
	if c.Assets.Workers < 1 {
		return fmt.Errorf("assets.workers must be positive, got %d", c.Assets.Workers)
	}
	// SQLite accepts powers of two between 512 and 65536.
	if ps := c.Store.PageSize; ps < 512 || ps > 65536 || ps&(ps-1) != 0 {
		return fmt.Errorf("store.page_size %d: want a power of two in [512, 65536]", ps)
	}
	switch strings.ToUpper(c.Store.Synchronous) {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("store.synchronous %q: want OFF, NORMAL, FULL or EXTRA", c.Store.Synchronous)
	}
	switch strings.ToUpper(c.Store.JournalMode) {
	case "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF":
	default:
		return fmt.Errorf("store.journal_mode %q is not a SQLite journal mode", c.Store.JournalMode)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
