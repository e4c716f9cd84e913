// Package config loads symindex settings from .symindex.kdl or
// .symindex.toml in a project directory.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/standardbeagle/symindex/internal/fuzzy"
	"github.com/standardbeagle/symindex/internal/shard"
	"github.com/standardbeagle/symindex/internal/types"
)

const (
	// KDLFileName is the primary configuration file.
	KDLFileName = ".symindex.kdl"
	// TOMLFileName is read when no KDL file exists.
	TOMLFileName = ".symindex.toml"

	DefaultMergeOutput     = "merged.yaml"
	DefaultWatchDebounceMs = 200
)

type Config struct {
	Version int
	Index   Index
	Ranking fuzzy.QualityWeights
	Merge   Merge
	Watch   Watch
	Serve   Serve

	// Source is the file the configuration was read from, empty for defaults.
	Source string
}

type Index struct {
	MaxResults     int    // fuzzy-find limit when the caller gives none
	ScopeSeparator string // informational; only "::" is supported
}

type Merge struct {
	Workers int    // 0 = NumCPU
	Pattern string // doublestar pattern relative to the shard directory
	Output  string
}

type Watch struct {
	DebounceMs int
	Pattern    string
}

type Serve struct {
	MetricsAddr string // empty disables the Prometheus endpoint
}

// Debounce returns the watcher debounce interval.
func (w Watch) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Index: Index{
			MaxResults:     types.DefaultMaxResults,
			ScopeSeparator: types.ScopeSeparator,
		},
		Ranking: fuzzy.DefaultQualityWeights(),
		Merge: Merge{
			Workers: 0,
			Pattern: shard.DefaultPattern,
			Output:  DefaultMergeOutput,
		},
		Watch: Watch{
			DebounceMs: DefaultWatchDebounceMs,
			Pattern:    shard.DefaultPattern,
		},
	}
}

// Load reads the configuration of dir. .symindex.kdl wins over
// .symindex.toml; with neither present the defaults are used. The result is
// validated.
func Load(dir string) (*Config, error) {
	cfg, err := LoadKDL(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		if cfg, err = LoadTOML(dir); err != nil {
			return nil, err
		}
	}
	if cfg == nil {
		cfg = Default()
	}

	if err := NewValidator().ValidateAndSetDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readIfExists returns nil content when path does not exist.
func readIfExists(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return content, err
}

func configPath(dir, name string) string {
	return filepath.Join(dir, name)
}
