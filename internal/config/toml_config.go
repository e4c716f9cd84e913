package config

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"

	ierrors "github.com/standardbeagle/symindex/internal/errors"
)

// tomlConfig mirrors Config with the file's key names. It is filled from the
// defaults first so that absent keys keep their default values.
type tomlConfig struct {
	Version int `toml:"version"`
	Index   struct {
		MaxResults     int    `toml:"max_results"`
		ScopeSeparator string `toml:"scope_separator"`
	} `toml:"index"`
	Ranking struct {
		ReferenceThreshold          uint32  `toml:"reference_threshold"`
		MacroPenalty                float64 `toml:"macro_penalty"`
		DeprecatedPenalty           float64 `toml:"deprecated_penalty"`
		ImplementationDetailPenalty float64 `toml:"implementation_detail_penalty"`
		DynamicBoost                float64 `toml:"dynamic_boost"`
	} `toml:"ranking"`
	Merge struct {
		Workers int    `toml:"workers"`
		Pattern string `toml:"pattern"`
		Output  string `toml:"output"`
	} `toml:"merge"`
	Watch struct {
		DebounceMs int    `toml:"debounce_ms"`
		Pattern    string `toml:"pattern"`
	} `toml:"watch"`
	Serve struct {
		MetricsAddr string `toml:"metrics_addr"`
	} `toml:"serve"`
}

// LoadTOML loads .symindex.toml from dir. It returns nil, nil when the file
// does not exist.
func LoadTOML(dir string) (*Config, error) {
	path := configPath(dir, TOMLFileName)
	content, err := readIfExists(path)
	if err != nil {
		return nil, ierrors.NewFileError("read", path, err)
	}
	if content == nil {
		return nil, nil
	}

	cfg, err := parseTOML(content)
	if err != nil {
		return nil, ierrors.NewConfigError(TOMLFileName, path, err)
	}
	cfg.Source = path
	return cfg, nil
}

func parseTOML(content []byte) (*Config, error) {
	cfg := Default()

	var doc tomlConfig
	doc.Version = cfg.Version
	doc.Index.MaxResults = cfg.Index.MaxResults
	doc.Index.ScopeSeparator = cfg.Index.ScopeSeparator
	doc.Ranking.ReferenceThreshold = cfg.Ranking.ReferenceThreshold
	doc.Ranking.MacroPenalty = cfg.Ranking.MacroPenalty
	doc.Ranking.DeprecatedPenalty = cfg.Ranking.DeprecatedPenalty
	doc.Ranking.ImplementationDetailPenalty = cfg.Ranking.ImplementationDetailPenalty
	doc.Ranking.DynamicBoost = cfg.Ranking.DynamicBoost
	doc.Merge.Workers = cfg.Merge.Workers
	doc.Merge.Pattern = cfg.Merge.Pattern
	doc.Merge.Output = cfg.Merge.Output
	doc.Watch.DebounceMs = cfg.Watch.DebounceMs
	doc.Watch.Pattern = cfg.Watch.Pattern
	doc.Serve.MetricsAddr = cfg.Serve.MetricsAddr

	if err := toml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cfg.Version = doc.Version
	cfg.Index.MaxResults = doc.Index.MaxResults
	cfg.Index.ScopeSeparator = doc.Index.ScopeSeparator
	cfg.Ranking.ReferenceThreshold = doc.Ranking.ReferenceThreshold
	cfg.Ranking.MacroPenalty = doc.Ranking.MacroPenalty
	cfg.Ranking.DeprecatedPenalty = doc.Ranking.DeprecatedPenalty
	cfg.Ranking.ImplementationDetailPenalty = doc.Ranking.ImplementationDetailPenalty
	cfg.Ranking.DynamicBoost = doc.Ranking.DynamicBoost
	cfg.Merge.Workers = doc.Merge.Workers
	cfg.Merge.Pattern = doc.Merge.Pattern
	cfg.Merge.Output = doc.Merge.Output
	cfg.Watch.DebounceMs = doc.Watch.DebounceMs
	cfg.Watch.Pattern = doc.Watch.Pattern
	cfg.Serve.MetricsAddr = doc.Serve.MetricsAddr
	return cfg, nil
}
