package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"

	ierrors "github.com/standardbeagle/symindex/internal/errors"
	"github.com/standardbeagle/symindex/internal/shard"
	"github.com/standardbeagle/symindex/internal/types"
)

// Validator validates configuration and sets defaults for unset fields
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies defaults
// Returns an *errors.ConfigError naming the first invalid field
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	v.setDefaults(cfg)

	if err := v.validateIndexConfig(&cfg.Index); err != nil {
		return err
	}
	if err := cfg.Ranking.Validate(); err != nil {
		return ierrors.NewConfigError("ranking", "", err)
	}
	if err := v.validateMergeConfig(&cfg.Merge); err != nil {
		return err
	}
	if err := v.validateWatchConfig(&cfg.Watch); err != nil {
		return err
	}
	return nil
}

func (v *Validator) setDefaults(cfg *Config) {
	if cfg.Index.ScopeSeparator == "" {
		cfg.Index.ScopeSeparator = types.ScopeSeparator
	}
	if cfg.Merge.Pattern == "" {
		cfg.Merge.Pattern = shard.DefaultPattern
	}
	if cfg.Merge.Output == "" {
		cfg.Merge.Output = DefaultMergeOutput
	}
	if cfg.Watch.Pattern == "" {
		cfg.Watch.Pattern = shard.DefaultPattern
	}
}

// validateIndexConfig validates index configuration
func (v *Validator) validateIndexConfig(index *Index) error {
	if index.MaxResults < 0 {
		return ierrors.NewConfigError("index.max_results", strconv.Itoa(index.MaxResults),
			errors.New("cannot be negative"))
	}
	if index.ScopeSeparator != types.ScopeSeparator {
		return ierrors.NewConfigError("index.scope_separator", index.ScopeSeparator,
			fmt.Errorf("only %q is supported", types.ScopeSeparator))
	}
	return nil
}

// validateMergeConfig validates merge configuration
func (v *Validator) validateMergeConfig(merge *Merge) error {
	// Workers: 0 means NumCPU
	if merge.Workers < 0 {
		return ierrors.NewConfigError("merge.workers", strconv.Itoa(merge.Workers),
			errors.New("cannot be negative"))
	}
	if !doublestar.ValidatePattern(merge.Pattern) {
		return ierrors.NewConfigError("merge.pattern", merge.Pattern, doublestar.ErrBadPattern)
	}
	return nil
}

// validateWatchConfig validates watch configuration
func (v *Validator) validateWatchConfig(watch *Watch) error {
	if watch.DebounceMs < 0 {
		return ierrors.NewConfigError("watch.debounce_ms", strconv.Itoa(watch.DebounceMs),
			errors.New("cannot be negative"))
	}
	if watch.DebounceMs > 60_000 {
		return ierrors.NewConfigError("watch.debounce_ms", strconv.Itoa(watch.DebounceMs),
			errors.New("should not exceed one minute"))
	}
	if !doublestar.ValidatePattern(watch.Pattern) {
		return ierrors.NewConfigError("watch.pattern", watch.Pattern, doublestar.ErrBadPattern)
	}
	return nil
}
