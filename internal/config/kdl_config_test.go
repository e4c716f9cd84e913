package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/standardbeagle/symindex/internal/errors"
	"github.com/standardbeagle/symindex/internal/fuzzy"
)

func TestParseKDL_Defaults(t *testing.T) {
	cfg, err := parseKDL("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 100, cfg.Index.MaxResults)
	assert.Equal(t, "::", cfg.Index.ScopeSeparator)
	assert.Equal(t, fuzzy.DefaultQualityWeights(), cfg.Ranking)
	assert.Equal(t, "**/*.yaml", cfg.Merge.Pattern)
	assert.Equal(t, "merged.yaml", cfg.Merge.Output)
	assert.Equal(t, 200, cfg.Watch.DebounceMs)
}

func TestParseKDL_AllSections(t *testing.T) {
	kdlContent := `
index {
    max_results 25
}
ranking {
    reference_threshold 5
    macro_penalty 0.5
    deprecated_penalty 0.05
    implementation_detail_penalty 0.3
    dynamic_boost 2
}
merge {
    workers 4
    pattern "shards/**/*.yml"
    output "out/all.yaml"
}
watch {
    debounce_ms 50
    pattern "*.yaml"
}
serve {
    metrics_addr ":9090"
}
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Index.MaxResults)
	assert.Equal(t, uint32(5), cfg.Ranking.ReferenceThreshold)
	assert.Equal(t, 0.5, cfg.Ranking.MacroPenalty)
	assert.Equal(t, 0.05, cfg.Ranking.DeprecatedPenalty)
	assert.Equal(t, 0.3, cfg.Ranking.ImplementationDetailPenalty)
	assert.Equal(t, 2.0, cfg.Ranking.DynamicBoost, "integers are accepted for floats")
	assert.Equal(t, 4, cfg.Merge.Workers)
	assert.Equal(t, "shards/**/*.yml", cfg.Merge.Pattern)
	assert.Equal(t, "out/all.yaml", cfg.Merge.Output)
	assert.Equal(t, 50, cfg.Watch.DebounceMs)
	assert.Equal(t, "*.yaml", cfg.Watch.Pattern)
	assert.Equal(t, ":9090", cfg.Serve.MetricsAddr)
}

func TestParseKDL_PartialSectionKeepsDefaults(t *testing.T) {
	cfg, err := parseKDL(`ranking { macro_penalty 0.9 }`)
	require.NoError(t, err)

	want := fuzzy.DefaultQualityWeights()
	want.MacroPenalty = 0.9
	assert.Equal(t, want, cfg.Ranking)
}

func TestParseKDL_Invalid(t *testing.T) {
	_, err := parseKDL(`index {`)
	assert.Error(t, err)

	_, err = parseKDL(`ranking { reference_threshold -1 }`)
	assert.Error(t, err)
}

func TestLoad_PrefersKDL(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, KDLFileName), []byte(`index { max_results 7 }`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, TOMLFileName), []byte("[index]\nmax_results = 9\n"), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Index.MaxResults)
	assert.Equal(t, filepath.Join(dir, KDLFileName), cfg.Source)
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	content := `
[index]
max_results = 9

[ranking]
dynamic_boost = 1.5

[merge]
workers = 2
output = "all.yaml"

[watch]
debounce_ms = 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, TOMLFileName), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Index.MaxResults)
	assert.Equal(t, 1.5, cfg.Ranking.DynamicBoost)
	assert.Equal(t, 0.8, cfg.Ranking.MacroPenalty, "unset keys keep defaults")
	assert.Equal(t, 2, cfg.Merge.Workers)
	assert.Equal(t, "all.yaml", cfg.Merge.Output)
	assert.Equal(t, "**/*.yaml", cfg.Merge.Pattern)
	assert.Equal(t, 10, cfg.Watch.DebounceMs)
	assert.Equal(t, filepath.Join(dir, TOMLFileName), cfg.Source)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.Source)
	assert.Equal(t, 100, cfg.Index.MaxResults)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TOMLFileName), []byte("[index\n"), 0644))

	_, err := Load(dir)
	var ce *ierrors.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, TOMLFileName, ce.Field)

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, KDLFileName), []byte(`merge { workers -2 }`), 0644))
	_, err = Load(dir)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "merge.workers", ce.Field)
}
