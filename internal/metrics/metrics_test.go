package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/symindex/internal/idcodec"
	"github.com/standardbeagle/symindex/internal/index"
	"github.com/standardbeagle/symindex/internal/slab"
	"github.com/standardbeagle/symindex/internal/types"
)

func sampleIndex(t *testing.T) *index.MemIndex {
	t.Helper()
	foo := types.Symbol{
		ID: idcodec.FromUSR("c:@S@Foo"), Name: "Foo", Kind: types.KindClass,
		Flags:      types.FlagIndexedForCodeCompletion,
		Definition: types.Location{FileURI: "file:///a.cc", Start: types.Position{Line: 1}},
	}
	bar := types.Symbol{ID: idcodec.FromUSR("c:@F@bar"), Name: "bar", Scope: "ns::", Kind: types.KindFunction}
	baz := types.Symbol{ID: idcodec.FromUSR("c:@F@baz"), Name: "baz", Scope: "ns::", Kind: types.KindFunction}

	sb := slab.NewSymbolBuilder()
	sb.Insert(foo)
	sb.Insert(bar)
	sb.Insert(baz)

	rb := slab.NewRefBuilder(slab.RefFilter{})
	for line := uint32(1); line <= 3; line++ {
		rb.Insert(foo.ID, types.Ref{Location: types.Location{FileURI: "file:///b.cc", Start: types.Position{Line: line}}, Kind: types.RefReference})
	}
	rb.Insert(bar.ID, types.Ref{Location: types.Location{FileURI: "file:///b.cc", Start: types.Position{Line: 9}}, Kind: types.RefReference})
	rb.Insert(idcodec.FromUSR("c:@F@gone"), types.Ref{Location: types.Location{FileURI: "file:///c.cc"}, Kind: types.RefReference})

	m := index.NewMemIndex()
	require.NoError(t, m.Build(index.NewSymbolSnapshot(7, sb.Build()), index.NewRefSnapshot(7, rb.Build())))
	return m
}

func TestIndexStats(t *testing.T) {
	m := sampleIndex(t)
	stats := NewIndexStats()
	stats.CalculateFromGeneration(m.Snapshot())

	assert.Equal(t, uint64(7), stats.Version)
	assert.Equal(t, int64(3), stats.TotalSymbols)
	assert.Equal(t, int64(1), stats.TotalDefinitions)
	assert.Equal(t, int64(1), stats.CompletionEligible)
	assert.Equal(t, int64(2), stats.ScopeCount)
	assert.Equal(t, map[string]int64{"class": 1, "function": 2}, stats.SymbolDistribution)
	assert.Equal(t, int64(5), stats.TotalReferences)
	assert.Equal(t, int64(3), stats.ReferencedIDs)
	assert.Equal(t, int64(3), stats.MaxReferencesPerSymbol)
	assert.Equal(t, int64(1), stats.OrphanSymbols)
	assert.Equal(t, int64(1), stats.DanglingReferenceIDs)
	assert.Greater(t, stats.MemoryBytes, int64(0))

	text := stats.FormatAsText()
	assert.Contains(t, text, "function:")
	assert.Less(t, strings.Index(text, "function:"), strings.Index(text, "class:"), "kinds sorted by count")

	js := stats.FormatAsJSON()
	assert.Equal(t, int64(3), js["symbols"].(map[string]interface{})["total"])
}

func TestMergeCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewMergeCollector(reg)

	c.ShardLoaded("a.yaml", 10, 2)
	c.ShardLoaded("b.yaml", 5, 0)
	c.ShardFailed("c.yaml", errors.New("bad"))
	c.SymbolsFolded(10, 0)
	c.SymbolsFolded(3, 2)
	c.MergeFinished(150*time.Millisecond, 13, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.shardsTotal.WithLabelValues("loaded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.shardsTotal.WithLabelValues("failed")))
	assert.Equal(t, 13.0, testutil.ToFloat64(c.symbolsTotal.WithLabelValues("added")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.symbolsTotal.WithLabelValues("duplicate")))
	assert.Equal(t, 13.0, testutil.ToFloat64(c.mergedSymbols))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.mergedRefs))
	assert.Equal(t, 1, testutil.CollectAndCount(c.mergeDuration))

	// A second collector on the same registry is a programming error.
	assert.Panics(t, func() { NewMergeCollector(reg) })
}

func TestWatchCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewWatchCollector(reg)

	c.BatchApplied(3, 5*time.Millisecond)
	c.BatchApplied(1, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.batchesTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.eventsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(c.batchDuration))
}

func TestRegisterIndexGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := sampleIndex(t)
	RegisterIndexGauges(reg, m)

	expected := `
# HELP symindex_index_symbols Unique symbols in the installed generation
# TYPE symindex_index_symbols gauge
symindex_index_symbols 3
# HELP symindex_index_refs Unique references in the installed generation
# TYPE symindex_index_refs gauge
symindex_index_refs 5
# HELP symindex_index_generation Aggregator version of the installed generation
# TYPE symindex_index_generation gauge
symindex_index_generation 7
# HELP symindex_index_builds_total Generations installed since start
# TYPE symindex_index_builds_total counter
symindex_index_builds_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"symindex_index_symbols", "symindex_index_refs", "symindex_index_generation", "symindex_index_builds_total"))

	// Gauges follow newly installed generations.
	require.NoError(t, m.Build(index.NewSymbolSnapshot(8), index.NewRefSnapshot(8)))
	count, err := testutil.GatherAndCount(reg, "symindex_index_symbols")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 0, m.Snapshot().SymbolCount())
}
