package shard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/standardbeagle/symindex/internal/errors"
	"github.com/standardbeagle/symindex/internal/idcodec"
	"github.com/standardbeagle/symindex/internal/slab"
	"github.com/standardbeagle/symindex/internal/types"
)

type recordingObserver struct {
	mu         sync.Mutex
	loaded     []string
	failed     []string
	added      int
	duplicates int
	finished   int
}

func (r *recordingObserver) ShardLoaded(path string, symbols, refs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = append(r.loaded, filepath.Base(path))
}

func (r *recordingObserver) ShardFailed(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, filepath.Base(path))
}

func (r *recordingObserver) SymbolsFolded(added, duplicates int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added += added
	r.duplicates += duplicates
}

func (r *recordingObserver) MergeFinished(elapsed time.Duration, symbols, refs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
}

func writeShard(t *testing.T, path string, syms []types.Symbol, refs map[types.SymbolID][]types.Ref) {
	t.Helper()
	sb := slab.NewSymbolBuilder()
	for _, s := range syms {
		sb.Insert(s)
	}
	rb := slab.NewRefBuilder(slab.RefFilter{})
	for id, rs := range refs {
		for _, r := range rs {
			rb.Insert(id, r)
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, WriteFile(path, sb.Build(), rb.Build()))
}

// shardDir lays out:
//
//	a.yaml      Shared (from a), OnlyA
//	b.yaml      Shared (from b), OnlyB, ref to Shared
//	sub/c.yaml  OnlyC, the same ref to Shared plus one more
//	broken.yaml not a shard
//	notes.txt   ignored by the pattern
func shardDir(t *testing.T) string {
	dir := t.TempDir()
	shared := idcodec.FromUSR("c:@F@shared")

	writeShard(t, filepath.Join(dir, "a.yaml"), []types.Symbol{
		{ID: shared, Name: "Shared", Scope: "a::", Origin: types.OriginStatic},
		{ID: idcodec.FromUSR("c:@F@onlyA"), Name: "OnlyA"},
	}, nil)
	writeShard(t, filepath.Join(dir, "b.yaml"), []types.Symbol{
		{ID: shared, Name: "Shared", Scope: "b::"},
		{ID: idcodec.FromUSR("c:@F@onlyB"), Name: "OnlyB"},
	}, map[types.SymbolID][]types.Ref{
		shared: {{Location: loc("file:///b.cc", 4), Kind: types.RefReference}},
	})
	writeShard(t, filepath.Join(dir, "sub", "c.yaml"), []types.Symbol{
		{ID: idcodec.FromUSR("c:@F@onlyC"), Name: "OnlyC"},
	}, map[types.SymbolID][]types.Ref{
		shared: {
			{Location: loc("file:///b.cc", 4), Kind: types.RefReference},
			{Location: loc("file:///c.cc", 8), Kind: types.RefReference},
		},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("symbols: ["), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644))
	return dir
}

func TestMerge(t *testing.T) {
	dir := shardDir(t)
	out := filepath.Join(t.TempDir(), "merged.yaml")
	obs := &recordingObserver{}

	res, err := Merge(context.Background(), dir, out, MergeOptions{Workers: 2, Observer: obs})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Shards)
	assert.Equal(t, 3, res.Loaded)
	assert.Equal(t, 1, res.Duplicates)
	require.Len(t, res.Skipped.Errors, 1)
	var pe *ierrors.ParseError
	assert.True(t, errors.As(res.Skipped.Errors[0], &pe))

	assert.Equal(t, 4, res.Symbols.Len())
	shared, ok := res.Symbols.Find(idcodec.FromUSR("c:@F@shared"))
	require.True(t, ok)
	assert.Equal(t, "a::", shared.Scope, "the first shard in path order wins")
	assert.Equal(t, types.OriginStatic|types.OriginMerge, shared.Origin)

	refs := res.Refs.Find(idcodec.FromUSR("c:@F@shared"))
	require.Len(t, refs, 2, "identical locations are folded")
	assert.Equal(t, "file:///b.cc", refs[0].Location.FileURI)
	assert.Equal(t, "file:///c.cc", refs[1].Location.FileURI)

	assert.ElementsMatch(t, []string{"a.yaml", "b.yaml", "c.yaml"}, obs.loaded)
	assert.Equal(t, []string{"broken.yaml"}, obs.failed)
	assert.Equal(t, 4, obs.added)
	assert.Equal(t, 1, obs.duplicates)
	assert.Equal(t, 1, obs.finished)

	written, err := Read(out, slab.RefFilter{})
	require.NoError(t, err)
	assert.Equal(t, res.Symbols.Len(), written.Symbols.Len())
	assert.Equal(t, res.Refs.Len(), written.Refs.Len())
}

func TestMerge_Deterministic(t *testing.T) {
	dir := shardDir(t)
	outDir := t.TempDir()

	var outputs [][]byte
	for _, workers := range []int{1, 2, 8, 1} {
		out := filepath.Join(outDir, "merged.yaml")
		_, err := Merge(context.Background(), dir, out, MergeOptions{Workers: workers})
		require.NoError(t, err)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		outputs = append(outputs, data)
	}
	for i := 1; i < len(outputs); i++ {
		assert.Equal(t, string(outputs[0]), string(outputs[i]))
	}
}

func TestMerge_OutputInsideShardDirIsIgnored(t *testing.T) {
	dir := shardDir(t)
	out := filepath.Join(dir, "merged.yaml")

	first, err := Merge(context.Background(), dir, out, MergeOptions{})
	require.NoError(t, err)
	second, err := Merge(context.Background(), dir, out, MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, first.Shards, second.Shards)
}

func TestMerge_Pattern(t *testing.T) {
	dir := shardDir(t)

	res, err := Merge(context.Background(), dir, "", MergeOptions{Pattern: "sub/**/*.yaml"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Shards)
	assert.Equal(t, 1, res.Symbols.Len())

	_, err = Merge(context.Background(), dir, "", MergeOptions{Pattern: "[unclosed"})
	var ce *ierrors.ConfigError
	assert.True(t, errors.As(err, &ce))
}

func TestMerge_WriteFailureKeepsResult(t *testing.T) {
	dir := shardDir(t)
	out := filepath.Join(t.TempDir(), "missing", "merged.yaml")

	res, err := Merge(context.Background(), dir, out, MergeOptions{})
	var fe *ierrors.FileError
	require.True(t, errors.As(err, &fe))
	require.NotNil(t, res)
	assert.Equal(t, 4, res.Symbols.Len())
}

func TestMerge_EmptyAndMissingDir(t *testing.T) {
	res, err := Merge(context.Background(), t.TempDir(), "", MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Symbols.Len())
	assert.NoError(t, res.Skipped.ErrorOrNil())

	_, err = Merge(context.Background(), filepath.Join(t.TempDir(), "nope"), "", MergeOptions{})
	var fe *ierrors.FileError
	assert.True(t, errors.As(err, &fe))
}

func TestMerge_Canceled(t *testing.T) {
	dir := shardDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Merge(ctx, dir, "", MergeOptions{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
