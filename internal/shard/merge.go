package shard

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/symindex/internal/debug"
	ierrors "github.com/standardbeagle/symindex/internal/errors"
	"github.com/standardbeagle/symindex/internal/slab"
	"github.com/standardbeagle/symindex/internal/types"
)

// DefaultPattern selects shard files during a merge.
const DefaultPattern = "**/*.yaml"

// MergeObserver receives progress events from Merge. Calls may come from
// several goroutines at once.
type MergeObserver interface {
	ShardLoaded(path string, symbols, refs int)
	ShardFailed(path string, err error)
	SymbolsFolded(added, duplicates int)
	MergeFinished(elapsed time.Duration, symbols, refs int)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) ShardLoaded(string, int, int)          {}
func (NopObserver) ShardFailed(string, error)             {}
func (NopObserver) SymbolsFolded(int, int)                {}
func (NopObserver) MergeFinished(time.Duration, int, int) {}

// MergeOptions configures Merge.
type MergeOptions struct {
	// Workers bounds the number of shards parsed at once. Zero or negative
	// means runtime.NumCPU().
	Workers int
	// Pattern is a doublestar glob matched against paths relative to the
	// shard directory. Empty means DefaultPattern.
	Pattern string
	// Filter restricts the references kept from each shard.
	Filter slab.RefFilter
	// Observer receives progress events. Nil means NopObserver.
	Observer MergeObserver
}

// MergeResult is the outcome of a merge.
type MergeResult struct {
	Symbols    *slab.SymbolSlab
	Refs       *slab.RefSlab
	Shards     int // shard files found
	Loaded     int // shard files folded
	Duplicates int // symbols dropped because an earlier shard had the ID
	Skipped    *ierrors.MultiError
}

type ordSymbol struct {
	ordinal int
	sym     types.Symbol
}

type ordRef struct {
	ordinal int
	ref     types.Ref
}

// accumulator is the shared fold target. Shards are ranked by their position
// in the sorted file list; on an ID conflict the lowest rank wins no matter
// which worker finishes first, so repeated merges agree.
type accumulator struct {
	mu         sync.Mutex
	symbols    map[types.SymbolID]ordSymbol
	refs       map[types.SymbolID][]ordRef
	duplicates int
	loaded     int
}

func (a *accumulator) fold(ordinal int, s *Shard) (added, duplicates int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s.Symbols.Range(func(sym *types.Symbol) bool {
		prev, exists := a.symbols[sym.ID]
		switch {
		case !exists:
			added++
		case ordinal < prev.ordinal:
			duplicates++
		default:
			duplicates++
			return true
		}
		a.symbols[sym.ID] = ordSymbol{ordinal: ordinal, sym: *sym}
		return true
	})
	for _, id := range s.Refs.IDs() {
		for _, r := range s.Refs.Find(id) {
			a.refs[id] = append(a.refs[id], ordRef{ordinal: ordinal, ref: r})
		}
	}
	a.duplicates += duplicates
	a.loaded++
	return added, duplicates
}

// Merge reads every shard under dir that matches opts.Pattern, folds them
// into one deduplicated symbol and reference set and, if output is not
// empty, writes the result there. Shards are parsed concurrently on a
// bounded worker pool.
//
// A shard that cannot be read or parsed is logged, reported to the observer
// and listed in MergeResult.Skipped; it never fails the merge. The output
// is written only after every shard has been folded; a write failure is
// returned as *errors.FileError together with the in-memory result.
func Merge(ctx context.Context, dir, output string, opts MergeOptions) (*MergeResult, error) {
	start := time.Now()
	obs := opts.Observer
	if obs == nil {
		obs = NopObserver{}
	}

	paths, err := ListShards(dir, opts.Pattern, output)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	debug.LogMerge("merging %d shards from %s with %d workers\n", len(paths), dir, workers)

	acc := &accumulator{
		symbols: make(map[types.SymbolID]ordSymbol),
		refs:    make(map[types.SymbolID][]ordRef),
	}
	failures := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := Read(path, opts.Filter)
			if err != nil {
				log.Printf("symindex: skipping shard %s: %v", path, err)
				obs.ShardFailed(path, err)
				failures[i] = err
				return nil
			}
			obs.ShardLoaded(path, s.Symbols.Len(), s.Refs.Len())
			added, dups := acc.fold(i, s)
			obs.SymbolsFolded(added, dups)
			debug.LogMerge("folded %s: %d new, %d duplicate\n", path, added, dups)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, ierrors.NewMergeError("fold", err)
	}

	result := acc.result(len(paths), failures)
	obs.MergeFinished(time.Since(start), result.Symbols.Len(), result.Refs.Len())

	if output != "" {
		if err := WriteFile(output, result.Symbols, result.Refs); err != nil {
			return result, err
		}
		debug.LogMerge("wrote %d symbols to %s\n", result.Symbols.Len(), output)
	}
	return result, nil
}

// result freezes the accumulator. It must be called after all folds.
func (a *accumulator) result(shards int, failures []error) *MergeResult {
	ids := make([]types.SymbolID, 0, len(a.symbols))
	for id := range a.symbols {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	sb := slab.NewSymbolBuilder()
	for _, id := range ids {
		sym := a.symbols[id].sym
		sym.Origin |= types.OriginMerge
		sb.Insert(sym)
	}

	rb := slab.NewRefBuilder(slab.RefFilter{})
	refIDs := make([]types.SymbolID, 0, len(a.refs))
	for id := range a.refs {
		refIDs = append(refIDs, id)
	}
	sort.Slice(refIDs, func(i, j int) bool { return refIDs[i].Less(refIDs[j]) })
	for _, id := range refIDs {
		refs := a.refs[id]
		// Shard rank first, then each shard's own order.
		sort.SliceStable(refs, func(i, j int) bool { return refs[i].ordinal < refs[j].ordinal })
		seen := make(map[types.Location]struct{}, len(refs))
		for _, r := range refs {
			if _, dup := seen[r.ref.Location]; dup {
				continue
			}
			seen[r.ref.Location] = struct{}{}
			rb.Insert(id, r.ref)
		}
	}

	return &MergeResult{
		Symbols:    sb.Build(),
		Refs:       rb.Build(),
		Shards:     shards,
		Loaded:     a.loaded,
		Duplicates: a.duplicates,
		Skipped:    ierrors.NewMultiError(failures),
	}
}

// ListShards returns the files under dir whose slash-separated relative path
// matches pattern, sorted. The file exclude (typically the merge output) is
// never listed.
func ListShards(dir, pattern, exclude string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, ierrors.NewConfigError("merge.pattern", pattern, doublestar.ErrBadPattern)
	}

	var excludeAbs string
	if exclude != "" {
		if abs, err := filepath.Abs(exclude); err == nil {
			excludeAbs = abs
		}
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		matched, err := doublestar.Match(pattern, filepath.ToSlash(rel))
		if err != nil || !matched {
			return err
		}
		if excludeAbs != "" {
			if abs, err := filepath.Abs(path); err == nil && abs == excludeAbs {
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, ierrors.NewFileError("list", dir, fmt.Errorf("walk shard directory: %w", err))
	}
	sort.Strings(paths)
	return paths, nil
}
