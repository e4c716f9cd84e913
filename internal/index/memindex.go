package index

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/standardbeagle/symindex/internal/debug"
	"github.com/standardbeagle/symindex/internal/fuzzy"
	"github.com/standardbeagle/symindex/internal/topk"
	"github.com/standardbeagle/symindex/internal/types"
)

var (
	// ErrStaleGeneration is returned by Build when a newer generation is
	// already installed.
	ErrStaleGeneration = errors.New("generation is older than the installed one")

	// ErrSnapshotMismatch is returned by Build when the symbol and reference
	// snapshots were taken at different aggregator versions.
	ErrSnapshotMismatch = errors.New("symbol and reference snapshots differ in version")
)

var (
	ptrSize = int(unsafe.Sizeof(uintptr(0)))
	idSize  = int(unsafe.Sizeof(types.SymbolID{}))
	refSize = int(unsafe.Sizeof(types.Ref{}))
)

// Option configures a MemIndex.
type Option func(*MemIndex)

// WithQualityWeights sets the ranking weights used by FuzzyFind.
func WithQualityWeights(w fuzzy.QualityWeights) Option {
	return func(m *MemIndex) {
		m.weights = w
	}
}

// MemIndex serves queries from one immutable Generation at a time. Build
// prepares the next generation without blocking readers and installs it with
// a single compare-and-swap. A reader that loaded a generation keeps using it
// for the whole call, even if a newer one is installed meanwhile.
type MemIndex struct {
	current atomic.Pointer[Generation]
	weights fuzzy.QualityWeights
	builds  atomic.Uint64
}

// NewMemIndex returns an index with an empty generation installed.
func NewMemIndex(opts ...Option) *MemIndex {
	m := &MemIndex{weights: fuzzy.DefaultQualityWeights()}
	for _, opt := range opts {
		opt(m)
	}
	m.current.Store(newGeneration(nil, nil, m.weights))
	return m
}

// Build replaces the installed generation with one built from syms and refs.
// Symbols are deduplicated by ID, first occurrence wins. Occurrences are
// deduplicated by (ID, location), first occurrence wins, and keep snapshot
// order otherwise.
//
// Build refuses snapshots from different aggregator versions and snapshots
// older than the installed generation.
func (m *MemIndex) Build(syms *SymbolSnapshot, refs *RefSnapshot) error {
	if syms.Version() != refs.Version() {
		return fmt.Errorf("%w: symbols %d, refs %d", ErrSnapshotMismatch, syms.Version(), refs.Version())
	}

	next := newGeneration(syms, refs, m.weights)

	for {
		old := m.current.Load()
		if next.version < old.version {
			debug.LogIndex("dropping generation %d, %d is installed\n", next.version, old.version)
			return fmt.Errorf("%w: %d < %d", ErrStaleGeneration, next.version, old.version)
		}
		if m.current.CompareAndSwap(old, next) {
			m.builds.Add(1)
			debug.LogIndex("installed generation %d: %d symbols, %d refs, %d bytes\n",
				next.version, len(next.symbols), next.refCount, next.bytes)
			return nil
		}
	}
}

// Snapshot returns the installed generation. The result is immutable and
// stays valid after later builds.
func (m *MemIndex) Snapshot() *Generation {
	return m.current.Load()
}

// Builds returns the number of generations installed so far.
func (m *MemIndex) Builds() uint64 {
	return m.builds.Load()
}

// FuzzyFind implements SymbolIndex against the installed generation.
func (m *MemIndex) FuzzyFind(req FuzzyFindRequest, fn func(*types.Symbol)) bool {
	return m.Snapshot().FuzzyFind(req, fn)
}

// Lookup implements SymbolIndex against the installed generation.
func (m *MemIndex) Lookup(req LookupRequest, fn func(*types.Symbol)) {
	m.Snapshot().Lookup(req, fn)
}

// Refs implements SymbolIndex against the installed generation.
func (m *MemIndex) Refs(req RefsRequest, fn func(types.Ref)) {
	m.Snapshot().Refs(req, fn)
}

// EstimateMemoryUsage implements SymbolIndex.
func (m *MemIndex) EstimateMemoryUsage() int {
	return m.Snapshot().EstimateMemoryUsage()
}

// Generation is one complete, immutable build of the index. It keeps the
// snapshots it was built from, and with them the backing slabs.
type Generation struct {
	version  uint64
	weights  fuzzy.QualityWeights
	symbols  []*types.Symbol // unique IDs, snapshot order
	byID     map[types.SymbolID]*types.Symbol
	refs     map[types.SymbolID][]types.Ref
	refCount int
	bytes    int

	symSnap *SymbolSnapshot
	refSnap *RefSnapshot
}

type refKey struct {
	id  types.SymbolID
	loc types.Location
}

func newGeneration(syms *SymbolSnapshot, refs *RefSnapshot, w fuzzy.QualityWeights) *Generation {
	g := &Generation{
		version: syms.Version(),
		weights: w,
		symbols: make([]*types.Symbol, 0, syms.Len()),
		byID:    make(map[types.SymbolID]*types.Symbol, syms.Len()),
		refs:    make(map[types.SymbolID][]types.Ref),
		symSnap: syms,
		refSnap: refs,
	}

	for _, sym := range syms.Symbols() {
		if _, dup := g.byID[sym.ID]; dup {
			continue
		}
		g.byID[sym.ID] = sym
		g.symbols = append(g.symbols, sym)
	}

	seen := make(map[refKey]struct{}, refs.Len())
	refs.Range(func(id types.SymbolID, ref types.Ref) bool {
		key := refKey{id: id, loc: ref.Location}
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		g.refs[id] = append(g.refs[id], ref)
		g.refCount++
		return true
	})

	// Backing slabs plus the lookup structures built over them.
	g.bytes = syms.Bytes() + refs.Bytes() +
		len(g.symbols)*ptrSize +
		len(g.byID)*(idSize+ptrSize) +
		len(g.refs)*(idSize+3*ptrSize) +
		g.refCount*refSize
	return g
}

// Version returns the aggregator version this generation was built from.
func (g *Generation) Version() uint64 {
	return g.version
}

// SymbolCount returns the number of unique symbols.
func (g *Generation) SymbolCount() int {
	return len(g.symbols)
}

// RefCount returns the number of unique occurrences.
func (g *Generation) RefCount() int {
	return g.refCount
}

// RangeSymbols calls fn for each symbol in generation order until fn
// returns false.
func (g *Generation) RangeSymbols(fn func(*types.Symbol) bool) {
	for _, sym := range g.symbols {
		if !fn(sym) {
			return
		}
	}
}

// RefCountFor returns the number of occurrences recorded for id.
func (g *Generation) RefCountFor(id types.SymbolID) int {
	return len(g.refs[id])
}

// RefIDs returns the number of distinct IDs that have occurrences.
func (g *Generation) RefIDs() int {
	return len(g.refs)
}

// FuzzyFind scores every symbol that passes the scope and completion filters
// and calls fn for the best req.Limit of them, best first. Equal scores keep
// generation order. It reports whether any match was dropped by the limit.
//
// FuzzyFind panics if req.Query contains the scope separator.
func (g *Generation) FuzzyFind(req FuzzyFindRequest, fn func(*types.Symbol)) bool {
	if strings.Contains(req.Query, types.ScopeSeparator) {
		panic(fmt.Sprintf("index: fuzzy query %q contains scope separator %q", req.Query, types.ScopeSeparator))
	}
	debug.LogQuery("fuzzy find %q scopes=%v any=%v limit=%d\n", req.Query, req.Scopes, req.AnyScope, req.Limit)

	var scopes map[string]struct{}
	if !req.AnyScope && len(req.Scopes) > 0 {
		scopes = make(map[string]struct{}, len(req.Scopes))
		for _, s := range req.Scopes {
			scopes[s] = struct{}{}
		}
	}

	matcher := fuzzy.NewMatcher(req.Query)
	top := topk.New[*types.Symbol](req.Limit)
	truncated := false

	for _, sym := range g.symbols {
		if scopes != nil {
			if _, ok := scopes[sym.Scope]; !ok {
				continue
			}
		}
		if req.RestrictForCodeCompletion && !sym.Flags.Has(types.FlagIndexedForCodeCompletion) {
			continue
		}
		match, ok := matcher.Match(sym.Name)
		if !ok {
			continue
		}
		if top.Push(sym, fuzzy.Score(match, sym, g.weights)) {
			truncated = true
		}
	}

	for _, sym := range top.Items() {
		fn(sym)
	}
	return truncated
}

// Lookup calls fn once for each distinct requested ID present in g.
func (g *Generation) Lookup(req LookupRequest, fn func(*types.Symbol)) {
	for _, id := range uniqueIDs(req.IDs) {
		if sym, ok := g.byID[id]; ok {
			fn(sym)
		}
	}
}

// Refs calls fn for each occurrence of each distinct requested ID whose kind
// matches req.Filter, in insertion order within an ID.
func (g *Generation) Refs(req RefsRequest, fn func(types.Ref)) {
	filter := req.filter()
	for _, id := range uniqueIDs(req.IDs) {
		for _, ref := range g.refs[id] {
			if ref.Kind.Matches(filter) {
				fn(ref)
			}
		}
	}
}

// EstimateMemoryUsage returns the approximate footprint of the generation.
func (g *Generation) EstimateMemoryUsage() int {
	return g.bytes
}

var (
	_ SymbolIndex = (*MemIndex)(nil)
	_ SymbolIndex = (*Generation)(nil)
)
