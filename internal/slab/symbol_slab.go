// Package slab holds the immutable containers the index is built from.
//
// A slab is produced once by a Builder and never changes afterwards, so a
// *SymbolSlab or *RefSlab may be shared freely between goroutines. Updating a
// file means building a new slab and dropping the old one.
package slab

import (
	"sort"
	"unsafe"

	"github.com/standardbeagle/symindex/internal/types"
)

var symbolSize = int(unsafe.Sizeof(types.Symbol{}))

// SymbolSlab is a frozen set of symbols with unique IDs, ordered by ID.
type SymbolSlab struct {
	symbols []types.Symbol
	bytes   int
}

// Len returns the number of symbols. A nil slab is empty.
func (s *SymbolSlab) Len() int {
	if s == nil {
		return 0
	}
	return len(s.symbols)
}

// At returns the i'th symbol in ID order. The pointee must not be modified.
func (s *SymbolSlab) At(i int) *types.Symbol {
	return &s.symbols[i]
}

// Find returns the symbol with the given ID.
func (s *SymbolSlab) Find(id types.SymbolID) (*types.Symbol, bool) {
	if s == nil {
		return nil, false
	}
	i := sort.Search(len(s.symbols), func(i int) bool {
		return !s.symbols[i].ID.Less(id)
	})
	if i < len(s.symbols) && s.symbols[i].ID == id {
		return &s.symbols[i], true
	}
	return nil, false
}

// Range calls fn for each symbol in ID order until fn returns false.
func (s *SymbolSlab) Range(fn func(*types.Symbol) bool) {
	if s == nil {
		return
	}
	for i := range s.symbols {
		if !fn(&s.symbols[i]) {
			return
		}
	}
}

// Bytes approximates the memory held by the slab, strings included.
func (s *SymbolSlab) Bytes() int {
	if s == nil {
		return 0
	}
	return s.bytes
}

// SymbolBuilder accumulates symbols for a SymbolSlab.
// When two inserts share an ID the first one wins. A builder is not safe for
// concurrent use.
type SymbolBuilder struct {
	symbols []types.Symbol
	seen    map[types.SymbolID]struct{}
	strings *stringPool
}

// NewSymbolBuilder returns an empty builder.
func NewSymbolBuilder() *SymbolBuilder {
	return &SymbolBuilder{
		seen:    make(map[types.SymbolID]struct{}),
		strings: newStringPool(),
	}
}

// Insert adds sym unless a symbol with the same ID was inserted before.
// It reports whether sym was kept.
func (b *SymbolBuilder) Insert(sym types.Symbol) bool {
	if _, dup := b.seen[sym.ID]; dup {
		return false
	}
	b.seen[sym.ID] = struct{}{}

	sym.Name = b.strings.intern(sym.Name)
	sym.Scope = b.strings.intern(sym.Scope)
	sym.Declaration.FileURI = b.strings.intern(sym.Declaration.FileURI)
	sym.Definition.FileURI = b.strings.intern(sym.Definition.FileURI)
	b.symbols = append(b.symbols, sym)
	return true
}

// Len returns the number of symbols inserted so far.
func (b *SymbolBuilder) Len() int {
	return len(b.symbols)
}

// Build freezes the inserted symbols into a slab. The builder is reset and
// may be reused.
func (b *SymbolBuilder) Build() *SymbolSlab {
	symbols := b.symbols
	sort.Slice(symbols, func(i, j int) bool {
		return symbols[i].ID.Less(symbols[j].ID)
	})
	slab := &SymbolSlab{
		symbols: symbols,
		bytes:   cap(symbols)*symbolSize + b.strings.bytes,
	}

	b.symbols = nil
	b.seen = make(map[types.SymbolID]struct{})
	b.strings = newStringPool()
	return slab
}

// stringPool deduplicates the strings stored in one slab. Scopes and file
// URIs repeat heavily within a file.
type stringPool struct {
	pool  map[string]string
	bytes int
}

func newStringPool() *stringPool {
	return &stringPool{pool: make(map[string]string)}
}

func (p *stringPool) intern(s string) string {
	if s == "" {
		return s
	}
	if v, ok := p.pool[s]; ok {
		return v
	}
	p.pool[s] = s
	p.bytes += len(s)
	return s
}
