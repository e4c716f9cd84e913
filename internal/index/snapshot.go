package index

import (
	"github.com/standardbeagle/symindex/internal/slab"
	"github.com/standardbeagle/symindex/internal/types"
)

// SymbolSnapshot is a flat view over the symbols of a set of slabs. It owns
// the slabs the pointers refer into, so the view stays valid for as long as
// the snapshot is reachable. IDs may repeat across slabs; consumers keep the
// first occurrence.
type SymbolSnapshot struct {
	version uint64
	symbols []*types.Symbol
	slabs   []*slab.SymbolSlab
}

// NewSymbolSnapshot builds a snapshot over slabs in the given order. Nil
// slabs are skipped.
func NewSymbolSnapshot(version uint64, slabs ...*slab.SymbolSlab) *SymbolSnapshot {
	total := 0
	for _, s := range slabs {
		total += s.Len()
	}
	snap := &SymbolSnapshot{
		version: version,
		symbols: make([]*types.Symbol, 0, total),
		slabs:   make([]*slab.SymbolSlab, 0, len(slabs)),
	}
	for _, s := range slabs {
		if s == nil {
			continue
		}
		snap.slabs = append(snap.slabs, s)
		s.Range(func(sym *types.Symbol) bool {
			snap.symbols = append(snap.symbols, sym)
			return true
		})
	}
	return snap
}

// Version is the aggregator version the snapshot was taken at.
func (s *SymbolSnapshot) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

// Symbols returns the flat symbol list. Neither the slice nor the symbols
// may be modified.
func (s *SymbolSnapshot) Symbols() []*types.Symbol {
	if s == nil {
		return nil
	}
	return s.symbols
}

// Len returns the number of entries, duplicates included.
func (s *SymbolSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.symbols)
}

// Bytes sums the backing bytes of the owned slabs.
func (s *SymbolSnapshot) Bytes() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, sl := range s.slabs {
		n += sl.Bytes()
	}
	return n
}

// RefSnapshot is the union of a set of reference slabs, kept in order.
type RefSnapshot struct {
	version uint64
	slabs   []*slab.RefSlab
}

// NewRefSnapshot builds a snapshot over slabs in the given order. Nil slabs
// are skipped.
func NewRefSnapshot(version uint64, slabs ...*slab.RefSlab) *RefSnapshot {
	snap := &RefSnapshot{
		version: version,
		slabs:   make([]*slab.RefSlab, 0, len(slabs)),
	}
	for _, s := range slabs {
		if s != nil {
			snap.slabs = append(snap.slabs, s)
		}
	}
	return snap
}

// Version is the aggregator version the snapshot was taken at.
func (s *RefSnapshot) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

// Len returns the total number of occurrences across slabs.
func (s *RefSnapshot) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, sl := range s.slabs {
		n += sl.Len()
	}
	return n
}

// Bytes sums the backing bytes of the owned slabs.
func (s *RefSnapshot) Bytes() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, sl := range s.slabs {
		n += sl.Bytes()
	}
	return n
}

// Range calls fn for every occurrence, slab by slab, in each slab's ID order
// and insertion order within an ID. It stops when fn returns false.
func (s *RefSnapshot) Range(fn func(id types.SymbolID, ref types.Ref) bool) {
	if s == nil {
		return
	}
	for _, sl := range s.slabs {
		for _, id := range sl.IDs() {
			for _, ref := range sl.Find(id) {
				if !fn(id, ref) {
					return
				}
			}
		}
	}
}
