package slab

import (
	"sort"
	"unsafe"

	"github.com/standardbeagle/symindex/internal/types"
)

var (
	refSize = int(unsafe.Sizeof(types.Ref{}))
	idSize  = int(unsafe.Sizeof(types.SymbolID{}))
)

// RefFilter restricts which occurrences a RefBuilder keeps.
type RefFilter struct {
	// Kinds selects occurrence kinds. RefUnknown (zero) keeps every kind.
	Kinds types.RefKind
	// IDs, when non-nil, is an allow-list of referenced symbols.
	IDs map[types.SymbolID]struct{}
}

// Allows reports whether an occurrence of id with the given kind passes.
func (f RefFilter) Allows(id types.SymbolID, kind types.RefKind) bool {
	if f.Kinds != types.RefUnknown && !kind.Matches(f.Kinds) {
		return false
	}
	if f.IDs != nil {
		if _, ok := f.IDs[id]; !ok {
			return false
		}
	}
	return true
}

// RefSlab is a frozen mapping from symbol ID to its occurrences. Within one
// ID, occurrences keep insertion order.
type RefSlab struct {
	ids   []types.SymbolID // sorted
	refs  map[types.SymbolID][]types.Ref
	count int
	bytes int
}

// Len returns the total number of occurrences. A nil slab is empty.
func (s *RefSlab) Len() int {
	if s == nil {
		return 0
	}
	return s.count
}

// IDs returns the referenced symbol IDs in order. The slice must not be modified.
func (s *RefSlab) IDs() []types.SymbolID {
	if s == nil {
		return nil
	}
	return s.ids
}

// Find returns the occurrences of id. The slice must not be modified.
func (s *RefSlab) Find(id types.SymbolID) []types.Ref {
	if s == nil {
		return nil
	}
	return s.refs[id]
}

// Bytes approximates the memory held by the slab, strings included.
func (s *RefSlab) Bytes() int {
	if s == nil {
		return 0
	}
	return s.bytes
}

// RefBuilder accumulates occurrences for a RefSlab. It is not safe for
// concurrent use.
type RefBuilder struct {
	filter  RefFilter
	refs    map[types.SymbolID][]types.Ref
	count   int
	strings *stringPool
}

// NewRefBuilder returns an empty builder that keeps only occurrences allowed
// by filter. The zero RefFilter keeps everything.
func NewRefBuilder(filter RefFilter) *RefBuilder {
	return &RefBuilder{
		filter:  filter,
		refs:    make(map[types.SymbolID][]types.Ref),
		strings: newStringPool(),
	}
}

// Insert records one occurrence of id and reports whether the filter kept it.
func (b *RefBuilder) Insert(id types.SymbolID, ref types.Ref) bool {
	if !b.filter.Allows(id, ref.Kind) {
		return false
	}
	ref.Location.FileURI = b.strings.intern(ref.Location.FileURI)
	b.refs[id] = append(b.refs[id], ref)
	b.count++
	return true
}

// Len returns the number of occurrences inserted so far.
func (b *RefBuilder) Len() int {
	return b.count
}

// Build freezes the occurrences into a slab. The builder is reset and may be
// reused with the same filter.
func (b *RefBuilder) Build() *RefSlab {
	ids := make([]types.SymbolID, 0, len(b.refs))
	bytes := b.strings.bytes
	for id, refs := range b.refs {
		ids = append(ids, id)
		bytes += idSize + cap(refs)*refSize
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	slab := &RefSlab{
		ids:   ids,
		refs:  b.refs,
		count: b.count,
		bytes: bytes + cap(ids)*idSize,
	}

	b.refs = make(map[types.SymbolID][]types.Ref)
	b.count = 0
	b.strings = newStringPool()
	return slab
}
