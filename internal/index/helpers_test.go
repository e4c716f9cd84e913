package index

import (
	"github.com/standardbeagle/symindex/internal/idcodec"
	"github.com/standardbeagle/symindex/internal/slab"
	"github.com/standardbeagle/symindex/internal/types"
)

func testSymbol(usr, scope, name string) types.Symbol {
	return types.Symbol{
		ID:    idcodec.FromUSR(usr),
		Name:  name,
		Scope: scope,
		Kind:  types.KindFunction,
		Flags: types.FlagIndexedForCodeCompletion,
	}
}

func symbolSlab(syms ...types.Symbol) *slab.SymbolSlab {
	b := slab.NewSymbolBuilder()
	for _, s := range syms {
		b.Insert(s)
	}
	return b.Build()
}

type idRef struct {
	id  types.SymbolID
	ref types.Ref
}

func refSlab(refs ...idRef) *slab.RefSlab {
	b := slab.NewRefBuilder(slab.RefFilter{})
	for _, r := range refs {
		b.Insert(r.id, r.ref)
	}
	return b.Build()
}

func refAt(id types.SymbolID, file string, line uint32, kind types.RefKind) idRef {
	return idRef{id: id, ref: types.Ref{
		Location: types.Location{
			FileURI: file,
			Start:   types.Position{Line: line, Column: 0},
			End:     types.Position{Line: line, Column: 3},
		},
		Kind: kind,
	}}
}

func buildIndex(syms *slab.SymbolSlab, refs *slab.RefSlab) *MemIndex {
	m := NewMemIndex()
	if err := m.Build(NewSymbolSnapshot(1, syms), NewRefSnapshot(1, refs)); err != nil {
		panic(err)
	}
	return m
}

func findNames(idx SymbolIndex, req FuzzyFindRequest) ([]string, bool) {
	var names []string
	more := idx.FuzzyFind(req, func(s *types.Symbol) {
		names = append(names, s.QualifiedName())
	})
	return names, more
}

func lookupNames(idx SymbolIndex, ids ...types.SymbolID) []string {
	var names []string
	idx.Lookup(LookupRequest{IDs: ids}, func(s *types.Symbol) {
		names = append(names, s.QualifiedName())
	})
	return names
}

func collectRefs(idx SymbolIndex, filter types.RefKind, ids ...types.SymbolID) []types.Ref {
	var refs []types.Ref
	idx.Refs(RefsRequest{IDs: ids, Filter: filter}, func(r types.Ref) {
		refs = append(refs, r)
	})
	return refs
}
