package index

import (
	"errors"
	"fmt"

	"github.com/standardbeagle/symindex/internal/debug"
	ierrors "github.com/standardbeagle/symindex/internal/errors"
	"github.com/standardbeagle/symindex/internal/slab"
	"github.com/standardbeagle/symindex/internal/types"
)

// Unit is one parsed input handed to an Extractor. Its concrete type is
// agreed between the caller and the Extractor; the index never inspects it.
type Unit any

// Extractor turns a unit into the complete symbol and reference slabs of one
// file. It decides which declarations are eligible; the index takes the
// result as is.
type Extractor interface {
	Extract(path string, unit Unit) (*slab.SymbolSlab, *slab.RefSlab, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(path string, unit Unit) (*slab.SymbolSlab, *slab.RefSlab, error)

// Extract calls fn.
func (fn ExtractorFunc) Extract(path string, unit Unit) (*slab.SymbolSlab, *slab.RefSlab, error) {
	return fn(path, unit)
}

// FileIndex is a live index maintained file by file. Every update rebuilds
// the whole MemIndex generation from all known files, so the cost of one
// update is O(total symbols and references across all files).
type FileIndex struct {
	extractor Extractor
	files     *FileSymbols
	index     *MemIndex
}

// NewFileIndex creates an empty FileIndex. The options configure the
// underlying MemIndex.
func NewFileIndex(extractor Extractor, opts ...Option) *FileIndex {
	return &FileIndex{
		extractor: extractor,
		files:     NewFileSymbols(),
		index:     NewMemIndex(opts...),
	}
}

// Update extracts unit and installs it as the contribution of path. A nil
// unit retracts the file. On extraction failure the previous contribution of
// path is kept and an *errors.IndexingError is returned.
func (fi *FileIndex) Update(path string, unit Unit) error {
	if unit == nil {
		return fi.UpdateSlabs(path, nil, nil)
	}
	if fi.extractor == nil {
		return ierrors.NewIndexingError("extract", errors.New("no extractor configured")).WithFile(path)
	}
	syms, refs, err := fi.extractor.Extract(path, unit)
	if err != nil {
		return ierrors.NewIndexingError("extract", err).WithFile(path)
	}
	if syms == nil && refs == nil {
		// An extractor that found nothing still knows the file.
		syms = slab.NewSymbolBuilder().Build()
	}
	return fi.UpdateSlabs(path, syms, refs)
}

// UpdateSlabs installs already built slabs for path. Two nil slabs retract
// the file.
func (fi *FileIndex) UpdateSlabs(path string, syms *slab.SymbolSlab, refs *slab.RefSlab) error {
	fi.files.Update(path, syms, refs)
	s, r := fi.files.Snapshot()
	if err := fi.index.Build(s, r); err != nil {
		if errors.Is(err, ErrStaleGeneration) {
			// A concurrent update already installed a newer state.
			return nil
		}
		return ierrors.NewIndexingError("build", fmt.Errorf("%s: %w", path, err)).WithFile(path)
	}
	debug.LogIndex("file index at version %d after %s\n", s.Version(), path)
	return nil
}

// Files returns the paths currently contributing to the index.
func (fi *FileIndex) Files() []string {
	return fi.files.Files()
}

// Index returns the underlying MemIndex.
func (fi *FileIndex) Index() *MemIndex {
	return fi.index
}

// FuzzyFind implements SymbolIndex.
func (fi *FileIndex) FuzzyFind(req FuzzyFindRequest, fn func(*types.Symbol)) bool {
	return fi.index.FuzzyFind(req, fn)
}

// Lookup implements SymbolIndex.
func (fi *FileIndex) Lookup(req LookupRequest, fn func(*types.Symbol)) {
	fi.index.Lookup(req, fn)
}

// Refs implements SymbolIndex.
func (fi *FileIndex) Refs(req RefsRequest, fn func(types.Ref)) {
	fi.index.Refs(req, fn)
}

// EstimateMemoryUsage implements SymbolIndex.
func (fi *FileIndex) EstimateMemoryUsage() int {
	return fi.index.EstimateMemoryUsage()
}

var _ SymbolIndex = (*FileIndex)(nil)
