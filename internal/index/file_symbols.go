package index

import (
	"sort"
	"sync"

	"github.com/standardbeagle/symindex/internal/debug"
	"github.com/standardbeagle/symindex/internal/slab"
)

type fileSlabs struct {
	symbols *slab.SymbolSlab
	refs    *slab.RefSlab
}

// FileSymbols holds the current symbol and reference slabs of every known
// file. A file's two slabs are always replaced or removed together.
// FileSymbols is safe for concurrent use.
type FileSymbols struct {
	mu      sync.Mutex
	files   map[string]fileSlabs
	version uint64
}

// NewFileSymbols returns an empty aggregator.
func NewFileSymbols() *FileSymbols {
	return &FileSymbols{files: make(map[string]fileSlabs)}
}

// Update replaces the contribution of path. Passing two nil slabs removes the
// path; a single nil slab stands for an empty one.
func (f *FileSymbols) Update(path string, syms *slab.SymbolSlab, refs *slab.RefSlab) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.version++
	if syms == nil && refs == nil {
		delete(f.files, path)
		debug.LogIndex("removed %s (version %d)\n", path, f.version)
		return
	}
	if syms == nil {
		syms = slab.NewSymbolBuilder().Build()
	}
	if refs == nil {
		refs = slab.NewRefBuilder(slab.RefFilter{}).Build()
	}
	f.files[path] = fileSlabs{symbols: syms, refs: refs}
	debug.LogIndex("updated %s: %d symbols, %d refs (version %d)\n", path, syms.Len(), refs.Len(), f.version)
}

// Len returns the number of known files.
func (f *FileSymbols) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

// Files returns the known paths in sorted order.
func (f *FileSymbols) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedPathsLocked()
}

// Version returns the number of updates applied so far.
func (f *FileSymbols) Version() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

// AllSymbols returns a snapshot of every known file's symbols, files in path
// order.
func (f *FileSymbols) AllSymbols() *SymbolSnapshot {
	syms, _ := f.Snapshot()
	return syms
}

// AllReferences returns a snapshot of every known file's references, files in
// path order.
func (f *FileSymbols) AllReferences() *RefSnapshot {
	_, refs := f.Snapshot()
	return refs
}

// Snapshot returns symbol and reference snapshots taken from the same state.
// Building a MemIndex from both guarantees readers never pair symbols and
// references of different updates.
func (f *FileSymbols) Snapshot() (*SymbolSnapshot, *RefSnapshot) {
	f.mu.Lock()
	paths := f.sortedPathsLocked()
	symSlabs := make([]*slab.SymbolSlab, len(paths))
	refSlabs := make([]*slab.RefSlab, len(paths))
	for i, p := range paths {
		fs := f.files[p]
		symSlabs[i] = fs.symbols
		refSlabs[i] = fs.refs
	}
	version := f.version
	f.mu.Unlock()

	// Slabs are immutable, so flattening can happen outside the lock.
	return NewSymbolSnapshot(version, symSlabs...), NewRefSnapshot(version, refSlabs...)
}

func (f *FileSymbols) sortedPathsLocked() []string {
	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
