package shard

import (
	"fmt"

	"github.com/standardbeagle/symindex/internal/index"
	"github.com/standardbeagle/symindex/internal/slab"
)

// Extractor feeds shards into an index.FileIndex. It accepts units of type
// []byte (raw shard content) or *Shard (already decoded).
type Extractor struct {
	Filter slab.RefFilter
}

// Extract implements index.Extractor.
func (e Extractor) Extract(path string, unit index.Unit) (*slab.SymbolSlab, *slab.RefSlab, error) {
	switch u := unit.(type) {
	case []byte:
		s, err := Decode(path, u, e.Filter)
		if err != nil {
			return nil, nil, err
		}
		return s.Symbols, s.Refs, nil
	case *Shard:
		return u.Symbols, u.Refs, nil
	default:
		return nil, nil, fmt.Errorf("unsupported unit type %T", unit)
	}
}

var _ index.Extractor = Extractor{}
