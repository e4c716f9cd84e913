// Package shard reads and writes serialized index shards and merges a
// directory of them into one deduplicated shard.
//
// A shard is a YAML document with a list of symbols and a list of
// per-symbol reference lists:
//
//	symbols:
//	  - id: 9A3C51D07F2E4B18
//	    name: Foo
//	    scope: "ns::"
//	    kind: class
//	    flags: [indexed-for-completion]
//	    declaration: {file: "file:///src/a.h", start: {line: 3, column: 6}, end: {line: 3, column: 9}}
//	refs:
//	  - id: 9A3C51D07F2E4B18
//	    occurrences:
//	      - {kind: [reference], location: {file: "file:///src/b.cc", start: {line: 4, column: 2}, end: {line: 4, column: 5}}}
package shard

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	ierrors "github.com/standardbeagle/symindex/internal/errors"
	"github.com/standardbeagle/symindex/internal/slab"
	"github.com/standardbeagle/symindex/internal/types"
)

type positionDoc struct {
	Line   uint32 `yaml:"line"`
	Column uint32 `yaml:"column"`
}

type locationDoc struct {
	File  string      `yaml:"file"`
	Start positionDoc `yaml:"start"`
	End   positionDoc `yaml:"end"`
}

type symbolDoc struct {
	ID          types.SymbolID `yaml:"id"`
	Name        string         `yaml:"name"`
	Scope       string         `yaml:"scope,omitempty"`
	Kind        string         `yaml:"kind,omitempty"`
	Flags       []string       `yaml:"flags,omitempty,flow"`
	References  uint32         `yaml:"references,omitempty"`
	Origin      []string       `yaml:"origin,omitempty,flow"`
	Declaration *locationDoc   `yaml:"declaration,omitempty,flow"`
	Definition  *locationDoc   `yaml:"definition,omitempty,flow"`
}

// errEmptyRefKind rejects occurrences no kind filter could ever select.
var errEmptyRefKind = errors.New("occurrence has no reference kind")

type occurrenceDoc struct {
	Kind     []string    `yaml:"kind,flow"`
	Location locationDoc `yaml:"location,flow"`
}

type refsDoc struct {
	ID          types.SymbolID  `yaml:"id"`
	Occurrences []occurrenceDoc `yaml:"occurrences"`
}

// document is the decoding form. Entries stay as nodes so that conversion
// errors can point at a line.
type document struct {
	Symbols []yaml.Node `yaml:"symbols"`
	Refs    []yaml.Node `yaml:"refs"`
}

type encodedDocument struct {
	Symbols []symbolDoc `yaml:"symbols"`
	Refs    []refsDoc   `yaml:"refs,omitempty"`
}

// Shard is the decoded content of one shard file.
type Shard struct {
	Symbols *slab.SymbolSlab
	Refs    *slab.RefSlab
}

// Decode parses a shard document. name is only used in errors. Repeated
// symbol IDs keep their first entry; references not allowed by filter are
// dropped. Malformed input yields an *errors.ParseError.
func Decode(name string, data []byte, filter slab.RefFilter) (*Shard, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ierrors.NewParseError(name, 0, 0, "", err)
	}

	sb := slab.NewSymbolBuilder()
	for i := range doc.Symbols {
		node := &doc.Symbols[i]
		var sd symbolDoc
		if err := node.Decode(&sd); err != nil {
			return nil, ierrors.NewParseError(name, node.Line, node.Column, "symbols", err)
		}
		sym, field, err := sd.symbol()
		if err != nil {
			return nil, ierrors.NewParseError(name, node.Line, node.Column, field, err)
		}
		sb.Insert(sym)
	}

	rb := slab.NewRefBuilder(filter)
	for i := range doc.Refs {
		node := &doc.Refs[i]
		var rd refsDoc
		if err := node.Decode(&rd); err != nil {
			return nil, ierrors.NewParseError(name, node.Line, node.Column, "refs", err)
		}
		for _, od := range rd.Occurrences {
			if len(od.Kind) == 0 {
				return nil, ierrors.NewParseError(name, node.Line, node.Column, "kind", errEmptyRefKind)
			}
			kind, err := types.ParseRefKind(od.Kind)
			if err != nil {
				return nil, ierrors.NewParseError(name, node.Line, node.Column, "kind", err)
			}
			rb.Insert(rd.ID, types.Ref{Location: od.Location.location(), Kind: kind})
		}
	}

	return &Shard{Symbols: sb.Build(), Refs: rb.Build()}, nil
}

// Read opens and decodes the shard at path. Open failures are reported as
// *errors.FileError.
func Read(path string, filter slab.RefFilter) (*Shard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ierrors.NewFileError("read", path, err)
	}
	return Decode(path, data, filter)
}

// Encode serializes symbols and refs, symbols and reference lists in ID order.
func Encode(syms *slab.SymbolSlab, refs *slab.RefSlab) ([]byte, error) {
	doc := encodedDocument{
		Symbols: make([]symbolDoc, 0, syms.Len()),
	}
	syms.Range(func(s *types.Symbol) bool {
		doc.Symbols = append(doc.Symbols, newSymbolDoc(s))
		return true
	})
	for _, id := range refs.IDs() {
		rd := refsDoc{ID: id}
		for _, r := range refs.Find(id) {
			rd.Occurrences = append(rd.Occurrences, occurrenceDoc{
				Kind:     r.Kind.Names(),
				Location: newLocationDoc(r.Location),
			})
		}
		doc.Refs = append(doc.Refs, rd)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode shard: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode shard: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile encodes the slabs and writes them to path. Failures to create or
// write the file are reported as *errors.FileError.
func WriteFile(path string, syms *slab.SymbolSlab, refs *slab.RefSlab) error {
	data, err := Encode(syms, refs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return ierrors.NewFileError("write", path, err)
	}
	return nil
}

func (sd *symbolDoc) symbol() (types.Symbol, string, error) {
	kind, err := types.ParseSymbolKind(sd.Kind)
	if err != nil {
		return types.Symbol{}, "kind", err
	}
	flags, err := types.ParseSymbolFlags(sd.Flags)
	if err != nil {
		return types.Symbol{}, "flags", err
	}
	origin, err := types.ParseSymbolOrigin(sd.Origin)
	if err != nil {
		return types.Symbol{}, "origin", err
	}
	if sd.ID.IsZero() {
		return types.Symbol{}, "id", fmt.Errorf("symbol %q has no id", sd.Name)
	}
	return types.Symbol{
		ID:          sd.ID,
		Name:        sd.Name,
		Scope:       sd.Scope,
		Kind:        kind,
		Flags:       flags,
		References:  sd.References,
		Origin:      origin,
		Declaration: sd.Declaration.location(),
		Definition:  sd.Definition.location(),
	}, "", nil
}

func newSymbolDoc(s *types.Symbol) symbolDoc {
	sd := symbolDoc{
		ID:         s.ID,
		Name:       s.Name,
		Scope:      s.Scope,
		Flags:      s.Flags.Names(),
		References: s.References,
		Origin:     s.Origin.Names(),
	}
	if s.Kind != types.KindUnknown {
		sd.Kind = s.Kind.String()
	}
	if !s.Declaration.IsZero() {
		d := newLocationDoc(s.Declaration)
		sd.Declaration = &d
	}
	if !s.Definition.IsZero() {
		d := newLocationDoc(s.Definition)
		sd.Definition = &d
	}
	return sd
}

func newLocationDoc(l types.Location) locationDoc {
	return locationDoc{
		File:  l.FileURI,
		Start: positionDoc{Line: l.Start.Line, Column: l.Start.Column},
		End:   positionDoc{Line: l.End.Line, Column: l.End.Column},
	}
}

func (ld *locationDoc) location() types.Location {
	if ld == nil {
		return types.Location{}
	}
	return types.Location{
		FileURI: ld.File,
		Start:   types.Position{Line: ld.Start.Line, Column: ld.Start.Column},
		End:     types.Position{Line: ld.End.Line, Column: ld.End.Column},
	}
}
