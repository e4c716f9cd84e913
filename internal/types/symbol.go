package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Index-wide constants
const (
	// ScopeSeparator separates scope components in qualified names ("ns::Foo").
	// Fuzzy queries must be split on it before they reach the matcher.
	ScopeSeparator = "::"

	// DefaultMaxResults is the fuzzy-find limit used when a caller gives none.
	DefaultMaxResults = 100

	// SymbolIDSize is the number of bytes in a SymbolID.
	SymbolIDSize = 8
)

// SymbolID is the stable, content-derived identity of a logical symbol.
// Equal IDs name the same symbol across files and across index rebuilds.
// IDs are comparable (usable as map keys) and totally ordered via Less.
type SymbolID [SymbolIDSize]byte

// Less orders IDs by their raw bytes.
func (id SymbolID) Less(other SymbolID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// IsZero reports whether the ID is unset.
func (id SymbolID) IsZero() bool {
	return id == SymbolID{}
}

// String returns the uppercase hex form used in shards and on the wire.
func (id SymbolID) String() string {
	return strings.ToUpper(hex.EncodeToString(id[:]))
}

// MarshalText implements encoding.TextMarshaler.
func (id SymbolID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *SymbolID) UnmarshalText(text []byte) error {
	parsed, err := ParseSymbolID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseSymbolID parses the hex form produced by SymbolID.String.
func ParseSymbolID(s string) (SymbolID, error) {
	var id SymbolID
	if len(s) != hex.EncodedLen(SymbolIDSize) {
		return id, fmt.Errorf("symbol id %q: want %d hex digits, got %d", s, hex.EncodedLen(SymbolIDSize), len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("symbol id %q: %w", s, err)
	}
	return id, nil
}

// SymbolFlag is a bitset of per-symbol properties.
type SymbolFlag uint8

const (
	// FlagIndexedForCodeCompletion marks symbols offered by code completion.
	FlagIndexedForCodeCompletion SymbolFlag = 1 << iota
	// FlagDeprecated marks symbols carrying a deprecation attribute.
	FlagDeprecated
	// FlagImplementationDetail marks symbols that are public only for technical reasons.
	FlagImplementationDetail
)

var flagNames = []struct {
	flag SymbolFlag
	name string
}{
	{FlagIndexedForCodeCompletion, "indexed-for-completion"},
	{FlagDeprecated, "deprecated"},
	{FlagImplementationDetail, "implementation-detail"},
}

// Has reports whether all bits of f are set.
func (s SymbolFlag) Has(f SymbolFlag) bool {
	return s&f == f
}

// Names returns the names of the set flags in a fixed order.
func (s SymbolFlag) Names() []string {
	var names []string
	for _, fn := range flagNames {
		if s.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return names
}

// ParseSymbolFlags is the inverse of Names.
func ParseSymbolFlags(names []string) (SymbolFlag, error) {
	var flags SymbolFlag
next:
	for _, n := range names {
		for _, fn := range flagNames {
			if fn.name == n {
				flags |= fn.flag
				continue next
			}
		}
		return 0, fmt.Errorf("unknown symbol flag %q", n)
	}
	return flags, nil
}

// SymbolKind is the declaration kind of a symbol.
type SymbolKind uint8

const (
	KindUnknown SymbolKind = iota
	KindNamespace
	KindClass
	KindStruct
	KindUnion
	KindEnum
	KindEnumConstant
	KindFunction
	KindMethod
	KindConstructor
	KindField
	KindVariable
	KindTypeAlias
	KindMacro
)

var kindNames = [...]string{
	KindUnknown:      "unknown",
	KindNamespace:    "namespace",
	KindClass:        "class",
	KindStruct:       "struct",
	KindUnion:        "union",
	KindEnum:         "enum",
	KindEnumConstant: "enum-constant",
	KindFunction:     "function",
	KindMethod:       "method",
	KindConstructor:  "constructor",
	KindField:        "field",
	KindVariable:     "variable",
	KindTypeAlias:    "type-alias",
	KindMacro:        "macro",
}

func (k SymbolKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("SymbolKind(%d)", k)
}

// ParseSymbolKind maps a kind name back to its value. Empty maps to KindUnknown.
func ParseSymbolKind(s string) (SymbolKind, error) {
	if s == "" {
		return KindUnknown, nil
	}
	for k, name := range kindNames {
		if name == s {
			return SymbolKind(k), nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown symbol kind %q", s)
}

// SymbolOrigin records which producer(s) a symbol came from.
// It is a bitset: a merged symbol keeps the bits of its sources.
type SymbolOrigin uint8

const (
	OriginUnknown SymbolOrigin = 0
	OriginAST     SymbolOrigin = 1 << (iota - 1) // main file of an open document
	OriginDynamic                                // headers of open documents
	OriginStatic                                 // offline-built index
	OriginMerge                                  // produced by the shard merger
)

var originNames = []struct {
	origin SymbolOrigin
	name   string
}{
	{OriginAST, "ast"},
	{OriginDynamic, "dynamic"},
	{OriginStatic, "static"},
	{OriginMerge, "merge"},
}

// Names returns the names of the set origin bits.
func (o SymbolOrigin) Names() []string {
	var names []string
	for _, on := range originNames {
		if o&on.origin != 0 {
			names = append(names, on.name)
		}
	}
	return names
}

func (o SymbolOrigin) String() string {
	if o == OriginUnknown {
		return "unknown"
	}
	return strings.Join(o.Names(), "+")
}

// ParseSymbolOrigin is the inverse of Names.
func ParseSymbolOrigin(names []string) (SymbolOrigin, error) {
	var origin SymbolOrigin
next:
	for _, n := range names {
		if n == "unknown" {
			continue
		}
		for _, on := range originNames {
			if on.name == n {
				origin |= on.origin
				continue next
			}
		}
		return 0, fmt.Errorf("unknown symbol origin %q", n)
	}
	return origin, nil
}

// Symbol is one declared entity as seen by the index.
type Symbol struct {
	ID    SymbolID
	Name  string // unqualified name, e.g. "Foo"
	Scope string // enclosing scope with trailing separator, e.g. "ns::"; "" is global
	Kind  SymbolKind
	Flags SymbolFlag

	// Ranking signals
	References uint32 // number of files referencing the symbol, 0 when unknown
	Origin     SymbolOrigin

	Declaration Location // canonical declaration, zero when unknown
	Definition  Location // zero when unknown
}

// QualifiedName returns Scope + Name.
func (s *Symbol) QualifiedName() string {
	return s.Scope + s.Name
}

// Position is a zero-based line/column pair.
type Position struct {
	Line   uint32
	Column uint32
}

// Less orders positions by line then column.
func (p Position) Less(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Column < other.Column
}

// Location is a half-open range within one file.
type Location struct {
	FileURI string
	Start   Position
	End     Position
}

// IsZero reports whether the location is unset.
func (l Location) IsZero() bool {
	return l == Location{}
}

// Less orders locations by file, then start, then end.
func (l Location) Less(other Location) bool {
	if l.FileURI != other.FileURI {
		return l.FileURI < other.FileURI
	}
	if l.Start != other.Start {
		return l.Start.Less(other.Start)
	}
	return l.End.Less(other.End)
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d-%d:%d", l.FileURI, l.Start.Line, l.Start.Column, l.End.Line, l.End.Column)
}
