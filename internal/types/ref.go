package types

import (
	"fmt"
	"strings"
)

// RefKind classifies an occurrence. Kinds combine: a definition is usually
// also a declaration.
type RefKind uint8

const (
	RefDeclaration RefKind = 1 << iota
	RefDefinition
	RefReference

	RefUnknown RefKind = 0
	RefAll             = RefDeclaration | RefDefinition | RefReference
)

var refKindNames = []struct {
	kind RefKind
	name string
}{
	{RefDeclaration, "declaration"},
	{RefDefinition, "definition"},
	{RefReference, "reference"},
}

// Matches reports whether any bit of the filter is set on k.
func (k RefKind) Matches(filter RefKind) bool {
	return k&filter != 0
}

// Names returns the names of the set bits in a fixed order.
func (k RefKind) Names() []string {
	var names []string
	for _, kn := range refKindNames {
		if k&kn.kind != 0 {
			names = append(names, kn.name)
		}
	}
	return names
}

func (k RefKind) String() string {
	if k == RefUnknown {
		return "unknown"
	}
	return strings.Join(k.Names(), "|")
}

// ParseRefKind accepts a list of kind names; "all" selects every kind.
func ParseRefKind(names []string) (RefKind, error) {
	var kind RefKind
next:
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "all" {
			kind |= RefAll
			continue
		}
		for _, kn := range refKindNames {
			if kn.name == n {
				kind |= kn.kind
				continue next
			}
		}
		return RefUnknown, fmt.Errorf("unknown reference kind %q", n)
	}
	return kind, nil
}

// Ref is one occurrence of a symbol. The referenced SymbolID is the key the
// ref is stored under and is not repeated here.
type Ref struct {
	Location Location
	Kind     RefKind
}
