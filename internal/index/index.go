// Package index is the live symbol index: an immutable, atomically swapped
// in-memory generation (MemIndex) fed by a per-file aggregator (FileSymbols,
// FileIndex).
package index

import (
	"github.com/standardbeagle/symindex/internal/types"
)

// SymbolIndex is the query capability shared by every index implementation.
// MemIndex is the in-memory variant; a disk- or network-backed index would be
// another.
type SymbolIndex interface {
	// FuzzyFind calls fn for each match in descending score order and
	// reports whether matches were dropped because of req.Limit.
	FuzzyFind(req FuzzyFindRequest, fn func(*types.Symbol)) bool

	// Lookup calls fn once for each requested ID present in the index.
	Lookup(req LookupRequest, fn func(*types.Symbol))

	// Refs calls fn for each occurrence of the requested IDs that matches
	// req.Filter.
	Refs(req RefsRequest, fn func(types.Ref))

	// EstimateMemoryUsage returns the approximate size of the installed
	// generation in bytes.
	EstimateMemoryUsage() int
}

// FuzzyFindRequest describes a fuzzy symbol search.
type FuzzyFindRequest struct {
	// Query is the unqualified name pattern. It must not contain
	// types.ScopeSeparator; split qualified input with SplitQualifiedQuery.
	Query string

	// Scopes lists the enclosing scopes to accept, each with its trailing
	// separator ("ns::"), "" for the global scope. Empty accepts any scope.
	Scopes []string

	// AnyScope disables scope filtering even when Scopes is set.
	AnyScope bool

	// RestrictForCodeCompletion keeps only symbols flagged for completion.
	RestrictForCodeCompletion bool

	// Limit caps the number of results. Zero or negative means unbounded.
	Limit int
}

// LookupRequest asks for the symbols with the given IDs.
type LookupRequest struct {
	IDs []types.SymbolID
}

// RefsRequest asks for the occurrences of the given IDs.
type RefsRequest struct {
	IDs []types.SymbolID

	// Filter selects occurrence kinds. RefUnknown (zero) selects all.
	Filter types.RefKind
}

func (r RefsRequest) filter() types.RefKind {
	if r.Filter == types.RefUnknown {
		return types.RefAll
	}
	return r.Filter
}

// SplitQualifiedQuery separates "ns::sub::Foo" into the scope "ns::sub::"
// and the bare name "Foo". An unqualified query returns an empty scope.
// A leading "::" names the global scope, which is reported as ok with an
// empty scope.
func SplitQualifiedQuery(query string) (scope, name string, qualified bool) {
	sep := types.ScopeSeparator
	for i := len(query) - len(sep); i >= 0; i-- {
		if query[i:i+len(sep)] == sep {
			scope = query[:i+len(sep)]
			if scope == sep {
				scope = ""
			}
			return scope, query[i+len(sep):], true
		}
	}
	return "", query, false
}

// uniqueIDs drops repeated IDs, keeping first occurrences in order.
func uniqueIDs(ids []types.SymbolID) []types.SymbolID {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[types.SymbolID]struct{}, len(ids))
	out := make([]types.SymbolID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
