// Package metrics reports on the live index and the shard merger: summary
// statistics for people and Prometheus collectors for machines.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/standardbeagle/symindex/internal/index"
	"github.com/standardbeagle/symindex/internal/types"
)

// IndexStats summarizes one index generation
type IndexStats struct {
	Version     uint64
	MemoryBytes int64

	// Symbol-level metrics
	TotalSymbols       int64
	TotalDefinitions   int64
	CompletionEligible int64
	SymbolDistribution map[string]int64 // kind -> count
	ScopeCount         int64

	// Reference statistics
	TotalReferences        int64
	ReferencedIDs          int64
	MaxReferencesPerSymbol int64
	OrphanSymbols          int64 // Symbols with no references
	DanglingReferenceIDs   int64 // IDs with references but no symbol
}

// NewIndexStats creates an empty IndexStats
func NewIndexStats() *IndexStats {
	return &IndexStats{
		SymbolDistribution: make(map[string]int64),
	}
}

// CalculateFromGeneration computes all metrics from one generation
func (s *IndexStats) CalculateFromGeneration(g *index.Generation) {
	*s = IndexStats{SymbolDistribution: make(map[string]int64)}
	s.Version = g.Version()
	s.MemoryBytes = int64(g.EstimateMemoryUsage())
	s.TotalReferences = int64(g.RefCount())
	s.ReferencedIDs = int64(g.RefIDs())

	scopes := make(map[string]struct{})
	withRefs := int64(0)
	g.RangeSymbols(func(sym *types.Symbol) bool {
		s.TotalSymbols++
		s.SymbolDistribution[sym.Kind.String()]++
		scopes[sym.Scope] = struct{}{}
		if !sym.Definition.IsZero() {
			s.TotalDefinitions++
		}
		if sym.Flags.Has(types.FlagIndexedForCodeCompletion) {
			s.CompletionEligible++
		}

		n := int64(g.RefCountFor(sym.ID))
		if n == 0 {
			s.OrphanSymbols++
		} else {
			withRefs++
		}
		if n > s.MaxReferencesPerSymbol {
			s.MaxReferencesPerSymbol = n
		}
		return true
	})
	s.ScopeCount = int64(len(scopes))
	s.DanglingReferenceIDs = s.ReferencedIDs - withRefs
}

// FormatAsJSON returns stats formatted as JSON-serializable map
func (s *IndexStats) FormatAsJSON() map[string]interface{} {
	return map[string]interface{}{
		"summary": map[string]interface{}{
			"generation":   s.Version,
			"memory_bytes": s.MemoryBytes,
			"memory_mb":    float64(s.MemoryBytes) / 1024.0 / 1024.0,
		},
		"symbols": map[string]interface{}{
			"total":               s.TotalSymbols,
			"definitions":         s.TotalDefinitions,
			"completion_eligible": s.CompletionEligible,
			"scopes":              s.ScopeCount,
			"kinds":               s.SymbolDistribution,
		},
		"references": map[string]interface{}{
			"total":          s.TotalReferences,
			"symbols":        s.ReferencedIDs,
			"max_per_symbol": s.MaxReferencesPerSymbol,
			"orphans":        s.OrphanSymbols,
			"dangling":       s.DanglingReferenceIDs,
		},
	}
}

// FormatAsText returns stats formatted as human-readable text
func (s *IndexStats) FormatAsText() string {
	var sb strings.Builder

	sb.WriteString("SUMMARY\n")
	sb.WriteString("─────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("  Generation:         %d\n", s.Version))
	sb.WriteString(fmt.Sprintf("  Memory:             %.2f MB\n", float64(s.MemoryBytes)/1024.0/1024.0))

	sb.WriteString("\nSYMBOLS\n")
	sb.WriteString("─────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("  Total:              %d\n", s.TotalSymbols))
	sb.WriteString(fmt.Sprintf("  Definitions:        %d\n", s.TotalDefinitions))
	sb.WriteString(fmt.Sprintf("  For Completion:     %d\n", s.CompletionEligible))
	sb.WriteString(fmt.Sprintf("  Scopes:             %d\n", s.ScopeCount))

	// Sort kinds by count, then name
	type kindCount struct {
		name  string
		count int64
	}
	kinds := make([]kindCount, 0, len(s.SymbolDistribution))
	for name, count := range s.SymbolDistribution {
		kinds = append(kinds, kindCount{name, count})
	}
	sort.Slice(kinds, func(i, j int) bool {
		if kinds[i].count != kinds[j].count {
			return kinds[i].count > kinds[j].count
		}
		return kinds[i].name < kinds[j].name
	})
	for _, k := range kinds {
		sb.WriteString(fmt.Sprintf("    %-16s %8d\n", k.name+":", k.count))
	}

	sb.WriteString("\nREFERENCES\n")
	sb.WriteString("─────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("  Total:              %d\n", s.TotalReferences))
	sb.WriteString(fmt.Sprintf("  Referenced IDs:     %d\n", s.ReferencedIDs))
	sb.WriteString(fmt.Sprintf("  Max per Symbol:     %d\n", s.MaxReferencesPerSymbol))
	sb.WriteString(fmt.Sprintf("  Orphan Symbols:     %d\n", s.OrphanSymbols))
	sb.WriteString(fmt.Sprintf("  Dangling IDs:       %d\n", s.DanglingReferenceIDs))

	return sb.String()
}
