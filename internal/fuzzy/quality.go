package fuzzy

import (
	"fmt"
	"math"

	"github.com/standardbeagle/symindex/internal/types"
)

// QualityWeights tunes the symbol quality multiplier.
type QualityWeights struct {
	// ReferenceThreshold is the reference count below which references do not
	// affect quality. Few references tell us little: the symbol may be new, or
	// the producer may not count references at all.
	ReferenceThreshold uint32

	MacroPenalty                float64
	DeprecatedPenalty           float64
	ImplementationDetailPenalty float64

	// DynamicBoost applies to symbols from open documents.
	DynamicBoost float64
}

// MinReferenceThreshold is the smallest accepted ReferenceThreshold. Below
// it the log of the reference count would shrink quality instead of raising it.
const MinReferenceThreshold = 3

// DefaultQualityWeights returns the weights used when nothing is configured.
func DefaultQualityWeights() QualityWeights {
	return QualityWeights{
		ReferenceThreshold:          MinReferenceThreshold,
		MacroPenalty:                0.8,
		DeprecatedPenalty:           0.1,
		ImplementationDetailPenalty: 0.2,
		DynamicBoost:                1.1,
	}
}

// Validate checks the reference threshold and that every multiplier is
// positive.
func (w QualityWeights) Validate() error {
	if w.ReferenceThreshold < MinReferenceThreshold {
		return fmt.Errorf("reference_threshold must be at least %d, got %d", MinReferenceThreshold, w.ReferenceThreshold)
	}
	for name, v := range map[string]float64{
		"macro_penalty":                 w.MacroPenalty,
		"deprecated_penalty":            w.DeprecatedPenalty,
		"implementation_detail_penalty": w.ImplementationDetailPenalty,
		"dynamic_boost":                 w.DynamicBoost,
	} {
		if v <= 0 || v > 10 {
			return fmt.Errorf("%s must be in (0, 10], got %v", name, v)
		}
	}
	return nil
}

// Quality returns a multiplier >0 that favours well-referenced, real symbols
// over incidental ones with the same textual match.
func Quality(sym *types.Symbol, w QualityWeights) float64 {
	q := 1.0
	if sym.References > 0 && sym.References >= w.ReferenceThreshold {
		q = math.Max(1, math.Log(float64(sym.References)))
	}

	if sym.Kind == types.KindMacro {
		q *= w.MacroPenalty
	}
	if sym.Flags.Has(types.FlagDeprecated) {
		q *= w.DeprecatedPenalty
	}
	if sym.Flags.Has(types.FlagImplementationDetail) {
		q *= w.ImplementationDetailPenalty
	}
	if sym.Origin&(types.OriginDynamic|types.OriginAST) != 0 {
		q *= w.DynamicBoost
	}
	return q
}

// Score combines a match score and the symbol's quality. Higher is better.
func Score(match float64, sym *types.Symbol, w QualityWeights) float64 {
	return match * Quality(sym, w)
}
