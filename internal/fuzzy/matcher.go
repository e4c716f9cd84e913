// Package fuzzy scores symbol names against a user query.
//
// Matching is a case-insensitive subsequence match that rewards prefixes,
// word starts (after '_' or a camelCase hump) and runs of adjacent characters.
// The raw match score comes from github.com/sahilm/fuzzy and is normalized
// against the score of the query matched with itself, then blended with a
// Jaro-Winkler similarity from go-edlib so that near-identical names order
// ahead of scattered matches with the same subsequence score.
package fuzzy

import (
	"strings"

	"github.com/hbollon/go-edlib"
	sfuzzy "github.com/sahilm/fuzzy"
)

const (
	// Minimum score a successful match can get, so that every match still
	// outranks "no match" after the quality multiplier is applied.
	minMatchScore = 0.1

	// Weight of the subsequence score; the rest goes to Jaro-Winkler.
	subsequenceWeight = 0.85
)

// Matcher scores candidate names against one query. Build it once per query
// and reuse it for every candidate. A Matcher is not safe for concurrent use.
type Matcher struct {
	query      string
	lowerQuery string
	selfScore  float64
	buf        [1]string
}

// NewMatcher prepares a matcher for query. The query must be a bare name:
// scope qualifiers are the caller's business.
func NewMatcher(query string) *Matcher {
	m := &Matcher{
		query:      query,
		lowerQuery: strings.ToLower(query),
	}
	if query != "" {
		if self := sfuzzy.Find(query, []string{query}); len(self) > 0 && self[0].Score > 0 {
			m.selfScore = float64(self[0].Score)
		}
	}
	return m
}

// Query returns the query the matcher was built for.
func (m *Matcher) Query() string {
	return m.query
}

// Match scores name against the query. The score lies in (0, 1]; ok is false
// when name does not contain the query as a subsequence. The empty query
// matches everything with score 1.
func (m *Matcher) Match(name string) (score float64, ok bool) {
	if m.query == "" {
		return 1, true
	}
	if len(name) < len(m.query) {
		return 0, false
	}

	m.buf[0] = name
	matches := sfuzzy.FindNoSort(m.query, m.buf[:])
	if len(matches) == 0 {
		return 0, false
	}

	subsequence := 1.0
	if m.selfScore > 0 {
		subsequence = clamp(float64(matches[0].Score)/m.selfScore, 0, 1)
	}
	subsequence = minMatchScore + (1-minMatchScore)*subsequence

	return subsequenceWeight*subsequence + (1-subsequenceWeight)*m.similarity(name), true
}

// similarity returns the Jaro-Winkler similarity of the lower-cased strings.
func (m *Matcher) similarity(name string) float64 {
	lowerName := strings.ToLower(name)
	if lowerName == m.lowerQuery {
		return 1
	}
	sim, err := edlib.StringsSimilarity(m.lowerQuery, lowerName, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(sim)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
