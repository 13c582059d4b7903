package annotate

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Matching thresholds. Scores in the 0.7-0.8 band are a weak signal; a
// fuzzy match is only ever acted on above the actionable threshold (see
// TestLocateFuzzyFallbackUnused).
const (
	fuzzyActionableThreshold = 0.8

	minQueryLength = 5
)

// MatchStrategy tags which branch of the locator cascade produced a match.
type MatchStrategy string

const (
	MatchExact MatchStrategy = "exact"
	MatchFuzzy MatchStrategy = "fuzzy"
)

// Match identifies the paragraph a suggestion was placed on.
type Match struct {
	Handle   int
	Strategy MatchStrategy
	Score    float64
}

// normChainPool holds fresh transformer chains; transformers are stateful
// and not safe for concurrent use.
var normChainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Cf)), // strip format chars (ZWJ, FEFF, ...)
			width.Fold,
		)
	},
}

// normalizeText produces the canonical form both queries and paragraph
// texts are compared in: NFKC, case-folded, width-folded, with whitespace
// runs collapsed to single spaces and the edges trimmed.
func normalizeText(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToValidUTF8(s, "")

	tr := normChainPool.Get().(transform.Transformer)
	ns, _, _ := transform.String(tr, s)
	tr.Reset()
	normChainPool.Put(tr)

	return collapseSpaces(ns)
}

// collapseSpaces converts every whitespace run to a single ASCII space and
// trims the result.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			continue
		}
		if inWS && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}

// buildQueries derives the candidate query strings for a snippet, most
// specific first. Shorter, more distinctive prefixes are tried before
// broader fallbacks; the cascade trades recall for precision.
func buildQueries(snippet string) []string {
	r := []rune(snippet)

	prefix := func(n int) string {
		if len(r) <= n {
			return snippet
		}
		return string(r[:n])
	}

	sentence := prefix(40)
	if i := strings.IndexAny(snippet, ".!?"); i >= 0 {
		sentence = snippet[:i]
	}

	words := strings.Fields(snippet)
	wordQuery := snippet
	if len(words) > 8 {
		wordQuery = strings.Join(words[:8], " ")
	}

	return []string{prefix(50), prefix(30), sentence, wordQuery}
}

// Locate finds the paragraph that best matches the snippet, or reports no
// match. Deterministic and read-only: each query from buildQueries is run
// against the full index before the next is tried; within a query an exact
// normalized-substring hit wins over any fuzzy score.
func Locate(index *BodyIndex, snippet string) (Match, bool) {
	for _, query := range buildQueries(snippet) {
		nq := normalizeText(query)
		if len([]rune(nq)) < minQueryLength {
			continue
		}

		// Exact pass over every candidate paragraph.
		for h := 0; h < index.Len(); h++ {
			if !index.candidate(h) {
				continue
			}
			if strings.Contains(index.paras[h].normText, nq) {
				return Match{Handle: h, Strategy: MatchExact, Score: 1.0}, true
			}
		}

		// Fuzzy pass: track the best-scoring paragraph for this query.
		best := -1
		bestScore := 0.0
		for h := 0; h < index.Len(); h++ {
			if !index.candidate(h) {
				continue
			}
			if score := similarity(nq, index.paras[h].normText); score > bestScore {
				best = h
				bestScore = score
			}
		}
		if best >= 0 && bestScore > fuzzyActionableThreshold {
			return Match{Handle: best, Strategy: MatchFuzzy, Score: bestScore}, true
		}
	}

	return Match{}, false
}

// similarity is the longest-common-subsequence ratio 2*LCS/(len(a)+len(b)),
// computed on runes, in [0,1].
func similarity(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	// Two-row DP over the shorter string to bound memory.
	if len(rb) < len(ra) {
		ra, rb = rb, ra
	}
	prev := make([]int, len(ra)+1)
	cur := make([]int, len(ra)+1)
	for i := 1; i <= len(rb); i++ {
		for j := 1; j <= len(ra); j++ {
			if rb[i-1] == ra[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}

	lcs := prev[len(ra)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}
