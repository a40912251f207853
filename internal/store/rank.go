package store

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"flashbot-backend/internal/model"
)

// candidate is a scored product before final ordering.
type candidate struct {
	id     int64
	title  string
	score  float64
	source string
}

// foldTransformer strips accents so "paquetería" and "paqueteria" match the
// same terms. Lowercasing happens in fold before the transform.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold normalizes text for matching: lower case, accents removed.
func fold(s string) string {
	out, _, err := transform.String(foldTransformer, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// queryTerms splits a query into folded alphanumeric terms.
func queryTerms(query string) []string {
	folded := fold(query)
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// titleProximity is the fraction of query terms present in the title; used
// as the first tie-breaker between equally scored hits.
func titleProximity(terms []string, title string) float64 {
	if len(terms) == 0 {
		return 0
	}
	folded := fold(title)
	n := 0
	for _, t := range terms {
		if strings.Contains(folded, t) {
			n++
		}
	}
	return float64(n) / float64(len(terms))
}

// orderCandidates sorts by score, then title proximity, then ascending ID so
// the ranking is fully deterministic and prefix-consistent across values of k.
func orderCandidates(cands []candidate, terms []string) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		pi := titleProximity(terms, cands[i].title)
		pj := titleProximity(terms, cands[j].title)
		if pi != pj {
			return pi > pj
		}
		return cands[i].id < cands[j].id
	})
}

// mergeHits concatenates the full-text and scan candidate groups, keeping
// full-text hits first, removing duplicates and truncating to k.
func mergeHits(fts, scan []candidate, k int) []model.Hit {
	seen := make(map[int64]bool, len(fts)+len(scan))
	hits := make([]model.Hit, 0, k)
	for _, group := range [][]candidate{fts, scan} {
		for _, c := range group {
			if seen[c.id] {
				continue
			}
			seen[c.id] = true
			hits = append(hits, model.Hit{ProductID: c.id, Score: c.score, Source: c.source})
			if len(hits) == k {
				return hits
			}
		}
	}
	return hits
}

// scanScore scores a product for the keyword-scan fallback. Title matches
// weigh most, then tags, then body.
func scanScore(terms []string, title, body, tags string) float64 {
	ft, fb, fg := fold(title), fold(body), fold(tags)
	score := 0.0
	for _, t := range terms {
		if strings.Contains(ft, t) {
			score += 3
		}
		if strings.Contains(fg, t) {
			score += 2
		}
		if strings.Contains(fb, t) {
			score++
		}
	}
	return score
}

// ftsMatchExpr builds a safe full-text match expression: terms are quoted
// and OR-ed so any single term can match, with relevance doing the ranking.
func ftsMatchExpr(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " OR ")
}
