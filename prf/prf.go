// Package prf implements Indri-style pseudo-relevance feedback: given a
// top-k document ranking for a query, compute expansion-term weights from
// each document's term vector and fold them into an expanded weighted-AND
// query for re-evaluation.
package prf

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rekki/qeval/eval"
	"github.com/rekki/qeval/index"
)

// Config holds the prf:* parameters that shape expansion.
type Config struct {
	NumDocs        int
	NumTerms       int
	Mu             float64
	OrigWeight     float64
	ExpansionField string
}

// TermScore is one entry of the Expansion-Term-List: a candidate expansion
// term and its accumulated Indri score.
type TermScore struct {
	Term  string
	Score float64
}

// ExpansionTermList sorts by score descending, term ascending on ties —
// the tie-break convention for this list (distinct from a Score-List's
// external-docid tie-break, since expansion terms have no docid).
type ExpansionTermList []TermScore

func (l ExpansionTermList) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		if l[i].Score != l[j].Score {
			return l[i].Score > l[j].Score
		}
		return l[i].Term < l[j].Term
	})
}

// isExpansionCandidate filters out terms containing '.', ',' or any
// non-ASCII byte.
func isExpansionCandidate(term string) bool {
	for i := 0; i < len(term); i++ {
		c := term[i]
		if c == '.' || c == ',' || c >= 0x80 {
			return false
		}
	}
	return true
}

// Expand computes the Expansion-Term-List for the top cfg.NumDocs documents
// of ranking, using facade's term vectors on cfg.ExpansionField, and returns
// the top cfg.NumTerms by score.
//
// The accumulation uses the running "sumOfPrevDocs" trick:
// sumOfPrevDocs tracks Σ s_i·μ/(L_i+μ) across every document processed
// so far, independent of any particular term. A term's score is seeded from
// sumOfPrevDocs the first time it's seen (accounting for every earlier
// document's implicit zero-tf contribution in one step), and the gap since
// its last update is folded in on every subsequent occurrence; a final pass
// closes out the gap to the end of the ranking for every candidate term.
func Expand(ranking eval.ScoreList, facade index.Facade, cfg Config) ExpansionTermList {
	docs := ranking
	if len(docs) > cfg.NumDocs {
		docs = docs[:cfg.NumDocs]
	}

	field := cfg.ExpansionField
	totalFieldLen := facade.SumOfFieldLengths(field)

	idfCache := map[string]float64{}
	pTCCache := map[string]float64{}
	termIDF := func(term string, ctf int64) float64 {
		if v, ok := idfCache[term]; ok {
			return v
		}
		c := ctf
		if c == 0 {
			c = 1
		}
		v := math.Log(float64(totalFieldLen) / float64(c))
		idfCache[term] = v
		pTCCache[term] = float64(ctf) / float64(totalFieldLen)
		if ctf == 0 {
			pTCCache[term] = 0.5 / float64(totalFieldLen)
		}
		return v
	}

	termScore := map[string]float64{}
	lastAccounted := map[string]float64{}
	sumOfPrevDocs := 0.0

	for _, d := range docs {
		docid := d.Docid
		L := float64(facade.FieldLength(field, docid))
		s := d.Score

		tv, err := facade.TermVector(docid, field)
		if err == nil {
			for i := 1; i < len(tv.Stems); i++ {
				term := tv.Stems[i]
				if term == "" || !isExpansionCandidate(term) {
					continue
				}
				tf := tv.StemFreq[i]
				ctf := tv.TotalStemFreq[i]
				idf := termIDF(term, ctf)
				pTC := pTCCache[term]

				if _, seen := lastAccounted[term]; !seen {
					termScore[term] = sumOfPrevDocs * idf * pTC
				} else {
					gap := sumOfPrevDocs - lastAccounted[term]
					termScore[term] += gap * idf * pTC
				}

				pTD := (float64(tf) + cfg.Mu*pTC) / (L + cfg.Mu)
				termScore[term] += s * idf * pTD
				lastAccounted[term] = sumOfPrevDocs + s*cfg.Mu/(L+cfg.Mu)
			}
		}

		sumOfPrevDocs += s * cfg.Mu / (L + cfg.Mu)
	}

	out := make(ExpansionTermList, 0, len(termScore))
	for term, score := range termScore {
		idf := idfCache[term]
		pTC := pTCCache[term]
		gap := sumOfPrevDocs - lastAccounted[term]
		score += gap * idf * pTC
		out = append(out, TermScore{Term: term, Score: score})
	}
	out.Sort()

	if len(out) > cfg.NumTerms {
		out = out[:cfg.NumTerms]
	}
	return out
}

// BuildExpandedQuery builds the `#WAND(w defaultOp(originalQuery)
// (1-w) #WAND(score term score term ...))` expansion query, where defaultOp
// is the retrieval model's default wrapping operator
// (upper-cased, per the query grammar C6 wraps bare query strings in).
func BuildExpandedQuery(originalQuery, defaultOp string, origWeight float64, terms ExpansionTermList) string {
	var inner strings.Builder
	for _, t := range terms {
		fmt.Fprintf(&inner, " %v %s", t.Score, t.Term)
	}
	return fmt.Sprintf("#WAND( %v #%s(%s) %v #WAND(%s ) )",
		origWeight, strings.ToUpper(defaultOp), originalQuery, 1-origWeight, inner.String())
}
