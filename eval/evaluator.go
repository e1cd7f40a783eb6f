// Package eval drives an operator tree to completion and produces a ranked
// Score-List: wrap the query in its model's default operator, compile it,
// iterate the root to exhaustion, sort, and truncate.
package eval

import (
	"context"
	"sort"

	"github.com/rekki/qeval/query"
)

// ScoredDoc is one entry of a ScoreList: a document and its score under the
// query's retrieval model.
type ScoredDoc struct {
	Docid         uint32
	ExternalDocid string
	Score         float64
}

// ScoreList is the ordered (docid,score) sequence a query evaluation
// produces. Before Sort it is in iteration (docid-ascending) order; after
// Sort it is score-descending, ties broken by external docid ascending.
type ScoreList []ScoredDoc

// Sort orders the list score descending, external-docid ascending on ties.
// It is a stable sort, so calling it twice is a no-op.
func (sl ScoreList) Sort() {
	sort.SliceStable(sl, func(i, j int) bool {
		if sl[i].Score != sl[j].Score {
			return sl[i].Score > sl[j].Score
		}
		return sl[i].ExternalDocid < sl[j].ExternalDocid
	})
}

// Truncate returns the list capped to the first n entries (or the whole
// list if it's shorter). n<=0 means unlimited.
func (sl ScoreList) Truncate(n int) ScoreList {
	if n <= 0 || len(sl) <= n {
		return sl
	}
	return sl[:n]
}

// DocidResolver is the one facade capability the evaluator needs beyond
// what query.Compile already consumes: turning an internal docid back into
// the external id the Score-List and TREC output carry.
type DocidResolver interface {
	ExternalDocid(docid uint32) string
}

// ProcessQuery wraps qstring in the model's default operator, compiles it,
// drives the root to exhaustion, sorts, and truncates to topN (topN<=0
// means unlimited). ctx, if non-nil, is checked cooperatively between
// HasMatch and Score so a per-query deadline returns a partial ScoreList
// instead of blocking to completion.
func ProcessQuery(ctx context.Context, qstring string, topN int, model query.Model, src query.PostingSource, corpus query.CorpusStats, resolver DocidResolver, defaultField string) (ScoreList, error) {
	wrapped := "#" + defaultOpToken(model.DefaultQrySopName()) + "(" + qstring + ")"
	expr, err := query.ParseText(wrapped)
	if err != nil {
		return nil, err
	}
	if len(expr.Children) == 0 {
		return ScoreList{}, nil
	}

	root, err := query.Compile(expr, src, corpus, defaultField)
	if err != nil {
		return nil, err
	}
	if err := root.Initialize(model); err != nil {
		return nil, err
	}

	out := ScoreList{}
	for root.HasMatch(model) {
		if ctx != nil {
			select {
			case <-ctx.Done():
				out.Sort()
				return out.Truncate(topN), nil
			default:
			}
		}
		d := root.CurrentDocid()
		s, err := root.Score(model)
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredDoc{Docid: d, ExternalDocid: resolver.ExternalDocid(d), Score: s})
		root.AdvancePast(d)
	}

	out.Sort()
	return out.Truncate(topN), nil
}

func defaultOpToken(name string) string {
	switch name {
	case "and":
		return "AND"
	case "or":
		return "OR"
	case "sum":
		return "SUM"
	default:
		return "OR"
	}
}
