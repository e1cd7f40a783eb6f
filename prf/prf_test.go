package prf

import (
	"math"
	"testing"

	"github.com/rekki/qeval/eval"
	"github.com/rekki/qeval/index"
	"github.com/rekki/qeval/query"
	"github.com/stretchr/testify/require"
)

type prfDoc struct {
	id     string
	fields map[string][]string
}

func (d *prfDoc) ExternalID() string                { return d.id }
func (d *prfDoc) Fields() map[string][]string       { return d.fields }
func (d *prfDoc) Attribute(string) (string, bool)   { return "", false }

func fillerTokens(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + string(rune('a'+i%26))
	}
	return out
}

func TestExpandMatchesDirectFormula(t *testing.T) {
	d1Tokens := append([]string{"alpha", "alpha", "alpha"}, fillerTokens("w", 17)...)
	d2Tokens := fillerTokens("x", 10)

	facade := index.NewMemFacade([]index.Document{
		&prfDoc{id: "d1", fields: map[string][]string{"body": d1Tokens}},
		&prfDoc{id: "d2", fields: map[string][]string{"body": d2Tokens}},
	})

	ranking := eval.ScoreList{
		{Docid: 0, ExternalDocid: "d1", Score: 0.1},
		{Docid: 1, ExternalDocid: "d2", Score: 0.05},
	}

	cfg := Config{NumDocs: 2, NumTerms: 50, Mu: 100, OrigWeight: 0.5, ExpansionField: "body"}
	terms := Expand(ranking, facade, cfg)

	var alpha *TermScore
	for i := range terms {
		if terms[i].Term == "alpha" {
			alpha = &terms[i]
		}
	}
	require.NotNil(t, alpha)

	F := float64(facade.SumOfFieldLengths("body"))
	ctf := float64(facade.TotalTermFreq("body", "alpha"))
	L1 := float64(facade.FieldLength("body", 0))
	L2 := float64(facade.FieldLength("body", 1))
	idf := math.Log(F / ctf)
	pTC := ctf / F
	pTD1 := (3 + cfg.Mu*pTC) / (L1 + cfg.Mu)
	contribD1 := 0.1 * idf * pTD1
	zeroD2 := 0.05 * idf * pTC * cfg.Mu / (L2 + cfg.Mu)
	want := contribD1 + zeroD2

	require.InDelta(t, want, alpha.Score, 1e-9)
}

func TestExpandFiltersNonCandidateTerms(t *testing.T) {
	facade := index.NewMemFacade([]index.Document{
		&prfDoc{id: "d1", fields: map[string][]string{"body": {"good", "bad.term", "café"}}},
	})
	ranking := eval.ScoreList{{Docid: 0, ExternalDocid: "d1", Score: 1.0}}
	cfg := Config{NumDocs: 1, NumTerms: 10, Mu: 10, OrigWeight: 0.5, ExpansionField: "body"}
	terms := Expand(ranking, facade, cfg)

	var names []string
	for _, ts := range terms {
		names = append(names, ts.Term)
	}
	require.Contains(t, names, "good")
	require.NotContains(t, names, "bad.term")
	require.NotContains(t, names, "café")
}

func TestBuildExpandedQueryParses(t *testing.T) {
	terms := ExpansionTermList{{Term: "alpha", Score: 0.6}, {Term: "beta", Score: 0.4}}
	qstring := BuildExpandedQuery("dog.body cat.body", "and", 0.5, terms)

	expr, err := query.ParseText(qstring)
	require.NoError(t, err)
	require.Equal(t, "wand", expr.Op)
	require.Len(t, expr.Children, 2)
}
