package main

import (
	"bufio"
	"bytes"
	"context"
	"testing"

	"github.com/rekki/qeval/config"
	"github.com/rekki/qeval/index"
	"github.com/rekki/qeval/query"
	"github.com/stretchr/testify/require"
)

type cmdDoc struct {
	id     string
	fields map[string][]string
}

func (d *cmdDoc) ExternalID() string              { return d.id }
func (d *cmdDoc) Fields() map[string][]string     { return d.fields }
func (d *cmdDoc) Attribute(string) (string, bool) { return "", false }

func TestExtractTermsNoSpaceBeforeParen(t *testing.T) {
	// The grammar's own convention has no space between an operator and
	// its opening paren — query/textparse_test.go exercises exactly this
	// with ParseText("#AND(dog.body cat)").
	terms, err := extractTerms("#AND(dog.body cat.body)")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"dog", "cat"}, terms)
}

func TestExtractTermsBareTerms(t *testing.T) {
	terms, err := extractTerms("dog.body cat.body")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"dog", "cat"}, terms)
}

func TestExtractTermsWandIgnoresWeights(t *testing.T) {
	terms, err := extractTerms("#WAND(0.6 dog.body 0.4 cat.body)")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"dog", "cat"}, terms)
}

func TestRunLTRWritesOneLinePerCandidate(t *testing.T) {
	facade := index.NewMemFacade([]index.Document{
		&cmdDoc{id: "d1", fields: map[string][]string{"body": {"dog", "runs"}, "title": {"dog"}}},
		&cmdDoc{id: "d2", fields: map[string][]string{"body": {"cat"}}},
	})
	model := query.BM25{K1: 1.2, B: 0.75, K3: 0}
	params := config.Params{BM25K1: 1.2, BM25B: 0.75, BM25K3: 0, TrecEvalOutputLength: 10}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	err := runLTR(context.Background(), queryLine{ID: "q1", Expr: "#AND(dog.body)"}, facade, model, params, "body", w)
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	out := buf.String()
	require.Contains(t, out, "qid:q1")
	require.Contains(t, out, "#docid=d1")
	require.NotContains(t, out, "#docid=d2")
}
