package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTextSimpleAnd(t *testing.T) {
	expr, err := ParseText("#AND(dog.body cat)")
	require.NoError(t, err)
	require.Equal(t, "and", expr.Op)
	require.Len(t, expr.Children, 2)
	require.Equal(t, "body", expr.Children[0].Field)
	require.Equal(t, "dog", expr.Children[0].Term)
	require.Equal(t, "", expr.Children[1].Field)
	require.Equal(t, "cat", expr.Children[1].Term)
}

func TestParseTextNearWithK(t *testing.T) {
	expr, err := ParseText("#NEAR/2(dog.body cat.body)")
	require.NoError(t, err)
	require.Equal(t, "near", expr.Op)
	require.Equal(t, 2, expr.K)
	require.Len(t, expr.Children, 2)
}

func TestParseTextWeightedAnd(t *testing.T) {
	expr, err := ParseText("#WAND( 2.0 dog.body 1.0 cat.body )")
	require.NoError(t, err)
	require.Equal(t, "wand", expr.Op)
	require.Len(t, expr.Children, 2)
	require.Equal(t, 2.0, expr.Children[0].Weight)
	require.Equal(t, 1.0, expr.Children[1].Weight)
}

func TestParseTextNestedSyn(t *testing.T) {
	expr, err := ParseText("#AND(#SYN(dog canine) cat.body)")
	require.NoError(t, err)
	require.Equal(t, "and", expr.Op)
	require.Len(t, expr.Children, 2)
	require.Equal(t, "syn", expr.Children[0].Op)
	require.Len(t, expr.Children[0].Children, 2)
}

func TestParseTextRejectsTrailingTokens(t *testing.T) {
	_, err := ParseText("#AND(dog) cat")
	require.Error(t, err)
}

type mapSource map[string]InvertedList

func (m mapSource) Postings(field, term string) InvertedList {
	return m[field+":"+term]
}

func TestCompileEndToEnd(t *testing.T) {
	src := mapSource{
		"body:dog": InvertedList{{Docid: 0, Positions: []uint32{0}}},
		"body:cat": InvertedList{{Docid: 0, Positions: []uint32{1}}},
	}
	corpus := &fakeCorpus{field: "body", lengths: map[uint32]int{0: 10}, n: 1, sumLen: 10}

	expr, err := ParseText("#AND(dog.body cat.body)")
	require.NoError(t, err)

	op, err := Compile(expr, src, corpus, "body")
	require.NoError(t, err)

	model := UnrankedBoolean{}
	require.NoError(t, op.Initialize(model))
	require.True(t, op.HasMatch(model))
	require.Equal(t, uint32(0), op.CurrentDocid())
	score, err := op.Score(model)
	require.NoError(t, err)
	require.Equal(t, 1.0, score)
}
