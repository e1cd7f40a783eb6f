package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequiredAndDefaults(t *testing.T) {
	src := `
indexPath = /tmp/idx
queryFilePath = /tmp/queries.txt
trecEvalOutputPath = /tmp/out.trec
retrievalAlgorithm = bm25
BM25:k_1 = 1.5
`
	p, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, "/tmp/idx", p.IndexPath)
	require.Equal(t, "bm25", p.RetrievalAlgorithm)
	require.Equal(t, 1.5, p.BM25K1)
	require.Equal(t, 0.75, p.BM25B) // default unchanged
	require.Equal(t, 1000, p.TrecEvalOutputLength)
}

func TestParseMissingRequiredKey(t *testing.T) {
	src := `
queryFilePath = /tmp/queries.txt
trecEvalOutputPath = /tmp/out.trec
retrievalAlgorithm = bm25
`
	_, err := Parse(strings.NewReader(src))
	require.Error(t, err)
	var missing *ParameterMissingError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "indexPath", missing.Key)
}

func TestParseMalformedNumber(t *testing.T) {
	src := `
indexPath = /tmp/idx
queryFilePath = /tmp/queries.txt
trecEvalOutputPath = /tmp/out.trec
retrievalAlgorithm = bm25
BM25:k_1 = not-a-number
`
	_, err := Parse(strings.NewReader(src))
	require.Error(t, err)
	var malformed *ParameterMalformedError
	require.ErrorAs(t, err, &malformed)
}

func TestParsePRFAndDiversityKeys(t *testing.T) {
	src := `
indexPath = /tmp/idx
queryFilePath = /tmp/queries.txt
trecEvalOutputPath = /tmp/out.trec
retrievalAlgorithm = indri
prf = true
prf:numDocs = 5
prf:Indri:origWeight = 0.7
diversity = true
diversity:algorithm = PM2
diversity:lambda = 0.3
ltr:modelPath = /tmp/model.txt
`
	p, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.True(t, p.PRF.Enabled)
	require.Equal(t, 5, p.PRF.NumDocs)
	require.Equal(t, 0.7, p.PRF.OrigWeight)
	require.True(t, p.Diversity.Enabled)
	require.Equal(t, "PM2", p.Diversity.Algorithm)
	require.Equal(t, 0.3, p.Diversity.Lambda)
	require.Equal(t, "/tmp/model.txt", p.LTR["ltr:modelPath"])
}

func TestParseRejectsUnknownAlgorithm(t *testing.T) {
	src := `
indexPath = /tmp/idx
queryFilePath = /tmp/queries.txt
trecEvalOutputPath = /tmp/out.trec
retrievalAlgorithm = madeup
`
	_, err := Parse(strings.NewReader(src))
	require.Error(t, err)
}
