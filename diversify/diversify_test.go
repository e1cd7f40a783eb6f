package diversify

import (
	"testing"

	"github.com/rekki/qeval/eval"
	"github.com/stretchr/testify/require"
)

func TestXQuADPicksBroadCoverageSecond(t *testing.T) {
	baseline := eval.ScoreList{
		{Docid: 0, ExternalDocid: "a", Score: 0.5},
		{Docid: 1, ExternalDocid: "b", Score: 0.4},
		{Docid: 2, ExternalDocid: "c", Score: 0.3},
	}
	intent1 := eval.ScoreList{
		{Docid: 0, ExternalDocid: "a", Score: 0.9},
		{Docid: 1, ExternalDocid: "b", Score: 0.1},
	}
	intent2 := eval.ScoreList{
		{Docid: 2, ExternalDocid: "c", Score: 0.8},
		{Docid: 1, ExternalDocid: "b", Score: 0.2},
	}
	cfg := Config{Algorithm: XQuAD, Lambda: 0.5, MaxInputRankingsLength: 10, MaxResultRankingLength: 2}

	out := Diversify(baseline, []eval.ScoreList{intent1, intent2}, cfg)
	require.Len(t, out, 2)
	require.Equal(t, "a", out[0].ExternalDocid)
	require.Equal(t, "c", out[1].ExternalDocid)
}

func TestDiversifyOutputBoundedAndContained(t *testing.T) {
	baseline := eval.ScoreList{
		{Docid: 0, ExternalDocid: "a", Score: 5},
		{Docid: 1, ExternalDocid: "b", Score: 4},
		{Docid: 2, ExternalDocid: "c", Score: 3},
		{Docid: 3, ExternalDocid: "d", Score: 2},
	}
	intent1 := eval.ScoreList{{Docid: 0, ExternalDocid: "a", Score: 10}}
	cfg := Config{Algorithm: PM2, Lambda: 0.5, MaxInputRankingsLength: 10, MaxResultRankingLength: 3}

	out := Diversify(baseline, []eval.ScoreList{intent1}, cfg)
	require.LessOrEqual(t, len(out), 3)

	baselineSet := map[string]bool{}
	for _, d := range baseline {
		baselineSet[d.ExternalDocid] = true
	}
	for _, d := range out {
		require.True(t, baselineSet[d.ExternalDocid])
	}
}

func TestPM2EnforcesStrictlyDecreasingScores(t *testing.T) {
	baseline := eval.ScoreList{
		{Docid: 0, ExternalDocid: "a", Score: 1},
		{Docid: 1, ExternalDocid: "b", Score: 1},
		{Docid: 2, ExternalDocid: "c", Score: 1},
	}
	intent1 := eval.ScoreList{
		{Docid: 0, ExternalDocid: "a", Score: 1},
		{Docid: 1, ExternalDocid: "b", Score: 1},
		{Docid: 2, ExternalDocid: "c", Score: 1},
	}
	cfg := Config{Algorithm: PM2, Lambda: 0.5, MaxInputRankingsLength: 10, MaxResultRankingLength: 3}

	out := Diversify(baseline, []eval.ScoreList{intent1}, cfg)
	for i := 1; i < len(out); i++ {
		require.Less(t, out[i].Score, out[i-1].Score)
	}
}

func TestNormalizationSkippedWhenAllScoresAtMostOne(t *testing.T) {
	baseline := eval.ScoreList{{Docid: 0, ExternalDocid: "a", Score: 0.5}}
	require.Equal(t, 1.0, normalizationFactor(baseline, nil))
}

func TestNormalizationUsesLargestColumnSum(t *testing.T) {
	baseline := eval.ScoreList{
		{Docid: 0, ExternalDocid: "a", Score: 5},
		{Docid: 1, ExternalDocid: "b", Score: 3},
	}
	intent := eval.ScoreList{{Docid: 0, ExternalDocid: "a", Score: 1}}
	require.Equal(t, 8.0, normalizationFactor(baseline, []eval.ScoreList{intent}))
}
