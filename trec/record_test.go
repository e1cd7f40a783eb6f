package trec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	records := []Record{
		{QueryID: "q1", ExternalDocid: "docA", Rank: 1, Score: 3.5, RunID: "run1"},
		{QueryID: "q1", Intent: 2, ExternalDocid: "docB", Rank: 1, Score: 1.0, RunID: "run1"},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records))

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "q1", got[0].QueryID)
	require.Equal(t, 0, got[0].Intent)
	require.Equal(t, "q1", got[1].QueryID)
	require.Equal(t, 2, got[1].Intent)
	require.Equal(t, "docB", got[1].ExternalDocid)
}

func TestParseQueryID(t *testing.T) {
	base, intent := ParseQueryID("q7.2")
	require.Equal(t, "q7", base)
	require.Equal(t, 2, intent)

	base, intent = ParseQueryID("q7")
	require.Equal(t, "q7", base)
	require.Equal(t, 0, intent)
}

func TestWriteDummyForEmptyResultSet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDummy(&buf, "q9", 0, ""))
	got, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, DummyRecord, got[0].ExternalDocid)
	require.Equal(t, DefaultRunID, got[0].RunID)
}

func TestGroupByQuery(t *testing.T) {
	records := []Record{
		{QueryID: "q1", ExternalDocid: "a", Rank: 1, Score: 1},
		{QueryID: "q1", Intent: 1, ExternalDocid: "b", Rank: 1, Score: 1},
		{QueryID: "q1", Intent: 2, ExternalDocid: "c", Rank: 1, Score: 1},
	}
	baseline, intents := GroupByQuery(records)
	require.Len(t, baseline["q1"], 1)
	require.Len(t, intents["q1"], 2)
}
