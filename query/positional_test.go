package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func posting(docid uint32, positions ...uint32) Posting {
	return Posting{Docid: docid, Positions: positions}
}

func TestNearOrderedProximity(t *testing.T) {
	a := NewTerm("body", "a", InvertedList{posting(1, 1, 10, 20)})
	b := NewTerm("body", "b", InvertedList{posting(1, 2, 15, 21)})

	near, err := NewNear(2, []PositionalOperator{a, b})
	require.NoError(t, err)
	require.NoError(t, near.Initialize())

	require.True(t, near.HasMatch())
	require.Equal(t, uint32(1), near.CurrentDocid())
	require.Equal(t, []uint32{2, 21}, near.CurrentPosting().Positions)

	near.AdvancePast(1)
	require.False(t, near.HasMatch())
}

func TestWindowUnorderedProximity(t *testing.T) {
	a := NewTerm("body", "a", InvertedList{posting(1, 5, 30)})
	b := NewTerm("body", "b", InvertedList{posting(1, 6, 29)})

	win, err := NewWindow(3, []PositionalOperator{a, b})
	require.NoError(t, err)
	require.NoError(t, win.Initialize())

	require.True(t, win.HasMatch())
	require.Equal(t, []uint32{6, 30}, win.CurrentPosting().Positions)
}

func TestSynMergesAndDedupes(t *testing.T) {
	a := NewTerm("body", "dog", InvertedList{posting(1, 1, 5), posting(2, 3)})
	b := NewTerm("body", "canine", InvertedList{posting(1, 5, 9), posting(3, 4)})

	syn, err := NewSyn([]PositionalOperator{a, b})
	require.NoError(t, err)
	require.NoError(t, syn.Initialize())

	require.True(t, syn.HasMatch())
	require.Equal(t, uint32(1), syn.CurrentDocid())
	require.Equal(t, []uint32{1, 5, 9}, syn.CurrentPosting().Positions)

	syn.AdvancePast(1)
	require.True(t, syn.HasMatch())
	require.Equal(t, uint32(2), syn.CurrentDocid())

	syn.AdvancePast(2)
	require.True(t, syn.HasMatch())
	require.Equal(t, uint32(3), syn.CurrentDocid())

	syn.AdvancePast(3)
	require.False(t, syn.HasMatch())
}

func TestCommonFieldValidation(t *testing.T) {
	a := NewTerm("body", "dog", nil)
	b := NewTerm("title", "dog", nil)

	_, err := NewSyn([]PositionalOperator{a, b})
	require.Error(t, err)
}

func TestSynthesizedListStrictlyAscending(t *testing.T) {
	a := NewTerm("body", "dog", InvertedList{posting(1, 1, 10, 20), posting(5, 2)})
	b := NewTerm("body", "b", InvertedList{posting(1, 2, 15, 21), posting(5, 3)})

	near, err := NewNear(2, []PositionalOperator{a, b})
	require.NoError(t, err)
	require.NoError(t, near.Initialize())

	list := near.List()
	require.Len(t, list, 2)
	var prevDocid uint32
	for i, p := range list {
		if i > 0 {
			require.Greater(t, p.Docid, prevDocid)
		}
		prevDocid = p.Docid
		var prevPos uint32
		for j, pos := range p.Positions {
			if j > 0 {
				require.Greater(t, pos, prevPos)
			}
			prevPos = pos
		}
	}
}
