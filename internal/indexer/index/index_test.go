package index

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

func TestAccumulatorSnapshotSortedByTerm(t *testing.T) {
	acc := NewAccumulator()
	acc.AddDocument(ProcessedReview{
		DocID:    0,
		ReviewID: "R0",
		Postings: map[string]WeightedPositions{
			"the": {Weight: 1, Positions: []int{0}},
			"cat": {Weight: 1, Positions: []int{1}},
		},
		Length: 2,
	})
	acc.AddDocument(ProcessedReview{
		DocID:    1,
		ReviewID: "R1",
		Postings: map[string]WeightedPositions{
			"cat": {Weight: 2, Positions: []int{0, 3}},
		},
		Length: 4,
	})

	snap := acc.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "cat", snap[0].Term)
	assert.Equal(t, "the", snap[1].Term)
	assert.Equal(t, PostingList{
		{DocID: 0, Weight: 1, Positions: []int{1}},
		{DocID: 1, Weight: 2, Positions: []int{0, 3}},
	}, snap[0].Postings)
	assert.Equal(t, []string{"R0", "R1"}, acc.ReviewIDs())
	assert.Equal(t, 2, acc.Terms())
	assert.Equal(t, 2, acc.DocCount())
	assert.Equal(t, 3, acc.PostingCount())
}

func TestPostingCodecRoundTrip(t *testing.T) {
	postings := PostingList{
		{DocID: 0, Weight: 0.7071067811865475, Positions: []int{0, 4, 9}},
		{DocID: 12, Weight: 3, Positions: []int{2}},
		{DocID: 13, Weight: 1e-7, Positions: []int{0}},
	}
	encoded := string(AppendPostings(nil, postings))
	assert.Equal(t, "0:0.7071067811865475:0,4,9;12:3:2;13:1e-07:0", encoded)

	decoded, err := ParsePostings(encoded)
	require.NoError(t, err)
	assert.Equal(t, postings, decoded)
}

func TestParsePostingRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "1", "1:2", "x:1:0", "1:y:0", "1:1:a,b"} {
		_, err := ParsePosting(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, apperrors.ErrCorruptIndex), in)
	}
}

func TestDocLengths(t *testing.T) {
	dl := NewDocLengths()
	require.NoError(t, dl.Add(5, 3))
	require.NoError(t, dl.Add(6, 5))
	require.NoError(t, dl.Add(7, 4))

	assert.Equal(t, 5, dl.Base())
	assert.Equal(t, 3, dl.Count())
	assert.InDelta(t, 4.0, dl.Average(), 1e-12)

	n, err := dl.Length(6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = dl.Length(4)
	assert.Error(t, err)

	err = dl.Add(9, 1)
	assert.True(t, errors.Is(err, apperrors.ErrCorpusFormat))
}
