package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

func TestNew(t *testing.T) {
	s, err := New(FormatTfIdf, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, FormatTfIdf, s.Format())
	assert.True(t, s.StoresIDF())

	s, err = New(FormatBM25, 1.2, 0.75)
	require.NoError(t, err)
	assert.Equal(t, BM25{K1: 1.2, B: 0.75}, s)
	assert.False(t, s.StoresIDF())

	_, err = New("lsi", 0, 0)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
}

func TestTfIdfRawWeightsAreUnitLength(t *testing.T) {
	termIndex := map[string][]int{
		"great":   {0, 4, 7},
		"battery": {1},
		"life":    {2, 9},
		"phone":   {3},
	}
	postings := TfIdf{}.RawWeights(termIndex)
	require.Len(t, postings, 4)

	var sum float64
	for term, wp := range postings {
		assert.Equal(t, termIndex[term], wp.Positions)
		sum += wp.Weight * wp.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, postings["great"].Weight, postings["life"].Weight)
	assert.Greater(t, postings["life"].Weight, postings["phone"].Weight)
}

func TestTfIdfFinalWeight(t *testing.T) {
	assert.InDelta(t, 0.5*0.25, TfIdf{}.FinalWeight(0.25, 0.5, 10, 3), 1e-12)
}

func TestBM25RawWeightsAreCounts(t *testing.T) {
	postings := BM25{K1: 1.2, B: 0.75}.RawWeights(map[string][]int{"cat": {0, 2}, "dog": {1}})
	assert.Equal(t, 2.0, postings["cat"].Weight)
	assert.Equal(t, 1.0, postings["dog"].Weight)
}

func TestBM25FinalWeightMatchesClosedForm(t *testing.T) {
	k1, b := 1.2, 0.75
	reviewCount, docFreq := 1000, 10
	idf := IDF(reviewCount, docFreq)
	assert.InDelta(t, 2.0, idf, 1e-12)

	// a single occurrence in a document of average length: the length
	// normalization collapses to k1, so the weight is idf*(k1+1)/(k1+1) = idf
	got := BM25{K1: k1, B: b}.FinalWeight(idf, 1, 40, 40)
	want := idf * ((k1 + 1) * 1) / (k1*(1-b+b*(40.0/40.0)) + 1)
	assert.InDelta(t, want, got, 1e-12)
	assert.InDelta(t, idf, got, 1e-12)

	longer := BM25{K1: k1, B: b}.FinalWeight(idf, 1, 80, 40)
	assert.Less(t, longer, got)
}

func TestTfIdfQueryWeights(t *testing.T) {
	weights := TfIdf{}.QueryWeights(
		map[string]int{"cat": 1, "dog": 2, "missing": 1},
		map[string]float64{"cat": 0.5, "dog": 0.25},
	)
	require.Len(t, weights, 2)
	cat := 0.5
	dog := 0.25 * (1 + math.Log10(2))
	norm := math.Sqrt(cat*cat + dog*dog)
	assert.InDelta(t, cat/norm, weights["cat"], 1e-12)
	assert.InDelta(t, dog/norm, weights["dog"], 1e-12)
}

func TestTfIdfQueryWeightsZeroIdf(t *testing.T) {
	weights := TfIdf{}.QueryWeights(map[string]int{"the": 1}, map[string]float64{"the": 0})
	assert.Equal(t, map[string]float64{"the": 0}, weights)
}

func TestBM25QueryWeights(t *testing.T) {
	weights := BM25{}.QueryWeights(map[string]int{"cat": 3}, map[string]float64{"cat": 0})
	assert.Equal(t, map[string]float64{"cat": 1}, weights)
}

func TestTfIdfRawWeightsAreReproducible(t *testing.T) {
	termIndex := map[string][]int{
		"great":   {0, 4, 7},
		"battery": {1},
		"life":    {2, 9},
		"phone":   {3},
		"charger": {5, 6},
		"cable":   {8},
		"screen":  {10, 11, 12, 13},
		"bright":  {14},
	}
	first := TfIdf{}.RawWeights(termIndex)
	for i := 0; i < 200; i++ {
		again := TfIdf{}.RawWeights(termIndex)
		for term, wp := range first {
			require.Equal(t, wp.Weight, again[term].Weight, "run %d term %s", i, term)
		}
	}
}

func TestTfIdfQueryWeightsAreReproducible(t *testing.T) {
	termFreqs := map[string]int{"great": 2, "battery": 1, "life": 3, "phone": 1, "cheap": 1, "case": 2}
	idfs := map[string]float64{"great": 0.31, "battery": 1.7, "life": 0.92, "phone": 0.44, "cheap": 1.13, "case": 0.58}
	first := TfIdf{}.QueryWeights(termFreqs, idfs)
	for i := 0; i < 200; i++ {
		require.Equal(t, first, TfIdf{}.QueryWeights(termFreqs, idfs), "run %d", i)
	}
}
