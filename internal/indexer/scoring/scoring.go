// Package scoring implements the two weighting schemes an index can be built
// with. Block-time weights come from RawWeights; segment-time weights come
// from FinalWeight once corpus-wide statistics are known. Query-side weights
// come from QueryWeights.
package scoring

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

// Format is the on-disk name of a scheme, stored in index_props.json.
type Format string

const (
	FormatTfIdf Format = "tf_idf"
	FormatBM25  Format = "bm25"
)

const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// Scheme is a weighting scheme.
type Scheme interface {
	Format() Format
	// RawWeights turns a document's term -> positions index into block-time
	// postings.
	RawWeights(termIndex map[string][]int) map[string]index.WeightedPositions
	// FinalWeight computes the weight stored in the segment postings file.
	FinalWeight(idf, raw float64, docLen int, avgDocLen float64) float64
	// QueryWeights returns the multiplier applied to every stored weight of
	// each query term found in the index.
	QueryWeights(termFreqs map[string]int, idfs map[string]float64) map[string]float64
	// StoresIDF reports whether vocabulary records carry the term's idf.
	StoresIDF() bool
}

// New returns the scheme for format. k1 and b are ignored for TF-IDF.
func New(format Format, k1, b float64) (Scheme, error) {
	switch format {
	case FormatTfIdf:
		return TfIdf{}, nil
	case FormatBM25:
		return BM25{K1: k1, B: b}, nil
	default:
		return nil, apperrors.Configf("unknown scoring scheme %q", format)
	}
}

// IDF is log10(reviewCount / docFreq).
func IDF(reviewCount, docFreq int) float64 {
	return math.Log10(float64(reviewCount) / float64(docFreq))
}

// LogTF is the sublinear term frequency 1 + log10(tf).
func LogTF(tf int) float64 {
	return 1 + math.Log10(float64(tf))
}

// TfIdf stores L2-normalized log term frequencies at block time and
// multiplies them by the term's idf at segment time.
type TfIdf struct{}

func (TfIdf) Format() Format { return FormatTfIdf }

func (TfIdf) StoresIDF() bool { return true }

func (TfIdf) RawWeights(termIndex map[string][]int) map[string]index.WeightedPositions {
	weights := make(map[string]float64, len(termIndex))
	for term, positions := range termIndex {
		weights[term] = LogTF(len(positions))
	}
	normalize(weights)
	postings := make(map[string]index.WeightedPositions, len(termIndex))
	for term, positions := range termIndex {
		postings[term] = index.WeightedPositions{Weight: weights[term], Positions: positions}
	}
	return postings
}

func (TfIdf) FinalWeight(idf, raw float64, _ int, _ float64) float64 {
	return idf * raw
}

// QueryWeights builds the query vector idf * (1 + log10 tf), L2-normalized
// over the terms present in idfs.
func (TfIdf) QueryWeights(termFreqs map[string]int, idfs map[string]float64) map[string]float64 {
	weights := make(map[string]float64, len(idfs))
	for term, idf := range idfs {
		tf, ok := termFreqs[term]
		if !ok {
			continue
		}
		weights[term] = idf * LogTF(tf)
	}
	normalize(weights)
	return weights
}

// BM25 stores raw term frequencies at block time. The full BM25 contribution
// is computed at segment time, when the average document length is known.
type BM25 struct {
	K1 float64
	B  float64
}

func (BM25) Format() Format { return FormatBM25 }

func (BM25) StoresIDF() bool { return false }

func (BM25) RawWeights(termIndex map[string][]int) map[string]index.WeightedPositions {
	postings := make(map[string]index.WeightedPositions, len(termIndex))
	for term, positions := range termIndex {
		postings[term] = index.WeightedPositions{Weight: float64(len(positions)), Positions: positions}
	}
	return postings
}

func (s BM25) FinalWeight(idf, tf float64, docLen int, avgDocLen float64) float64 {
	lengthRatio := 0.0
	if avgDocLen > 0 {
		lengthRatio = float64(docLen) / avgDocLen
	}
	norm := s.K1 * (1 - s.B + s.B*lengthRatio)
	return idf * (s.K1 + 1) * tf / (norm + tf)
}

// QueryWeights is 1 for every found term: stored weights already are the
// complete BM25 contribution.
func (BM25) QueryWeights(termFreqs map[string]int, idfs map[string]float64) map[string]float64 {
	weights := make(map[string]float64, len(idfs))
	for term := range idfs {
		if _, ok := termFreqs[term]; ok {
			weights[term] = 1
		}
	}
	return weights
}

// normalize divides every weight by the vector's L2 norm. A zero vector is
// left untouched. Squares are summed in term order so equal vectors always
// normalize to bit-identical weights.
func normalize(weights map[string]float64) {
	terms := make([]string, 0, len(weights))
	for term := range weights {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	var sumSquares float64
	for _, term := range terms {
		w := weights[term]
		sumSquares += w * w
	}
	if sumSquares == 0 {
		return
	}
	norm := math.Sqrt(sumSquares)
	for term, w := range weights {
		weights[term] = w / norm
	}
}
