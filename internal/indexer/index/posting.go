// Package index holds the in-memory side of the SPIMI indexer: the posting
// types shared by every stage, the per-cycle Accumulator and the textual
// posting codec used by both blocks and segments.
package index

// Posting is one document's contribution to a term. Weight is the raw
// block-time weight until the segment writer replaces it with the final one.
type Posting struct {
	DocID     int
	Weight    float64
	Positions []int
}

type PostingList []Posting

// TermEntry is a term with its complete (or block-local) posting list.
type TermEntry struct {
	Term     string
	Postings PostingList
}

// WeightedPositions is a term's weight and positions inside a single document.
type WeightedPositions struct {
	Weight    float64
	Positions []int
}

// RawReview is a record handed over by the corpus reader.
type RawReview struct {
	DocID    int
	ReviewID string
	Text     string
}

// ProcessedReview is a tokenized and weighted review, ready to accumulate.
type ProcessedReview struct {
	DocID    int
	ReviewID string
	Postings map[string]WeightedPositions
	Length   int
}
