package index

import "sort"

// Accumulator is the in-memory vocabulary of one accumulation cycle. It is
// owned by the indexing loop and replaced, not reset, after each flush.
type Accumulator struct {
	vocab     map[string]PostingList
	reviewIDs []string
	postings  int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		vocab: make(map[string]PostingList),
	}
}

// AddDocument appends one posting per term of review. Documents must arrive
// in ascending doc id order so each list stays sorted by insertion.
func (a *Accumulator) AddDocument(review ProcessedReview) {
	a.reviewIDs = append(a.reviewIDs, review.ReviewID)
	for term, wp := range review.Postings {
		a.vocab[term] = append(a.vocab[term], Posting{
			DocID:     review.DocID,
			Weight:    wp.Weight,
			Positions: wp.Positions,
		})
		a.postings++
	}
}

// Snapshot returns the vocabulary sorted by term. Posting lists are shared,
// not copied.
func (a *Accumulator) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(a.vocab))
	for term, postings := range a.vocab {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

func (a *Accumulator) ReviewIDs() []string {
	return a.reviewIDs
}

func (a *Accumulator) Terms() int {
	return len(a.vocab)
}

func (a *Accumulator) DocCount() int {
	return len(a.reviewIDs)
}

func (a *Accumulator) PostingCount() int {
	return a.postings
}
