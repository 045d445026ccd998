// Package tokenizer provides text tokenisation for the review indexer.
// It lower-cases input, splits on any character outside a-z, drops words
// outside the accepted length range and stop-words, and optionally stems.
package tokenizer

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/scoring"
)

// MaxTokenLength is the exclusive upper bound on accepted word length.
const MaxTokenLength = 50

// Token represents a single normalised term and its position among the
// surviving words of the original text.
type Token struct {
	Term     string
	Position int
}

// Config selects the filters applied to every word.
type Config struct {
	MinTokenLength int
	Stopwords      map[string]struct{}
	Stemmer        Stemmer
}

// ProcessedQuery is a tokenized query: its length and term -> positions.
type ProcessedQuery struct {
	Length    int
	Positions map[string][]int
}

// TermFreqs returns the number of occurrences of each query term.
func (q ProcessedQuery) TermFreqs() map[string]int {
	freqs := make(map[string]int, len(q.Positions))
	for term, positions := range q.Positions {
		freqs[term] = len(positions)
	}
	return freqs
}

// Tokenizer is safe for concurrent use once built.
type Tokenizer struct {
	minLength int
	stopwords map[string]struct{}
	stemmer   Stemmer
}

func New(cfg Config) *Tokenizer {
	stemmer := cfg.Stemmer
	if stemmer == nil {
		stemmer = NoStemmer{}
	}
	stopwords := cfg.Stopwords
	if stopwords == nil {
		stopwords = map[string]struct{}{}
	}
	return &Tokenizer{
		minLength: cfg.MinTokenLength,
		stopwords: stopwords,
		stemmer:   stemmer,
	}
}

// Tokenize breaks text into positioned Tokens. Filters run on the unstemmed
// word; positions count surviving words only.
func (t *Tokenizer) Tokenize(text string) []Token {
	words := strings.FieldsFunc(strings.ToLower(text), isDelimiter)
	tokens := make([]Token, 0, len(words))
	for _, word := range words {
		if len(word) < t.minLength || len(word) >= MaxTokenLength {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, Token{
			Term:     t.stemmer.Stem(word),
			Position: len(tokens),
		})
	}
	return tokens
}

// TermIndex aggregates text into term -> ascending positions and returns the
// number of surviving words.
func (t *Tokenizer) TermIndex(text string) (map[string][]int, int) {
	tokens := t.Tokenize(text)
	termIndex := make(map[string][]int)
	for _, token := range tokens {
		termIndex[token.Term] = append(termIndex[token.Term], token.Position)
	}
	return termIndex, len(tokens)
}

// Process tokenizes a review and weighs its terms with scheme.
func (t *Tokenizer) Process(review index.RawReview, scheme scoring.Scheme) index.ProcessedReview {
	termIndex, length := t.TermIndex(review.Text)
	return index.ProcessedReview{
		DocID:    review.DocID,
		ReviewID: review.ReviewID,
		Postings: scheme.RawWeights(termIndex),
		Length:   length,
	}
}

// Query runs the indexing pipeline on query text without weighting.
func (t *Tokenizer) Query(text string) ProcessedQuery {
	termIndex, length := t.TermIndex(text)
	return ProcessedQuery{Length: length, Positions: termIndex}
}

func isDelimiter(r rune) bool {
	return r < 'a' || r > 'z'
}
