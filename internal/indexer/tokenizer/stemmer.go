package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kljensen/snowball"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

// Stemmer names persisted in index_props.json.
const (
	EnglishStemmerName = "english_stemmer"
	NoStemmerName      = "no_stemmer"
)

type Stemmer interface {
	Stem(word string) string
	Name() string
}

// EnglishStemmer is the Snowball (Porter2) english stemmer.
type EnglishStemmer struct{}

func (EnglishStemmer) Stem(word string) string {
	stemmed, err := snowball.Stem(word, "english", true)
	if err != nil {
		return word
	}
	return stemmed
}

func (EnglishStemmer) Name() string { return EnglishStemmerName }

type NoStemmer struct{}

func (NoStemmer) Stem(word string) string { return word }

func (NoStemmer) Name() string { return NoStemmerName }

// StemmerByName accepts both the config names ("english", "none") and the
// names stored in index properties.
func StemmerByName(name string) (Stemmer, error) {
	switch name {
	case "english", EnglishStemmerName:
		return EnglishStemmer{}, nil
	case "", "none", NoStemmerName:
		return NoStemmer{}, nil
	default:
		return nil, apperrors.Configf("unknown stemmer %q", name)
	}
}

// LoadStopwords reads a stopword file. Words may be separated by newlines or
// commas; blank entries are ignored.
func LoadStopwords(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stopwords file: %w", err)
	}
	defer f.Close()

	stopwords := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		for _, word := range strings.Split(scanner.Text(), ",") {
			word = strings.ToLower(strings.TrimSpace(word))
			if word != "" {
				stopwords[word] = struct{}{}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stopwords file: %w", err)
	}
	return stopwords, nil
}

// StopwordSet builds a set from a word list.
func StopwordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// SortedStopwords returns the set as a sorted slice, for persistence.
func SortedStopwords(set map[string]struct{}) []string {
	words := make([]string, 0, len(set))
	for w := range set {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
