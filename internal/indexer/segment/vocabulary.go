// Package segment writes and reads the final index: a directory of
// immutable segments, each covering a contiguous term range and named
// "<firstTerm>-<lastTerm>".
//
// A segment holds two files. vocabulary.txt has one record per term,
// "term:idf:offset:length" for TF-IDF indexes and "term:offset:length" for
// BM25 indexes. postings.txt holds, at [offset, offset+length), the term's
// postings "deltaDocId:weight:p1,p2;...\n" where the first doc id is
// absolute.
package segment

import (
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

const (
	VocabularyFile = "vocabulary.txt"
	PostingsFile   = "postings.txt"
	rangeSep       = "-"
)

// VocabEntry locates a term's postings inside its segment.
type VocabEntry struct {
	Term   string
	IDF    float64
	HasIDF bool
	Offset int64
	Length int64
}

func appendVocabRecord(buf []byte, e VocabEntry) []byte {
	buf = append(buf, e.Term...)
	buf = append(buf, index.FieldSep)
	if e.HasIDF {
		buf = strconv.AppendFloat(buf, e.IDF, 'g', -1, 64)
		buf = append(buf, index.FieldSep)
	}
	buf = strconv.AppendInt(buf, e.Offset, 10)
	buf = append(buf, index.FieldSep)
	buf = strconv.AppendInt(buf, e.Length, 10)
	return append(buf, '\n')
}

// parseVocabRecord decodes a record without its trailing newline. The idf
// field is recognised by the number of fields.
func parseVocabRecord(line string) (VocabEntry, error) {
	fields := strings.Split(line, string(index.FieldSep))
	var e VocabEntry
	var offset, length string
	switch len(fields) {
	case 4:
		idf, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return VocabEntry{}, apperrors.Corruptf("vocabulary record %q idf: %v", line, err)
		}
		e.IDF, e.HasIDF = idf, true
		offset, length = fields[2], fields[3]
	case 3:
		offset, length = fields[1], fields[2]
	default:
		return VocabEntry{}, apperrors.Corruptf("vocabulary record %q has %d fields", line, len(fields))
	}
	e.Term = fields[0]
	var err error
	if e.Offset, err = strconv.ParseInt(offset, 10, 64); err != nil || e.Offset < 0 {
		return VocabEntry{}, apperrors.Corruptf("vocabulary record %q offset", line)
	}
	if e.Length, err = strconv.ParseInt(length, 10, 64); err != nil || e.Length <= 0 {
		return VocabEntry{}, apperrors.Corruptf("vocabulary record %q length", line)
	}
	return e, nil
}

// Name returns the directory name of a segment covering [first, last].
func Name(first, last string) string {
	return first + rangeSep + last
}

// parseName splits a segment directory name into its term range.
func parseName(name string) (first, last string, ok bool) {
	first, last, ok = strings.Cut(name, rangeSep)
	if !ok || first == "" || last == "" || first > last {
		return "", "", false
	}
	return first, last, true
}
