package index

import (
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

const (
	PostingSep  = ';'
	FieldSep    = ':'
	PositionSep = ','
)

// AppendPosting appends "docID:weight:p1,p2,..." to buf.
func AppendPosting(buf []byte, docID int, weight float64, positions []int) []byte {
	buf = strconv.AppendInt(buf, int64(docID), 10)
	buf = append(buf, FieldSep)
	buf = strconv.AppendFloat(buf, weight, 'g', -1, 64)
	buf = append(buf, FieldSep)
	for i, pos := range positions {
		if i > 0 {
			buf = append(buf, PositionSep)
		}
		buf = strconv.AppendInt(buf, int64(pos), 10)
	}
	return buf
}

// AppendPostings appends a ';' separated list of postings, doc ids verbatim.
func AppendPostings(buf []byte, postings PostingList) []byte {
	for i, p := range postings {
		if i > 0 {
			buf = append(buf, PostingSep)
		}
		buf = AppendPosting(buf, p.DocID, p.Weight, p.Positions)
	}
	return buf
}

// ParsePosting decodes a single "docID:weight:positions" record.
func ParsePosting(s string) (Posting, error) {
	docPart, rest, ok := strings.Cut(s, string(FieldSep))
	if !ok {
		return Posting{}, apperrors.Corruptf("posting %q has no weight", s)
	}
	weightPart, posPart, ok := strings.Cut(rest, string(FieldSep))
	if !ok {
		return Posting{}, apperrors.Corruptf("posting %q has no positions", s)
	}
	docID, err := strconv.Atoi(docPart)
	if err != nil {
		return Posting{}, apperrors.Corruptf("posting %q doc id: %v", s, err)
	}
	weight, err := strconv.ParseFloat(weightPart, 64)
	if err != nil {
		return Posting{}, apperrors.Corruptf("posting %q weight: %v", s, err)
	}
	positions, err := parsePositions(posPart)
	if err != nil {
		return Posting{}, apperrors.Corruptf("posting %q positions: %v", s, err)
	}
	return Posting{DocID: docID, Weight: weight, Positions: positions}, nil
}

// ParsePostings decodes a ';' separated list of postings.
func ParsePostings(s string) (PostingList, error) {
	parts := strings.Split(s, string(PostingSep))
	postings := make(PostingList, 0, len(parts))
	for _, part := range parts {
		p, err := ParsePosting(part)
		if err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, nil
}

func parsePositions(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, string(PositionSep))
	positions := make([]int, len(fields))
	for i, f := range fields {
		pos, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		positions[i] = pos
	}
	return positions, nil
}
