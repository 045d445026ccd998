package store

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

// AppendReviewIDs appends ids, one per line, to the review id file. Ids are
// appended in doc id order, so line n holds the review id of doc n.
func AppendReviewIDs(path string, ids []string) error {
	for _, id := range ids {
		if strings.ContainsAny(id, "\r\n") {
			return apperrors.CorpusFormatf("review id %q contains a line break", id)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening review ids: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, id := range ids {
		w.WriteString(id)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("appending review ids: %w", err)
	}
	return f.Close()
}

// ReviewIDIndex resolves doc ids to review ids with one positioned read per
// lookup. The offset table is built by scanning the file once at open.
type ReviewIDIndex struct {
	f       *os.File
	base    int
	offsets []int64
	lengths []int32
}

// OpenReviewIDs opens the review id file of an index whose first doc id is
// base.
func OpenReviewIDs(path string, base int) (*ReviewIDIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening review ids: %w", err)
	}
	idx := &ReviewIDIndex{f: f, base: base}
	r := bufio.NewReaderSize(f, 256<<10)
	var offset int64
	for {
		line, err := r.ReadSlice('\n')
		if len(line) > 0 {
			if line[len(line)-1] != '\n' {
				f.Close()
				return nil, apperrors.Corruptf("review ids: last entry is not newline terminated")
			}
			idx.offsets = append(idx.offsets, offset)
			idx.lengths = append(idx.lengths, int32(len(line)))
			offset += int64(len(line))
		}
		if err == io.EOF {
			break
		}
		if err == bufio.ErrBufferFull {
			f.Close()
			return nil, apperrors.Corruptf("review ids: entry at offset %d is too long", offset)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("scanning review ids: %w", err)
		}
	}
	return idx, nil
}

func (r *ReviewIDIndex) Len() int {
	return len(r.offsets)
}

// Lookup returns the review id of docID.
func (r *ReviewIDIndex) Lookup(docID int) (string, error) {
	i := docID - r.base
	if i < 0 || i >= len(r.offsets) {
		return "", apperrors.Corruptf("doc id %d has no review id", docID)
	}
	buf := make([]byte, r.lengths[i])
	if _, err := r.f.ReadAt(buf, r.offsets[i]); err != nil {
		return "", fmt.Errorf("reading review id of doc %d: %w", docID, err)
	}
	return string(bytes.TrimSuffix(buf, []byte{'\n'})), nil
}

func (r *ReviewIDIndex) Close() error {
	return r.f.Close()
}
