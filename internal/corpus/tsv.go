package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

// Columns read from the tab separated dump. Missing optional columns read
// as empty strings.
const (
	colReviewID = "review_id"
	colTitle    = "product_title"
	colHeadline = "review_headline"
	colBody     = "review_body"
)

// TSVReader reads a tab separated review dump with a header row. Files
// ending in .gz are gunzipped and files ending in .zst are zstd decoded.
type TSVReader struct {
	file    *os.File
	closers []func() error
	csv     *csv.Reader
	columns map[string]int
	nextID  int
}

func OpenTSV(path string, docIDOffset int) (*TSVReader, error) {
	if err := checkOffset(docIDOffset); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, apperrors.Configf("corpus path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	r := &TSVReader{file: f, nextID: docIDOffset}

	var src io.Reader = f
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, apperrors.CorpusFormatf("gzip header of %s: %v", path, err)
		}
		r.closers = append(r.closers, gz.Close)
		src = gz
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		r.closers = append(r.closers, func() error { zr.Close(); return nil })
		src = zr
	}

	r.csv = csv.NewReader(src)
	r.csv.Comma = '\t'
	r.csv.LazyQuotes = true
	r.csv.FieldsPerRecord = -1
	r.csv.ReuseRecord = true

	header, err := r.csv.Read()
	if err != nil {
		r.Close()
		if errors.Is(err, io.EOF) {
			return nil, apperrors.CorpusFormatf("%s has no header row", path)
		}
		return nil, apperrors.CorpusFormatf("header of %s: %v", path, err)
	}
	r.columns = make(map[string]int, len(header))
	for i, name := range header {
		r.columns[strings.TrimSpace(name)] = i
	}
	if _, ok := r.columns[colReviewID]; !ok {
		r.Close()
		return nil, apperrors.CorpusFormatf("%s has no %s column", path, colReviewID)
	}
	return r, nil
}

func (r *TSVReader) Next() (index.RawReview, error) {
	record, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return index.RawReview{}, io.EOF
	}
	if err != nil {
		return index.RawReview{}, apperrors.CorpusFormatf("record %d: %v", r.nextID, err)
	}
	review, err := newReview(r.nextID,
		r.field(record, colReviewID),
		r.field(record, colTitle),
		r.field(record, colHeadline),
		r.field(record, colBody),
	)
	if err != nil {
		return index.RawReview{}, err
	}
	r.nextID++
	return review, nil
}

func (r *TSVReader) field(record []string, column string) string {
	i, ok := r.columns[column]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func (r *TSVReader) Close() error {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	return r.file.Close()
}
