package segment

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/scoring"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/metrics"
)

// CorpusStats are the corpus-wide values final weights depend on.
type CorpusStats struct {
	ReviewCount int
	DocLengths  *index.DocLengths
}

// Writer consumes merged entries in term order and publishes a segment each
// time capacity terms have been written.
type Writer struct {
	dir       string
	scheme    scoring.Scheme
	stats     CorpusStats
	avgDocLen float64
	capacity  int
	metrics   *metrics.Metrics
	logger    *slog.Logger

	current   *openSegment
	lastTerm  string
	termCount int
	segments  int
	buf       []byte
}

type openSegment struct {
	tmpDir     string
	vocabFile  *os.File
	postFile   *os.File
	vocab      *bufio.Writer
	postings   *bufio.Writer
	offset     int64
	first      string
	last       string
	termsTotal int
}

type WriterOption func(*Writer)

func WithMetrics(m *metrics.Metrics) WriterOption {
	return func(w *Writer) { w.metrics = m }
}

func WithLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

func NewWriter(dir string, scheme scoring.Scheme, stats CorpusStats, capacity int, opts ...WriterOption) (*Writer, error) {
	if capacity < 1 {
		return nil, apperrors.Configf("segment capacity must be positive, got %d", capacity)
	}
	if stats.DocLengths == nil {
		stats.DocLengths = index.NewDocLengths()
	}
	w := &Writer{
		dir:       dir,
		scheme:    scheme,
		stats:     stats,
		avgDocLen: stats.DocLengths.Average(),
		capacity:  capacity,
		logger:    slog.Default().With("component", "segment-writer"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating segments directory: %w", err)
	}
	return w, nil
}

// Write appends one term with its complete posting list, which must be in
// strictly ascending doc id order.
func (w *Writer) Write(entry index.TermEntry) error {
	if len(entry.Postings) == 0 {
		return apperrors.Corruptf("term %q has no postings", entry.Term)
	}
	if w.termCount > 0 && entry.Term <= w.lastTerm {
		return apperrors.Corruptf("term %q after %q breaks term order", entry.Term, w.lastTerm)
	}
	if w.current == nil {
		if err := w.openSegment(entry.Term); err != nil {
			return err
		}
	}
	seg := w.current

	idf := scoring.IDF(w.stats.ReviewCount, len(entry.Postings))
	w.buf = w.buf[:0]
	prev := 0
	for i, p := range entry.Postings {
		if i > 0 && p.DocID <= prev {
			return apperrors.Corruptf("term %q: doc id %d after %d", entry.Term, p.DocID, prev)
		}
		docLen, err := w.stats.DocLengths.Length(p.DocID)
		if err != nil {
			return apperrors.Corruptf("term %q: %v", entry.Term, err)
		}
		if i > 0 {
			w.buf = append(w.buf, index.PostingSep)
		}
		weight := w.scheme.FinalWeight(idf, p.Weight, docLen, w.avgDocLen)
		w.buf = index.AppendPosting(w.buf, p.DocID-prev, weight, p.Positions)
		prev = p.DocID
	}
	w.buf = append(w.buf, '\n')

	if _, err := seg.postings.Write(w.buf); err != nil {
		return fmt.Errorf("writing postings for %q: %w", entry.Term, err)
	}
	record := appendVocabRecord(nil, VocabEntry{
		Term:   entry.Term,
		IDF:    idf,
		HasIDF: w.scheme.StoresIDF(),
		Offset: seg.offset,
		Length: int64(len(w.buf)),
	})
	if _, err := seg.vocab.Write(record); err != nil {
		return fmt.Errorf("writing vocabulary record for %q: %w", entry.Term, err)
	}
	seg.offset += int64(len(w.buf))
	seg.last = entry.Term
	seg.termsTotal++
	w.lastTerm = entry.Term
	w.termCount++

	if seg.termsTotal >= w.capacity {
		return w.closeSegment()
	}
	return nil
}

// Close publishes the last, partially filled segment and returns the number
// of distinct terms written.
func (w *Writer) Close() (int, error) {
	if w.current != nil {
		if err := w.closeSegment(); err != nil {
			return w.termCount, err
		}
	}
	return w.termCount, nil
}

// Abort releases the files of a segment still being written without
// publishing it. It does nothing after a successful Close.
func (w *Writer) Abort() error {
	seg := w.current
	if seg == nil {
		return nil
	}
	w.current = nil
	return seg.closeFiles()
}

func (w *Writer) Segments() int {
	return w.segments
}

func (w *Writer) openSegment(first string) error {
	tmpDir := filepath.Join(w.dir, fmt.Sprintf(".segment_%d", w.segments))
	if err := os.Mkdir(tmpDir, 0o755); err != nil {
		return fmt.Errorf("creating segment directory: %w", err)
	}
	vocabFile, err := os.Create(filepath.Join(tmpDir, VocabularyFile))
	if err != nil {
		return fmt.Errorf("creating vocabulary file: %w", err)
	}
	postFile, err := os.Create(filepath.Join(tmpDir, PostingsFile))
	if err != nil {
		vocabFile.Close()
		return fmt.Errorf("creating postings file: %w", err)
	}
	w.current = &openSegment{
		tmpDir:    tmpDir,
		vocabFile: vocabFile,
		postFile:  postFile,
		vocab:     bufio.NewWriterSize(vocabFile, 256<<10),
		postings:  bufio.NewWriterSize(postFile, 1<<20),
		first:     first,
	}
	return nil
}

// closeSegment flushes and syncs both files, then renames the temporary
// directory into place. On failure both files are closed and the temporary
// directory stays unpublished.
func (w *Writer) closeSegment() error {
	seg := w.current
	w.current = nil
	if err := seg.finish(); err != nil {
		seg.closeFiles()
		return err
	}
	name := Name(seg.first, seg.last)
	if err := os.Rename(seg.tmpDir, filepath.Join(w.dir, name)); err != nil {
		return fmt.Errorf("publishing segment %s: %w", name, err)
	}
	w.segments++
	if w.metrics != nil {
		w.metrics.SegmentsWrittenTotal.Inc()
		w.metrics.TermsWrittenTotal.Add(float64(seg.termsTotal))
	}
	w.logger.Debug("segment written",
		"segment", name,
		"terms", seg.termsTotal,
		"postings_bytes", seg.offset,
	)
	return nil
}

func (s *openSegment) finish() error {
	for _, f := range []struct {
		buf  *bufio.Writer
		file *os.File
	}{{s.vocab, s.vocabFile}, {s.postings, s.postFile}} {
		if err := f.buf.Flush(); err != nil {
			return fmt.Errorf("flushing %s: %w", f.file.Name(), err)
		}
		if err := f.file.Sync(); err != nil {
			return fmt.Errorf("syncing %s: %w", f.file.Name(), err)
		}
		if err := f.file.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", f.file.Name(), err)
		}
	}
	return nil
}

// closeFiles closes both files, ignoring ones finish already closed.
func (s *openSegment) closeFiles() error {
	var errs []error
	for _, f := range []*os.File{s.vocabFile, s.postFile} {
		if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
