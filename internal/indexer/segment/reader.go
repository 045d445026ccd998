package segment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

// Segment is one published segment. Its vocabulary and postings file are
// opened on first use.
type Segment struct {
	First string
	Last  string
	path  string

	mu       sync.Mutex
	vocab    []VocabEntry
	postings *os.File
}

func (s *Segment) Path() string {
	return s.path
}

// Directory is the ordered list of segments of an index. It is safe for
// concurrent use.
type Directory struct {
	segments []*Segment
	loads    singleflight.Group
}

// OpenDirectory lists dir and orders its segments by term range. Names that
// start with '.' are unpublished segments and are skipped.
func OpenDirectory(dir string) (*Directory, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	d := &Directory{}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		first, last, ok := parseName(e.Name())
		if !ok {
			return nil, apperrors.Corruptf("unexpected segment directory %q", e.Name())
		}
		d.segments = append(d.segments, &Segment{
			First: first,
			Last:  last,
			path:  filepath.Join(dir, e.Name()),
		})
	}
	sort.Slice(d.segments, func(i, j int) bool {
		return d.segments[i].First < d.segments[j].First
	})
	for i := 1; i < len(d.segments); i++ {
		if d.segments[i-1].Last >= d.segments[i].First {
			return nil, apperrors.Corruptf("segments %s and %s overlap",
				Name(d.segments[i-1].First, d.segments[i-1].Last),
				Name(d.segments[i].First, d.segments[i].Last))
		}
	}
	return d, nil
}

func (d *Directory) Segments() []*Segment {
	return d.segments
}

// Locate returns the segment whose term range contains term.
func (d *Directory) Locate(term string) (*Segment, bool) {
	i := sort.Search(len(d.segments), func(i int) bool {
		return d.segments[i].Last >= term
	})
	if i < len(d.segments) && d.segments[i].First <= term {
		return d.segments[i], true
	}
	return nil, false
}

// Lookup finds term's vocabulary entry. A term absent from the index is not
// an error: found is false.
func (d *Directory) Lookup(term string) (entry VocabEntry, found bool, err error) {
	seg, ok := d.Locate(term)
	if !ok {
		return VocabEntry{}, false, nil
	}
	vocab, err := d.vocabulary(seg)
	if err != nil {
		return VocabEntry{}, false, err
	}
	i := sort.Search(len(vocab), func(i int) bool {
		return vocab[i].Term >= term
	})
	if i < len(vocab) && vocab[i].Term == term {
		return vocab[i], true, nil
	}
	return VocabEntry{}, false, nil
}

// Postings returns a lazy iterator over the postings of a vocabulary entry
// found by Lookup.
func (d *Directory) Postings(entry VocabEntry) (*Iterator, error) {
	seg, ok := d.Locate(entry.Term)
	if !ok {
		return nil, apperrors.Corruptf("term %q outside every segment", entry.Term)
	}
	if _, err := d.vocabulary(seg); err != nil {
		return nil, err
	}
	data := make([]byte, entry.Length)
	if _, err := seg.postings.ReadAt(data, entry.Offset); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.Corruptf("postings of %q end past %s", entry.Term, PostingsFile)
		}
		return nil, fmt.Errorf("reading postings of %q: %w", entry.Term, err)
	}
	if data[len(data)-1] != '\n' {
		return nil, apperrors.Corruptf("postings of %q are not newline terminated", entry.Term)
	}
	return &Iterator{data: string(data[:len(data)-1])}, nil
}

// vocabulary loads the segment's vocabulary once. Concurrent first loads of
// the same segment share one read.
func (d *Directory) vocabulary(seg *Segment) ([]VocabEntry, error) {
	seg.mu.Lock()
	vocab := seg.vocab
	seg.mu.Unlock()
	if vocab != nil {
		return vocab, nil
	}
	v, err, _ := d.loads.Do(seg.path, func() (any, error) {
		seg.mu.Lock()
		defer seg.mu.Unlock()
		if seg.vocab != nil {
			return seg.vocab, nil
		}
		vocab, err := readVocabulary(filepath.Join(seg.path, VocabularyFile))
		if err != nil {
			return nil, err
		}
		postings, err := os.Open(filepath.Join(seg.path, PostingsFile))
		if err != nil {
			return nil, fmt.Errorf("opening postings: %w", err)
		}
		seg.postings = postings
		seg.vocab = vocab
		return vocab, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]VocabEntry), nil
}

func readVocabulary(path string) ([]VocabEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening vocabulary: %w", err)
	}
	defer f.Close()

	var vocab []VocabEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		e, err := parseVocabRecord(scanner.Text())
		if err != nil {
			return nil, err
		}
		if n := len(vocab); n > 0 && vocab[n-1].Term >= e.Term {
			return nil, apperrors.Corruptf("vocabulary %s out of order at %q", path, e.Term)
		}
		vocab = append(vocab, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vocabulary: %w", err)
	}
	if len(vocab) == 0 {
		return nil, apperrors.Corruptf("vocabulary %s is empty", path)
	}
	return vocab, nil
}

// Close releases the postings files opened so far.
func (d *Directory) Close() error {
	var firstErr error
	for _, seg := range d.segments {
		seg.mu.Lock()
		if seg.postings != nil {
			if err := seg.postings.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			seg.postings = nil
			seg.vocab = nil
		}
		seg.mu.Unlock()
	}
	return firstErr
}

// Iterator decodes a postings range one posting at a time, undoing the
// doc id delta encoding.
type Iterator struct {
	data    string
	prev    int
	started bool
}

// Next returns the next posting, or io.EOF after the last one.
func (it *Iterator) Next() (index.Posting, error) {
	if it.data == "" {
		return index.Posting{}, io.EOF
	}
	part, rest, _ := strings.Cut(it.data, string(index.PostingSep))
	it.data = rest
	p, err := index.ParsePosting(part)
	if err != nil {
		it.data = ""
		return index.Posting{}, err
	}
	if it.started {
		p.DocID += it.prev
	}
	it.started = true
	it.prev = p.DocID
	return p, nil
}

// All drains the iterator.
func (it *Iterator) All() (index.PostingList, error) {
	var postings index.PostingList
	for {
		p, err := it.Next()
		if errors.Is(err, io.EOF) {
			return postings, nil
		}
		if err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
}
