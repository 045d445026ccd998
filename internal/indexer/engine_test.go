package indexer

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/scoring"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/metrics"
)

type sliceReader struct {
	reviews []index.RawReview
}

func (r *sliceReader) Next() (index.RawReview, error) {
	if len(r.reviews) == 0 {
		return index.RawReview{}, io.EOF
	}
	next := r.reviews[0]
	r.reviews = r.reviews[1:]
	return next, nil
}

func corpus(texts ...string) *sliceReader {
	r := &sliceReader{}
	for i, text := range texts {
		r.reviews = append(r.reviews, index.RawReview{DocID: i, ReviewID: "R" + string(rune('A'+i)), Text: text})
	}
	return r
}

// flushAfter asks for a flush after the listed documents (1-based call
// numbers).
type flushAfter struct {
	calls int
	at    map[int]bool
}

func (f *flushAfter) HasReachedThreshold() bool {
	f.calls++
	return f.at[f.calls]
}

func never() *flushAfter { return &flushAfter{at: map[int]bool{}} }

func testConfig(t *testing.T, scheme string) config.IndexerConfig {
	t.Helper()
	return config.IndexerConfig{
		IndexPath:          filepath.Join(t.TempDir(), "index"),
		Scoring:            scheme,
		K1:                 1.2,
		B:                  0.75,
		MinTokenLength:     3,
		Stemmer:            "none",
		MemoryThreshold:    0.8,
		MemorySampleStride: 1,
		TermsPerSegment:    2,
	}
}

func build(t *testing.T, cfg config.IndexerConfig, r RecordReader, opts ...Option) Stats {
	t.Helper()
	b, err := NewBuilder(cfg, opts...)
	require.NoError(t, err)
	stats, err := b.Build(context.Background(), r)
	require.NoError(t, err)
	return stats
}

// readAll loads the whole index back as term -> postings.
func readAll(t *testing.T, indexPath string) map[string]index.PostingList {
	t.Helper()
	d, err := segment.OpenDirectory(filepath.Join(indexPath, store.SegmentsDir))
	require.NoError(t, err)
	defer d.Close()

	out := make(map[string]index.PostingList)
	for _, seg := range d.Segments() {
		data, err := os.ReadFile(filepath.Join(seg.Path(), segment.VocabularyFile))
		require.NoError(t, err)
		for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
			term, _, _ := strings.Cut(line, ":")
			e, found, err := d.Lookup(term)
			require.NoError(t, err)
			require.True(t, found, term)
			it, err := d.Postings(e)
			require.NoError(t, err)
			postings, err := it.All()
			require.NoError(t, err)
			out[term] = postings
		}
	}
	return out
}

func docIDs(postings index.PostingList) []int {
	ids := make([]int, len(postings))
	for i, p := range postings {
		ids[i] = p.DocID
	}
	return ids
}

func TestBuildThreeDocumentCorpus(t *testing.T) {
	cfg := testConfig(t, "tf_idf")
	stats := build(t, cfg, corpus("the cat sat", "the dog sat", "cat and dog"), WithChecker(never()))

	assert.Equal(t, 5, stats.TermCount)
	assert.Equal(t, 3, stats.ReviewCount)
	assert.Equal(t, 1, stats.BlockCount)
	assert.Equal(t, 3, stats.SegmentCount)
	assert.Greater(t, stats.IndexSizeBytes, int64(0))

	all := readAll(t, cfg.IndexPath)
	assert.Len(t, all, 5)
	assert.Equal(t, []int{0, 2}, docIDs(all["cat"]))
	assert.Equal(t, []int{1, 2}, docIDs(all["dog"]))
	assert.Equal(t, []int{0, 1}, docIDs(all["sat"]))
	assert.Equal(t, []int{0, 1}, docIDs(all["the"]))
	assert.Equal(t, []int{2}, docIDs(all["and"]))
	assert.Equal(t, []int{1}, all["cat"][0].Positions)

	ids, err := os.ReadFile(filepath.Join(cfg.IndexPath, store.ReviewIDsFile))
	require.NoError(t, err)
	assert.Equal(t, "RA\nRB\nRC\n", string(ids))
	assert.NoDirExists(t, filepath.Join(cfg.IndexPath, store.BlocksDir))

	props, err := store.ReadProps(filepath.Join(cfg.IndexPath, store.PropsFile))
	require.NoError(t, err)
	assert.Equal(t, store.Props{
		Format:         "tf_idf",
		SizeOnDisk:     stats.IndexSizeBytes,
		TermCount:      5,
		ReviewCount:    3,
		MinTokenLength: 3,
		Stopwords:      []string{},
		Stemmer:        "no_stemmer",
	}, props)
}

func TestBuildFlushCountDoesNotChangeIndex(t *testing.T) {
	texts := []string{"the cat sat", "the dog sat", "cat and dog"}
	for _, scheme := range []string{"tf_idf", "bm25"} {
		single := testConfig(t, scheme)
		build(t, single, corpus(texts...), WithChecker(never()))

		split := testConfig(t, scheme)
		split.Debug = true
		stats := build(t, split, corpus(texts...), WithChecker(&flushAfter{at: map[int]bool{2: true}}))
		assert.Equal(t, 2, stats.BlockCount)

		blocks, err := os.ReadDir(filepath.Join(split.IndexPath, store.BlocksDir))
		require.NoError(t, err)
		assert.Len(t, blocks, 2)

		for _, rel := range []string{
			store.ReviewIDsFile,
			"segments/and-cat/vocabulary.txt",
			"segments/and-cat/postings.txt",
			"segments/dog-sat/vocabulary.txt",
			"segments/dog-sat/postings.txt",
			"segments/the-the/postings.txt",
		} {
			want, err := os.ReadFile(filepath.Join(single.IndexPath, rel))
			require.NoError(t, err, rel)
			got, err := os.ReadFile(filepath.Join(split.IndexPath, rel))
			require.NoError(t, err, rel)
			assert.Equal(t, string(want), string(got), "%s %s", scheme, rel)
		}
	}
}

func TestBuildFlushPerDocument(t *testing.T) {
	cfg := testConfig(t, "bm25")
	stats := build(t, cfg, corpus("the cat sat", "", "the dog sat", "cat and dog"),
		WithChecker(&flushAfter{at: map[int]bool{1: true, 2: true, 3: true, 4: true}}))

	// the empty review produces no block but keeps its review id
	assert.Equal(t, 3, stats.BlockCount)
	assert.Equal(t, 4, stats.ReviewCount)
	ids, err := os.ReadFile(filepath.Join(cfg.IndexPath, store.ReviewIDsFile))
	require.NoError(t, err)
	assert.Equal(t, "RA\nRB\nRC\nRD\n", string(ids))

	all := readAll(t, cfg.IndexPath)
	assert.Equal(t, []int{0, 3}, docIDs(all["cat"]))
}

func TestBuildTfIdfWeightsAreUnitLengthBeforeIdf(t *testing.T) {
	cfg := testConfig(t, "tf_idf")
	cfg.TermsPerSegment = 100
	texts := []string{
		"great battery great screen battery battery",
		"terrible screen cracked after one week",
		"battery life is great and the screen is bright",
		"the product arrived late",
	}
	build(t, cfg, corpus(texts...), WithChecker(never()))

	d, err := segment.OpenDirectory(filepath.Join(cfg.IndexPath, store.SegmentsDir))
	require.NoError(t, err)
	defer d.Close()

	sums := make(map[int]float64)
	zeroIdf := make(map[int]bool)
	for term := range readAll(t, cfg.IndexPath) {
		e, _, err := d.Lookup(term)
		require.NoError(t, err)
		it, err := d.Postings(e)
		require.NoError(t, err)
		postings, err := it.All()
		require.NoError(t, err)
		for _, p := range postings {
			if e.IDF == 0 {
				zeroIdf[p.DocID] = true
				continue
			}
			raw := p.Weight / e.IDF
			sums[p.DocID] += raw * raw
		}
	}
	for docID, sum := range sums {
		if zeroIdf[docID] {
			continue
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "doc %d", docID)
	}
	assert.NotEmpty(t, sums)
}

func TestBuildBM25MatchesClosedForm(t *testing.T) {
	cfg := testConfig(t, "bm25")
	// every document has three tokens, so each is of average length
	build(t, cfg, corpus("the cat sat", "the dog sat", "cat and dog"), WithChecker(never()))

	all := readAll(t, cfg.IndexPath)
	k1, b := 1.2, 0.75
	idf := math.Log10(3.0 / 1.0)
	want := idf * (k1 + 1) * 1 / (k1*(1-b+b*(3.0/3.0)) + 1)
	require.Len(t, all["and"], 1)
	assert.InDelta(t, want, all["and"][0].Weight, 1e-12)
	assert.InDelta(t, idf, all["and"][0].Weight, 1e-12)
}

func TestBuildDropsOverlongTerms(t *testing.T) {
	cfg := testConfig(t, "tf_idf")
	long := strings.Repeat("x", 50)
	build(t, cfg, corpus("cat "+long, long+" dog"), WithChecker(never()))

	all := readAll(t, cfg.IndexPath)
	assert.NotContains(t, all, long)
	assert.Contains(t, all, "cat")
	assert.Contains(t, all, "dog")
}

func TestBuildPathConflict(t *testing.T) {
	cfg := testConfig(t, "tf_idf")
	build(t, cfg, corpus("the cat sat"), WithChecker(never()))

	b, err := NewBuilder(cfg, WithChecker(never()))
	require.NoError(t, err)
	_, err = b.Build(context.Background(), corpus("the dog sat"))
	assert.True(t, errors.Is(err, apperrors.ErrPathConflict))

	cfg.Overwrite = true
	build(t, cfg, corpus("the dog sat"), WithChecker(never()))
	all := readAll(t, cfg.IndexPath)
	assert.Contains(t, all, "dog")
	assert.NotContains(t, all, "cat")
}

func TestNewBuilderValidatesBeforeIO(t *testing.T) {
	cfg := testConfig(t, "tf_idf")
	cfg.MemoryThreshold = 1.5
	_, err := NewBuilder(cfg)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))

	cfg = testConfig(t, "tf_idf")
	cfg.MinTokenLength = 0
	_, err = NewBuilder(cfg)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
	assert.NoDirExists(t, cfg.IndexPath)
}

func TestBuildRejectsOutOfOrderDocIDs(t *testing.T) {
	cfg := testConfig(t, "tf_idf")
	r := &sliceReader{reviews: []index.RawReview{
		{DocID: 0, ReviewID: "A", Text: "the cat"},
		{DocID: 5, ReviewID: "B", Text: "the dog"},
	}}
	b, err := NewBuilder(cfg, WithChecker(never()))
	require.NoError(t, err)
	_, err = b.Build(context.Background(), r)
	assert.True(t, errors.Is(err, apperrors.ErrCorpusFormat))
}

func TestBuildHonoursCancellation(t *testing.T) {
	cfg := testConfig(t, "tf_idf")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b, err := NewBuilder(cfg, WithChecker(never()))
	require.NoError(t, err)
	_, err = b.Build(ctx, corpus("the cat sat"))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBuildWithStopwordsAndStemmerRecordsProps(t *testing.T) {
	cfg := testConfig(t, "bm25")
	cfg.Stemmer = "english"
	cfg.Stopwords = []string{"the"}
	stopwordsPath := filepath.Join(t.TempDir(), "stop.txt")
	require.NoError(t, os.WriteFile(stopwordsPath, []byte("and\n"), 0o644))
	cfg.StopwordsPath = stopwordsPath

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	build(t, cfg, corpus("the cats running", "dogs and cats"), WithChecker(never()), WithMetrics(m))

	props, err := store.ReadProps(filepath.Join(cfg.IndexPath, store.PropsFile))
	require.NoError(t, err)
	assert.Equal(t, []string{"and", "the"}, props.Stopwords)
	assert.Equal(t, "english_stemmer", props.Stemmer)
	assert.Equal(t, string(scoring.FormatBM25), props.Format)

	all := readAll(t, cfg.IndexPath)
	assert.Equal(t, []int{0, 1}, docIDs(all["cat"]))
	assert.Contains(t, all, "run")
	assert.NotContains(t, all, "the")
	assert.NotContains(t, all, "and")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BlocksFlushedTotal))
	assert.Equal(t, float64(props.TermCount), testutil.ToFloat64(m.TermsWrittenTotal))
}

func TestBuildIdenticalDocumentsStoreIdenticalWeights(t *testing.T) {
	text := "great battery life great phone charger cable screen screen bright display sturdy case"
	texts := make([]string, 40)
	for i := range texts {
		texts[i] = text
	}
	for _, scheme := range []string{"tf_idf", "bm25"} {
		cfg := testConfig(t, scheme)
		cfg.TermsPerSegment = 100
		build(t, cfg, corpus(texts...), WithChecker(never()))

		for term, postings := range readAll(t, cfg.IndexPath) {
			require.Len(t, postings, len(texts), term)
			for _, p := range postings[1:] {
				assert.Equal(t, postings[0].Weight, p.Weight, "%s %s doc %d", scheme, term, p.DocID)
			}
		}
	}
}

func TestBuildFlushCountDoesNotChangeVariedIndex(t *testing.T) {
	words := []string{
		"great", "battery", "life", "phone", "charger", "cable", "screen", "bright",
		"display", "sturdy", "case", "cheap", "plastic", "broke", "returned", "refund",
	}
	texts := make([]string, 60)
	for i := range texts {
		var b strings.Builder
		for j := 0; j < 5+i%7; j++ {
			b.WriteString(words[(i*7+j*j*3+j)%len(words)])
			b.WriteByte(' ')
		}
		texts[i] = b.String()
	}
	for _, scheme := range []string{"tf_idf", "bm25"} {
		single := testConfig(t, scheme)
		single.TermsPerSegment = 5
		build(t, single, corpus(texts...), WithChecker(never()))

		split := testConfig(t, scheme)
		split.TermsPerSegment = 5
		at := map[int]bool{}
		for i := 7; i < len(texts); i += 11 {
			at[i] = true
		}
		stats := build(t, split, corpus(texts...), WithChecker(&flushAfter{at: at}))
		require.Greater(t, stats.BlockCount, 1)

		want := readAll(t, single.IndexPath)
		got := readAll(t, split.IndexPath)
		require.Equal(t, len(want), len(got), scheme)
		for term, postings := range want {
			assert.Equal(t, postings, got[term], "%s %s", scheme, term)
		}
	}
}
