package block

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

func posting(docID int, weight float64, positions ...int) index.Posting {
	return index.Posting{DocID: docID, Weight: weight, Positions: positions}
}

func writeBlock(t *testing.T, dir, name string, entries []index.TermEntry) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, Write(path, entries))
	return path
}

func drain(t *testing.T, m *Merger) []index.TermEntry {
	t.Helper()
	var out []index.TermEntry
	for {
		entry, err := m.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, entry)
	}
}

func TestWriteFormat(t *testing.T) {
	path := writeBlock(t, t.TempDir(), "block_0.txt", []index.TermEntry{
		{Term: "cat", Postings: index.PostingList{posting(0, 1, 1), posting(2, 1, 0)}},
		{Term: "the", Postings: index.PostingList{posting(0, 2, 0, 3)}},
	})
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cat;0:1:1;2:1:0\nthe;0:2:0,3\n", string(data))
}

func TestWriteRejectsUnsortedTerms(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "b.txt"), []index.TermEntry{
		{Term: "dog", Postings: index.PostingList{posting(0, 1, 0)}},
		{Term: "cat", Postings: index.PostingList{posting(0, 1, 1)}},
	})
	assert.Error(t, err)
}

func TestWriteRefusesExistingFile(t *testing.T) {
	dir := t.TempDir()
	writeBlock(t, dir, "block_0.txt", nil)
	assert.Error(t, Write(filepath.Join(dir, "block_0.txt"), nil))
}

func TestCursor(t *testing.T) {
	path := writeBlock(t, t.TempDir(), "block_0.txt", []index.TermEntry{
		{Term: "and", Postings: index.PostingList{posting(2, 1, 1)}},
		{Term: "cat", Postings: index.PostingList{posting(2, 1, 0)}},
	})
	c, err := OpenCursor(path)
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.Exhausted())
	assert.Equal(t, "and", c.Peek().Term)
	require.NoError(t, c.Advance())
	assert.Equal(t, "cat", c.Peek().Term)
	assert.Equal(t, index.PostingList{posting(2, 1, 0)}, c.Peek().Postings)
	require.NoError(t, c.Advance())
	assert.True(t, c.Exhausted())
	require.NoError(t, c.Advance())
	assert.True(t, c.Exhausted())
}

func TestCursorRejectsCorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "block_0.txt")
	require.NoError(t, os.WriteFile(path, []byte("cat;0:1:0\ndog\n"), 0o644))

	c, err := OpenCursor(path)
	require.NoError(t, err)
	defer c.Close()
	err = c.Advance()
	assert.True(t, errors.Is(err, apperrors.ErrCorruptIndex))
}

func TestMergerCoalescesTermsAcrossBlocks(t *testing.T) {
	dir := t.TempDir()
	first := writeBlock(t, dir, "block_0.txt", []index.TermEntry{
		{Term: "cat", Postings: index.PostingList{posting(0, 1, 1)}},
		{Term: "sat", Postings: index.PostingList{posting(0, 1, 2), posting(1, 1, 2)}},
		{Term: "the", Postings: index.PostingList{posting(0, 1, 0), posting(1, 1, 0)}},
	})
	second := writeBlock(t, dir, "block_1.txt", []index.TermEntry{
		{Term: "and", Postings: index.PostingList{posting(2, 1, 1)}},
		{Term: "cat", Postings: index.PostingList{posting(2, 1, 0)}},
		{Term: "dog", Postings: index.PostingList{posting(2, 1, 2)}},
	})
	third := writeBlock(t, dir, "block_2.txt", []index.TermEntry{
		{Term: "dog", Postings: index.PostingList{posting(1, 1, 1)}},
	})

	// block order deliberately differs from doc id order for "dog"
	m, err := NewMerger([]string{second, first, third})
	require.NoError(t, err)
	defer m.Close()

	merged := drain(t, m)
	terms := make([]string, len(merged))
	for i, e := range merged {
		terms[i] = e.Term
	}
	assert.Equal(t, []string{"and", "cat", "dog", "sat", "the"}, terms)
	assert.Equal(t, index.PostingList{posting(0, 1, 1), posting(2, 1, 0)}, merged[1].Postings)
	assert.Equal(t, index.PostingList{posting(1, 1, 1), posting(2, 1, 2)}, merged[2].Postings)

	_, err = m.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestMergerPreservesPostingCount(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	want := 0
	for b := 0; b < 4; b++ {
		var entries []index.TermEntry
		for _, term := range []string{"alpha", "beta", "gamma"} {
			entries = append(entries, index.TermEntry{
				Term: term,
				Postings: index.PostingList{
					posting(b*2, 1, 0),
					posting(b*2+1, 1, 0),
				},
			})
			want += 2
		}
		paths = append(paths, writeBlock(t, dir, filepath.Base(t.Name())+string(rune('a'+b)), entries))
	}

	m, err := NewMerger(paths)
	require.NoError(t, err)
	defer m.Close()

	got := 0
	for _, entry := range drain(t, m) {
		for i := 1; i < len(entry.Postings); i++ {
			assert.Less(t, entry.Postings[i-1].DocID, entry.Postings[i].DocID)
		}
		got += len(entry.Postings)
	}
	assert.Equal(t, want, got)
}

func TestMergerEmptyInput(t *testing.T) {
	dir := t.TempDir()
	empty := writeBlock(t, dir, "block_0.txt", nil)

	m, err := NewMerger([]string{empty})
	require.NoError(t, err)
	_, err = m.Next()
	assert.True(t, errors.Is(err, io.EOF))
	assert.NoError(t, m.Close())

	_, err = NewMerger([]string{filepath.Join(dir, "missing.txt")})
	assert.Error(t, err)
}
