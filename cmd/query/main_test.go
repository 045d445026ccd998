package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/searcher/executor"
)

func TestReadQueriesSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(path, []byte("great battery\n\n   \n  cheap case \n"), 0o644))

	queries, err := readQueries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"great battery", "cheap case"}, queries)

	_, err = readQueries(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	err := writeResults(&buf, []*executor.SearchResult{
		{Query: "cat", Results: []executor.Hit{{ReviewID: "R2", Score: 0.5}, {ReviewID: "R1", Score: 0.25}}},
		{Query: "zebra"},
	})
	require.NoError(t, err)
	assert.Equal(t, "# cat\nR2 0.500000\nR1 0.250000\n# zebra\n", buf.String())
}
