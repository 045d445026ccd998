// Package block implements the transient, term-sorted partial indexes the
// indexer spills to disk, and the k-way merge that combines them.
//
// A block holds one line per term:
//
//	term;docId:weight:p1,p2;docId:weight:p1\n
package block

import (
	"bufio"
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/index"
)

// Write creates the block file at path from entries, which must already be
// sorted by term with no term repeated.
func Write(path string, entries []index.TermEntry) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating block file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 1<<20)
	var line []byte
	for i, entry := range entries {
		if i > 0 && entries[i-1].Term >= entry.Term {
			return fmt.Errorf("block terms out of order: %q after %q", entry.Term, entries[i-1].Term)
		}
		line = append(line[:0], entry.Term...)
		line = append(line, index.PostingSep)
		line = index.AppendPostings(line, entry.Postings)
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("writing term %q: %w", entry.Term, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing block file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing block file: %w", err)
	}
	return f.Close()
}
