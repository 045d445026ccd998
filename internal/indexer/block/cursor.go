package block

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

// Cursor is a pull-based reader over one block file. Peek returns the
// current entry until Advance moves to the next line.
type Cursor struct {
	path    string
	f       *os.File
	r       *bufio.Reader
	current index.TermEntry
	done    bool
}

// OpenCursor opens path and positions the cursor on its first entry.
func OpenCursor(path string) (*Cursor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening block: %w", err)
	}
	c := &Cursor{
		path: path,
		f:    f,
		r:    bufio.NewReaderSize(f, 1<<20),
	}
	if err := c.Advance(); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cursor) Peek() index.TermEntry {
	return c.current
}

func (c *Cursor) Exhausted() bool {
	return c.done
}

// Advance reads the next entry. At end of file the cursor becomes exhausted.
func (c *Cursor) Advance() error {
	if c.done {
		return nil
	}
	line, err := c.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading block %s: %w", c.path, err)
	}
	line = strings.TrimSuffix(line, "\n")
	if line == "" {
		if errors.Is(err, io.EOF) {
			c.done = true
			c.current = index.TermEntry{}
			return nil
		}
		return apperrors.Corruptf("block %s: empty line", c.path)
	}
	entry, perr := parseLine(line)
	if perr != nil {
		return fmt.Errorf("block %s: %w", c.path, perr)
	}
	c.current = entry
	return nil
}

func (c *Cursor) Close() error {
	return c.f.Close()
}

// key is the merge ordering of the current entry.
func (c *Cursor) key() (string, int) {
	return c.current.Term, c.current.Postings[0].DocID
}

func parseLine(line string) (index.TermEntry, error) {
	term, rest, ok := strings.Cut(line, string(index.PostingSep))
	if !ok || term == "" || rest == "" {
		return index.TermEntry{}, apperrors.Corruptf("malformed block line %q", truncate(line))
	}
	postings, err := index.ParsePostings(rest)
	if err != nil {
		return index.TermEntry{}, err
	}
	return index.TermEntry{Term: term, Postings: postings}, nil
}

func truncate(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
