package block

import (
	"container/heap"
	"io"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/index"
)

// cursorHeap orders cursors by (term, first doc id). The key is read from
// the cursor on every comparison, so an advanced cursor is never compared
// with a stale key.
type cursorHeap []*Cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	ti, di := h[i].key()
	tj, dj := h[j].key()
	if ti != tj {
		return ti < tj
	}
	return di < dj
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) { *h = append(*h, x.(*Cursor)) }

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

// Merger performs a k-way merge over block files, yielding every term once
// with its complete posting list in term order. It is consumed once.
type Merger struct {
	heap       cursorHeap
	pending    index.TermEntry
	hasPending bool
	logger     *slog.Logger
}

// NewMerger opens a cursor on every block in paths.
func NewMerger(paths []string) (*Merger, error) {
	m := &Merger{
		heap:   make(cursorHeap, 0, len(paths)),
		logger: slog.Default().With("component", "block-merger"),
	}
	for _, path := range paths {
		c, err := OpenCursor(path)
		if err != nil {
			m.Close()
			return nil, err
		}
		if c.Exhausted() {
			c.Close()
			continue
		}
		m.heap = append(m.heap, c)
	}
	heap.Init(&m.heap)
	m.logger.Debug("merge started", "blocks", len(paths), "open_cursors", m.heap.Len())
	return m, nil
}

// Next returns the next merged entry, or io.EOF once every block is drained.
func (m *Merger) Next() (index.TermEntry, error) {
	for m.heap.Len() > 0 {
		c := m.heap[0]
		entry := c.Peek()
		if err := m.advance(c); err != nil {
			return index.TermEntry{}, err
		}
		switch {
		case !m.hasPending:
			m.pending = entry
			m.hasPending = true
		case entry.Term == m.pending.Term:
			m.pending.Postings = append(m.pending.Postings, entry.Postings...)
		default:
			out := m.pending
			m.pending = entry
			return out, nil
		}
	}
	if m.hasPending {
		out := m.pending
		m.pending = index.TermEntry{}
		m.hasPending = false
		return out, nil
	}
	return index.TermEntry{}, io.EOF
}

func (m *Merger) advance(c *Cursor) error {
	if err := c.Advance(); err != nil {
		return err
	}
	if c.Exhausted() {
		heap.Pop(&m.heap)
		return c.Close()
	}
	heap.Fix(&m.heap, 0)
	return nil
}

// Close releases every cursor still open.
func (m *Merger) Close() error {
	var firstErr error
	for _, c := range m.heap {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.heap = nil
	return firstErr
}
