package index

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

// DocLengths records the token count of every document of a build. Doc ids
// are dense, starting at the first id added.
type DocLengths struct {
	base        int
	lengths     []int32
	totalTokens int64
	started     bool
}

func NewDocLengths() *DocLengths {
	return &DocLengths{}
}

// Add records the length of docID, which must directly follow the previous id.
func (d *DocLengths) Add(docID int, length int) error {
	if !d.started {
		if docID < 0 {
			return apperrors.CorpusFormatf("negative doc id %d", docID)
		}
		d.base = docID
		d.started = true
	}
	if want := d.base + len(d.lengths); docID != want {
		return apperrors.CorpusFormatf("doc id %d out of order, expected %d", docID, want)
	}
	d.lengths = append(d.lengths, int32(length))
	d.totalTokens += int64(length)
	return nil
}

func (d *DocLengths) Length(docID int) (int, error) {
	i := docID - d.base
	if i < 0 || i >= len(d.lengths) {
		return 0, fmt.Errorf("doc id %d outside [%d,%d)", docID, d.base, d.base+len(d.lengths))
	}
	return int(d.lengths[i]), nil
}

// Base is the first doc id of the build.
func (d *DocLengths) Base() int {
	return d.base
}

func (d *DocLengths) Count() int {
	return len(d.lengths)
}

func (d *DocLengths) Average() float64 {
	if len(d.lengths) == 0 {
		return 0
	}
	return float64(d.totalTokens) / float64(len(d.lengths))
}
