// Package corpus reads raw review records for the indexer from a
// compressed TSV dump or from a SQL table. Every reader assigns doc ids
// densely, in read order, starting at a configurable offset.
package corpus

import (
	"context"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

const (
	SourceTSV      = "tsv"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

// Reader yields reviews in ascending doc id order and io.EOF at the end.
type Reader interface {
	Next() (index.RawReview, error)
	Close() error
}

// Open returns the reader selected by cfg.Source.
func Open(ctx context.Context, cfg config.CorpusConfig, pg config.PostgresConfig) (Reader, error) {
	switch cfg.Source {
	case SourceTSV, "":
		return OpenTSV(cfg.Path, cfg.DocIDOffset)
	case SourceSQLite:
		return OpenSQLite(ctx, cfg.Path, cfg.Query, cfg.DocIDOffset)
	case SourcePostgres:
		return OpenPostgres(ctx, pg, cfg.Query, cfg.DocIDOffset)
	default:
		return nil, apperrors.Configf("unknown corpus source %q", cfg.Source)
	}
}

// reviewText joins the searchable fields of a review.
func reviewText(title, headline, body string) string {
	return title + " " + headline + " " + body
}

func newReview(docID int, reviewID, title, headline, body string) (index.RawReview, error) {
	if reviewID == "" {
		return index.RawReview{}, apperrors.CorpusFormatf("record %d has no review id", docID)
	}
	if strings.ContainsAny(reviewID, "\r\n") {
		return index.RawReview{}, apperrors.CorpusFormatf("record %d review id contains a line break", docID)
	}
	return index.RawReview{
		DocID:    docID,
		ReviewID: reviewID,
		Text:     reviewText(title, headline, body),
	}, nil
}

func checkOffset(offset int) error {
	if offset < 0 {
		return apperrors.Configf("negative doc id offset %d", offset)
	}
	return nil
}
