package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/postgres"
)

// SQLReader streams reviews from a query returning, in order, the columns
// review_id, product_title, review_headline and review_body.
type SQLReader struct {
	rows    *sql.Rows
	closeDB func() error
	nextID  int
}

// NewSQLReader runs query on db. The caller keeps ownership of db.
func NewSQLReader(ctx context.Context, db *sql.DB, query string, docIDOffset int) (*SQLReader, error) {
	if err := checkOffset(docIDOffset); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying corpus: %w", err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("reading corpus columns: %w", err)
	}
	if len(cols) != 4 {
		rows.Close()
		return nil, apperrors.Configf("corpus query must return 4 columns, got %d", len(cols))
	}
	return &SQLReader{rows: rows, nextID: docIDOffset}, nil
}

// OpenSQLite reads the corpus from the SQLite database at path.
func OpenSQLite(ctx context.Context, path, query string, docIDOffset int) (*SQLReader, error) {
	if path == "" {
		return nil, apperrors.Configf("corpus path is required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite corpus: %w", err)
	}
	r, err := NewSQLReader(ctx, db, query, docIDOffset)
	if err != nil {
		db.Close()
		return nil, err
	}
	r.closeDB = db.Close
	return r, nil
}

// OpenPostgres reads the corpus from PostgreSQL.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig, query string, docIDOffset int) (*SQLReader, error) {
	client, err := postgres.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r, err := NewSQLReader(ctx, client.DB, query, docIDOffset)
	if err != nil {
		client.Close()
		return nil, err
	}
	r.closeDB = client.Close
	return r, nil
}

func (r *SQLReader) Next() (index.RawReview, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return index.RawReview{}, fmt.Errorf("reading corpus rows: %w", err)
		}
		return index.RawReview{}, io.EOF
	}
	var id, title, headline, body sql.NullString
	if err := r.rows.Scan(&id, &title, &headline, &body); err != nil {
		return index.RawReview{}, apperrors.CorpusFormatf("record %d: %v", r.nextID, err)
	}
	review, err := newReview(r.nextID, id.String, title.String, headline.String, body.String)
	if err != nil {
		return index.RawReview{}, err
	}
	r.nextID++
	return review, nil
}

func (r *SQLReader) Close() error {
	err := r.rows.Close()
	if r.closeDB != nil {
		err = errors.Join(err, r.closeDB())
	}
	return err
}
