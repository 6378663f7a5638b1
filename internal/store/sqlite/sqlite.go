// Package sqlite implements the durable review store on an embedded
// SQLite database via modernc.org/sqlite (no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kingabzpro/ECom-Intel/internal/review"
)

// ensure Store implements review.Store
var _ review.Store = (*Store)(nil)

// Store is a SQLite-backed review.Store. A single *sql.DB is safe for
// concurrent use; SQLite serializes writers internally.
type Store struct {
	db    *sql.DB
	clock review.Clock
}

// New opens (creating if needed) the database at path and applies the
// schema. The path may be a plain file path or any SQLite DSN.
func New(path string, clock review.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, review.E(review.KindStore, fmt.Sprintf("open database %s", path), err)
	}

	if _, err := db.Exec(pragmas); err != nil {
		_ = db.Close()
		return nil, review.E(review.KindStore, "apply pragmas", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, review.E(review.KindStore, "apply schema", err)
	}

	return &Store{db: db, clock: clock}, nil
}

// GetProduct looks up a product by its normalized URL.
func (s *Store) GetProduct(ctx context.Context, url string) (review.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, name, created_at, updated_at FROM products WHERE url = ?`, url)

	var p review.Product
	err := row.Scan(&p.ID, &p.URL, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return review.Product{}, review.ErrNotFound
	}
	if err != nil {
		return review.Product{}, review.E(review.KindStore, "get product", err)
	}
	return p, nil
}

// UpsertProduct creates the product on first sight or refreshes its name and
// updated_at. An empty name never clobbers a previously stored one.
func (s *Store) UpsertProduct(ctx context.Context, url, name string) (review.Product, error) {
	now := s.clock.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO products (url, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE products.name END,
			updated_at = excluded.updated_at
		RETURNING id, url, name, created_at, updated_at`,
		url, name, now, now)

	var p review.Product
	if err := row.Scan(&p.ID, &p.URL, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return review.Product{}, review.E(review.KindStore, "upsert product", err)
	}
	return p, nil
}

// GetReviews returns every stored review for the product, newest first.
func (s *Store) GetReviews(ctx context.Context, productID int64) ([]review.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, source_url, review_text, rating, reviewer, review_date, fingerprint, created_at
		FROM reviews WHERE product_id = ?
		ORDER BY created_at DESC, id DESC`, productID)
	if err != nil {
		return nil, review.E(review.KindStore, "query reviews", err)
	}
	defer rows.Close()

	var out []review.Review
	for rows.Next() {
		var r review.Review
		var rating sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.ProductID, &r.SourceURL, &r.Text, &rating,
			&r.Reviewer, &r.ReviewDate, &r.Fingerprint, &r.CreatedAt); err != nil {
			return nil, review.E(review.KindStore, "scan review", err)
		}
		if rating.Valid {
			v := rating.Float64
			r.Rating = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, review.E(review.KindStore, "iterate reviews", err)
	}
	return out, nil
}

// SaveReviews inserts the batch inside one transaction. Rows whose
// (product_id, fingerprint) pair already exists are skipped; the return
// value counts only newly inserted rows.
func (s *Store) SaveReviews(ctx context.Context, productID int64, reviews []review.Review) (int, error) {
	if len(reviews) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, review.E(review.KindStore, "begin save reviews", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO reviews
			(product_id, source_url, review_text, rating, reviewer, review_date, fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, review.E(review.KindStore, "prepare insert review", err)
	}
	defer stmt.Close()

	now := s.clock.Now().UTC()
	inserted := 0
	for _, r := range reviews {
		var rating any
		if r.Rating != nil {
			rating = *r.Rating
		}
		res, err := stmt.ExecContext(ctx, productID, r.SourceURL, r.Text, rating,
			r.Reviewer, r.ReviewDate, r.Fingerprint, now)
		if err != nil {
			return 0, review.E(review.KindStore, "insert review", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, review.E(review.KindStore, "count inserted review", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, review.E(review.KindStore, "commit save reviews", err)
	}
	return inserted, nil
}

// LatestAnalysis returns the newest analysis row for the product.
func (s *Store) LatestAnalysis(ctx context.Context, productID int64) (review.AnalysisResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, positive, negative, neutral,
		       key_insights, pros, cons, themes, recommendations, star_counts,
		       total_reviews, average_rating, created_at
		FROM analyses WHERE product_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, productID)

	res, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return review.AnalysisResult{}, review.ErrNotFound
	}
	if err != nil {
		return review.AnalysisResult{}, review.E(review.KindStore, "get latest analysis", err)
	}
	return res, nil
}

// SaveAnalysis appends a new analysis row and returns it with the assigned
// ID and timestamp. Prior rows are kept as history.
func (s *Store) SaveAnalysis(ctx context.Context, productID int64, result review.AnalysisResult) (review.AnalysisResult, error) {
	cols, err := marshalLists(result)
	if err != nil {
		return review.AnalysisResult{}, review.E(review.KindStore, "encode analysis lists", err)
	}
	stars, err := json.Marshal(result.Stars)
	if err != nil {
		return review.AnalysisResult{}, review.E(review.KindStore, "encode star counts", err)
	}

	now := s.clock.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO analyses
			(product_id, positive, negative, neutral,
			 key_insights, pros, cons, themes, recommendations, star_counts,
			 total_reviews, average_rating, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		productID, result.Sentiment.Positive, result.Sentiment.Negative, result.Sentiment.Neutral,
		cols.keyInsights, cols.pros, cols.cons, cols.themes, cols.recommendations, string(stars),
		result.TotalReviews, result.AverageRating, now)

	saved := result
	saved.ProductID = productID
	if err := row.Scan(&saved.ID, &saved.CreatedAt); err != nil {
		return review.AnalysisResult{}, review.E(review.KindStore, "insert analysis", err)
	}
	return saved, nil
}

// RecentProducts lists the most recently analyzed products, one row per
// product carrying its latest analysis stats.
func (s *Store) RecentProducts(ctx context.Context, limit int) ([]review.ProductSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.url, p.name, p.created_at, p.updated_at,
		       a.total_reviews, a.average_rating, a.created_at
		FROM products p
		JOIN analyses a ON a.product_id = p.id
		WHERE a.id = (
			SELECT id FROM analyses
			WHERE product_id = p.id
			ORDER BY created_at DESC, id DESC LIMIT 1
		)
		ORDER BY a.created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, review.E(review.KindStore, "query recent products", err)
	}
	defer rows.Close()

	var out []review.ProductSummary
	for rows.Next() {
		var ps review.ProductSummary
		if err := rows.Scan(&ps.Product.ID, &ps.Product.URL, &ps.Product.Name,
			&ps.Product.CreatedAt, &ps.Product.UpdatedAt,
			&ps.TotalReviews, &ps.AverageRating, &ps.LastAnalyzed); err != nil {
			return nil, review.E(review.KindStore, "scan recent product", err)
		}
		out = append(out, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, review.E(review.KindStore, "iterate recent products", err)
	}
	return out, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type listColumns struct {
	keyInsights, pros, cons, themes, recommendations string
}

func marshalLists(r review.AnalysisResult) (listColumns, error) {
	var cols listColumns
	for _, pair := range []struct {
		dst *string
		src []string
	}{
		{&cols.keyInsights, r.KeyInsights},
		{&cols.pros, r.Pros},
		{&cols.cons, r.Cons},
		{&cols.themes, r.Themes},
		{&cols.recommendations, r.Recommendations},
	} {
		if pair.src == nil {
			pair.src = []string{}
		}
		b, err := json.Marshal(pair.src)
		if err != nil {
			return listColumns{}, err
		}
		*pair.dst = string(b)
	}
	return cols, nil
}

func scanAnalysis(row *sql.Row) (review.AnalysisResult, error) {
	var res review.AnalysisResult
	var cols listColumns
	var stars string
	err := row.Scan(&res.ID, &res.ProductID,
		&res.Sentiment.Positive, &res.Sentiment.Negative, &res.Sentiment.Neutral,
		&cols.keyInsights, &cols.pros, &cols.cons, &cols.themes, &cols.recommendations, &stars,
		&res.TotalReviews, &res.AverageRating, &res.CreatedAt)
	if err != nil {
		return review.AnalysisResult{}, err
	}
	if err := json.Unmarshal([]byte(stars), &res.Stars); err != nil {
		return review.AnalysisResult{}, err
	}

	for _, pair := range []struct {
		dst *[]string
		src string
	}{
		{&res.KeyInsights, cols.keyInsights},
		{&res.Pros, cols.pros},
		{&res.Cons, cols.cons},
		{&res.Themes, cols.themes},
		{&res.Recommendations, cols.recommendations},
	} {
		if err := json.Unmarshal([]byte(pair.src), pair.dst); err != nil {
			return review.AnalysisResult{}, err
		}
	}
	return res, nil
}
