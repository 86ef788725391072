package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/marker-scanner/internal/catalog"
)

// MarkerRepository keeps catalog entries in the markers table. It is a
// catalog.Source: the scanner still matches against an in-memory catalog.
type MarkerRepository struct {
	pool *Pool
}

// NewMarkerRepository creates a new PostgreSQL marker repository
func NewMarkerRepository(pool *Pool) *MarkerRepository {
	return &MarkerRepository{pool: pool}
}

// List returns all markers in catalog order.
func (r *MarkerRepository) List(ctx context.Context) ([]catalog.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, embedding, video_url
		FROM markers
		ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query markers: %w", err)
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		var e catalog.Entry
		var vec pgvector.Vector
		if err := rows.Scan(&e.ID, &e.Name, &vec, &e.VideoURL); err != nil {
			return nil, fmt.Errorf("scan marker: %w", err)
		}
		e.Vector = vec.Slice()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate markers: %w", err)
	}
	return entries, nil
}

// Load implements catalog.Source.
func (r *MarkerRepository) Load(ctx context.Context) (*catalog.Catalog, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.New(entries)
}

// Get returns one marker, or catalog.ErrNotFound.
func (r *MarkerRepository) Get(ctx context.Context, id int) (catalog.Entry, error) {
	var e catalog.Entry
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx,
		"SELECT id, name, embedding, video_url FROM markers WHERE id = $1", id,
	).Scan(&e.ID, &e.Name, &vec, &e.VideoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Entry{}, fmt.Errorf("%w: id %d", catalog.ErrNotFound, id)
	}
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("query marker: %w", err)
	}
	e.Vector = vec.Slice()
	return e, nil
}

// Save inserts or updates a marker. New markers are appended to the end of the catalog order.
func (r *MarkerRepository) Save(ctx context.Context, e catalog.Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO markers (id, name, embedding, dim, video_url, position)
		VALUES ($1, $2, $3, $4, $5, (SELECT COALESCE(MAX(position), -1) + 1 FROM markers))
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			embedding = EXCLUDED.embedding,
			dim = EXCLUDED.dim,
			video_url = EXCLUDED.video_url,
			updated_at = NOW()
	`, e.ID, e.Name, pgvector.NewVector(e.Vector), len(e.Vector), e.VideoURL)
	if err != nil {
		return fmt.Errorf("save marker %d: %w", e.ID, err)
	}
	return nil
}

// ReplaceAll replaces the whole table with the catalog, keeping its order.
func (r *MarkerRepository) ReplaceAll(ctx context.Context, c *catalog.Catalog) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM markers"); err != nil {
		return fmt.Errorf("clear markers: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO markers (id, name, embedding, dim, video_url, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range c.Entries() {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Name, pgvector.NewVector(e.Vector), len(e.Vector), e.VideoURL, i); err != nil {
			return fmt.Errorf("insert marker %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit markers: %w", err)
	}
	return nil
}

// Delete removes markers by ID and returns how many were deleted.
func (r *MarkerRepository) Delete(ctx context.Context, ids []int) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ids64 := make([]int64, len(ids))
	for i, id := range ids {
		ids64[i] = int64(id)
	}
	res, err := r.pool.Exec(ctx, "DELETE FROM markers WHERE id = ANY($1)", pq.Array(ids64))
	if err != nil {
		return 0, fmt.Errorf("delete markers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Count returns the number of stored markers.
func (r *MarkerRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markers").Scan(&count); err != nil {
		return 0, fmt.Errorf("count markers: %w", err)
	}
	return count, nil
}
