package analyses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo on Postgres through database/sql and pgx.
type PGRepo struct {
	DB *sql.DB
}

// Insert stores a completed analysis in the resumes table.
func (r *PGRepo) Insert(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO resumes (id, user_id, content, metadata, created_at)
VALUES ($1, $2, $3, $4, $5)`
	payload, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return &StoreError{Message: fmt.Sprintf("encode metadata: %v", err), Err: err}
	}
	_, err = r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		sanitizeContent(rec.Content),
		string(payload),
		utc(rec.CreatedAt),
	)
	if err != nil {
		return pgStoreError(err)
	}
	return nil
}

// GetByID returns one of the user's analyses.
func (r *PGRepo) GetByID(ctx context.Context, userID, id string) (Record, error) {
	const query = `
SELECT id, user_id, content, metadata, created_at
FROM resumes
WHERE id = $1 AND user_id = $2
LIMIT 1`
	var (
		rec  Record
		meta []byte
	)
	err := r.DB.QueryRowContext(ctx, query, id, userID).Scan(&rec.ID, &rec.UserID, &rec.Content, &meta, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, pgStoreError(err)
	}
	if rec.Metadata, err = decodeMetadata(meta); err != nil {
		return Record{}, fmt.Errorf("decode metadata id=%s: %w", id, err)
	}
	return rec, nil
}

// ListByUser returns the user's analyses, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	const query = `
SELECT id, user_id, content, metadata, created_at
FROM resumes
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	limit, offset = clampPage(limit, offset)
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, pgStoreError(err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var (
			rec  Record
			meta []byte
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Content, &meta, &rec.CreatedAt); err != nil {
			return nil, pgStoreError(err)
		}
		if rec.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, fmt.Errorf("decode metadata id=%s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, pgStoreError(err)
	}
	return out, nil
}

// pgStoreError lifts Postgres diagnostics into a StoreError.
func pgStoreError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &StoreError{
			Message: pgErr.Message,
			Details: pgErr.Detail,
			Hint:    pgErr.Hint,
			Code:    pgErr.Code,
			Err:     err,
		}
	}
	return &StoreError{Message: err.Error(), Err: err}
}

var _ Repo = (*PGRepo)(nil)
