package analyses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"modernc.org/sqlite"
)

// sqliteTimeLayout is fixed width so created_at sorts lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepo implements Repo on an embedded SQLite file for local runs.
type SQLiteRepo struct {
	DB *sql.DB
}

// Insert stores a completed analysis.
func (r *SQLiteRepo) Insert(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO resumes (id, user_id, content, metadata, created_at)
VALUES (?, ?, ?, ?, ?)`
	payload, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return &StoreError{Message: fmt.Sprintf("encode metadata: %v", err), Err: err}
	}
	_, err = r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.Content,
		string(payload),
		utc(rec.CreatedAt).Format(sqliteTimeLayout),
	)
	if err != nil {
		return sqliteStoreError(err)
	}
	return nil
}

// GetByID returns one of the user's analyses.
func (r *SQLiteRepo) GetByID(ctx context.Context, userID, id string) (Record, error) {
	const query = `
SELECT id, user_id, content, metadata, created_at
FROM resumes
WHERE id = ? AND user_id = ?
LIMIT 1`
	rec, err := scanSQLite(r.DB.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// ListByUser returns the user's analyses, newest first.
func (r *SQLiteRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	const query = `
SELECT id, user_id, content, metadata, created_at
FROM resumes
WHERE user_id = ?
ORDER BY created_at DESC
LIMIT ? OFFSET ?`
	limit, offset = clampPage(limit, offset)
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, sqliteStoreError(err)
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		rec, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteStoreError(err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (Record, error) {
	var (
		rec       Record
		meta      string
		createdAt string
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Content, &meta, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, sqliteStoreError(err)
	}
	ts, err := time.Parse(sqliteTimeLayout, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("parse created_at id=%s: %w", rec.ID, err)
	}
	rec.CreatedAt = ts
	if rec.Metadata, err = decodeMetadata([]byte(meta)); err != nil {
		return Record{}, fmt.Errorf("decode metadata id=%s: %w", rec.ID, err)
	}
	return rec, nil
}

func sqliteStoreError(err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return &StoreError{
			Message: sqliteErr.Error(),
			Code:    strconv.Itoa(sqliteErr.Code()),
			Err:     err,
		}
	}
	return &StoreError{Message: err.Error(), Err: err}
}

var _ Repo = (*SQLiteRepo)(nil)
