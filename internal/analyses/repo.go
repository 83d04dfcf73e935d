package analyses

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Repo persists completed analyses.
type Repo interface {
	Insert(ctx context.Context, rec Record) error
	GetByID(ctx context.Context, userID, id string) (Record, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Record, error)
}

// Postgres rejects NUL in text columns; extracted PDF text can contain it.
func sanitizeContent(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

func encodeMetadata(m Metadata) ([]byte, error) {
	m.Strengths = orDefault(m.Strengths, emptyArray)
	m.Improvements = orDefault(m.Improvements, emptyArray)
	m.Sections = orDefault(m.Sections, emptyObject)
	if m.Feedback == nil {
		m.Feedback = []json.RawMessage{}
	}
	return json.Marshal(m)
}

func decodeMetadata(raw []byte) (Metadata, error) {
	var m Metadata
	if len(raw) == 0 {
		return m, nil
	}
	err := json.Unmarshal(raw, &m)
	return m, err
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
