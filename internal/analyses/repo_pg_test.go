package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func sampleRecord() Record {
	jd := "Go developer"
	return Record{
		ID:      "11111111-2222-3333-4444-555555555555",
		UserID:  "google:1",
		Content: "Jane\x00 Doe",
		Metadata: Metadata{
			Score:       71,
			Grade:       "B",
			Summary:     "Solid",
			Feedback:    []json.RawMessage{json.RawMessage(`"Add metrics"`)},
			JobDesc:     &jd,
			Filename:    "resume.pdf",
			AnalyzedAt:  fixedNow,
			PayloadKind: PayloadText,
			Model:       "m0",
		},
		CreatedAt: fixedNow,
	}
}

func TestPGRepoInsertStripsNUL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	rec := sampleRecord()
	mock.ExpectExec("INSERT INTO resumes").
		WithArgs(rec.ID, rec.UserID, "Jane Doe", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := &PGRepo{DB: db}
	if err := repo.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoInsertSurfacesPgDiagnostics(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("INSERT INTO resumes").
		WillReturnError(&pgconn.PgError{
			Code:    "42501",
			Message: "permission denied for table resumes",
			Detail:  "role api lacks INSERT",
			Hint:    "grant insert",
		})

	repo := &PGRepo{DB: db}
	err = repo.Insert(context.Background(), sampleRecord())
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if se.Code != "42501" || se.Details != "role api lacks INSERT" || se.Hint != "grant insert" {
		t.Fatalf("unexpected store error %+v", se)
	}
	if classifyFailure(err) != ErrorCodeStorage {
		t.Fatalf("expected storage classification")
	}
}

func TestPGRepoGetByIDScopesToUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	rec := sampleRecord()
	meta, err := encodeMetadata(rec.Metadata)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rows := sqlmock.NewRows([]string{"id", "user_id", "content", "metadata", "created_at"}).
		AddRow(rec.ID, rec.UserID, "Jane Doe", meta, fixedNow)
	mock.ExpectQuery("SELECT id, user_id, content, metadata, created_at").
		WithArgs(rec.ID, rec.UserID).
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT id, user_id, content, metadata, created_at").
		WithArgs(rec.ID, "google:2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "content", "metadata", "created_at"}))

	repo := &PGRepo{DB: db}
	got, err := repo.GetByID(context.Background(), rec.UserID, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Metadata.Score != 71 || got.Metadata.Summary != "Solid" || string(got.Metadata.Strengths) != "[]" {
		t.Fatalf("unexpected metadata %+v", got.Metadata)
	}
	if got.Metadata.JobDesc == nil || *got.Metadata.JobDesc != "Go developer" {
		t.Fatalf("expected job description round trip")
	}

	if _, err := repo.GetByID(context.Background(), "google:2", rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListByUserClampsPage(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs("google:1", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "content", "metadata", "created_at"}).
			AddRow("a", "google:1", "x", []byte(`{"score":50}`), fixedNow.Add(time.Minute)).
			AddRow("b", "google:1", "y", []byte(`{"score":40}`), fixedNow))

	repo := &PGRepo{DB: db}
	got, err := repo.ListByUser(context.Background(), "google:1", 500, -3)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].Metadata.Score != 40 {
		t.Fatalf("unexpected rows %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
