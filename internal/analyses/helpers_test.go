package analyses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"atsense-api/internal/extract"
	"atsense-api/internal/llm"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

const longResume = "Jane Doe - Senior Backend Engineer - jane@example.com - Built Go services handling 2M requests per day"

type fixedExtractor struct {
	name  string
	text  string
	err   error
	calls int32
}

func (f *fixedExtractor) Name() string { return f.name }

func (f *fixedExtractor) Extract(ctx context.Context, doc extract.Document) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.text, f.err
}

type blockingProvider struct{}

func (blockingProvider) Generate(ctx context.Context, req llm.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type failingRepo struct {
	*MemoryRepo
	err error
}

func (f failingRepo) Insert(ctx context.Context, rec Record) error {
	return f.err
}

type failingStore struct{}

func (failingStore) Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	return 0, errors.New("disk full")
}

func (failingStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("not found")
}

func newTestService(p llm.Provider, repo Repo, extractors ...extract.Extractor) *Service {
	svc := NewService(extract.NewCascade(50, extractors...), NewRequester(p, []string{"m0", "m1", "m2"}, 3), repo)
	svc.Requester.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	svc.now = func() time.Time { return fixedNow }
	var seq int32
	svc.newID = func() string {
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", atomic.AddInt32(&seq, 1))
	}
	return svc
}

type upload struct {
	fileName    string
	contentType string
	data        []byte
	jobDesc     string
}

func multipartBody(t *testing.T, u upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if u.data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="resume"; filename="%s"`, u.fileName))
		h.Set("Content-Type", u.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(u.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if u.jobDesc != "" {
		if err := w.WriteField("jobDesc", u.jobDesc); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func pdfUpload(data []byte) upload {
	return upload{fileName: "resume.pdf", contentType: "application/pdf", data: data}
}

func fenced(s string) string {
	return "```json\n" + strings.TrimSpace(s) + "\n```"
}
