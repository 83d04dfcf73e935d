package local

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestPutOpenRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	n, err := store.Put(ctx, "extracted/abc/a-1.txt", "text/plain", strings.NewReader("John Doe"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != int64(len("John Doe")) {
		t.Fatalf("unexpected size %d", n)
	}

	rc, err := store.Open(ctx, "extracted/abc/a-1.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "John Doe" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestPutRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	for _, key := range []string{"../escape.txt", "/etc/passwd", "."} {
		if _, err := store.Put(context.Background(), key, "text/plain", strings.NewReader("x")); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestPutHonoursCancelledContext(t *testing.T) {
	store := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, "a.txt", "text/plain", strings.NewReader("x")); err == nil {
		t.Fatalf("expected context error")
	}
}
