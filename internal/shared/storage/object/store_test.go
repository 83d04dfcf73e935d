package object

import (
	"strings"
	"testing"
)

func TestExtractedTextKeyHidesUserID(t *testing.T) {
	key := ExtractedTextKey("google:12345", "a-1")
	if strings.Contains(key, "google") {
		t.Fatalf("key leaks user id: %s", key)
	}
	if !strings.HasPrefix(key, "extracted/") || !strings.HasSuffix(key, "/a-1.txt") {
		t.Fatalf("unexpected key layout: %s", key)
	}
}
