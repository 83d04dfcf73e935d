package object

import (
	"context"
	"io"
	"path"

	"atsense-api/internal/shared/util"
)

// ObjectStore saves and retrieves derived artifacts by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ExtractedTextKey is the storage key for the text extracted during an analysis.
// User IDs are hashed so keys never carry raw identities.
func ExtractedTextKey(userID, analysisID string) string {
	return path.Join("extracted", util.HashUserKey(userID), analysisID+".txt")
}
