package llm

import (
	"context"
	"errors"
)

// Part is a single piece of content sent to a model: text or inline bytes.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

// TextPart wraps plain text.
func TextPart(text string) Part {
	return Part{Text: text}
}

// BlobPart wraps inline binary content such as a PDF.
func BlobPart(mimeType string, data []byte) Part {
	return Part{MIMEType: mimeType, Data: data}
}

// IsBlob reports whether the part carries inline bytes.
func (p Part) IsBlob() bool {
	return p.Data != nil
}

// Request is one generation call against a named model.
type Request struct {
	Model string
	Parts []Part
	// JSON asks the provider for an application/json response when supported.
	JSON bool
}

// Provider abstracts generative model backends.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

var (
	// ErrMissingAPIKey is returned when no provider credential is configured.
	ErrMissingAPIKey = errors.New("generative provider api key is not configured")
	// ErrEmptyResponse is returned when a model replies without any text.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// Unconfigured fails every call with ErrMissingAPIKey.
type Unconfigured struct{}

// Generate returns ErrMissingAPIKey.
func (Unconfigured) Generate(ctx context.Context, req Request) (string, error) {
	_ = ctx
	_ = req
	return "", ErrMissingAPIKey
}
