package analyses

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// Error codes returned in API error bodies.
const (
	ErrorCodeValidation    = "validation_error"
	ErrorCodeNoText        = "no_text_extracted"
	ErrorCodeRateLimited   = "provider_rate_limited"
	ErrorCodeTimeout       = "analysis_timeout"
	ErrorCodeParse         = "analysis_parse_failed"
	ErrorCodeProvider      = "provider_error"
	ErrorCodeNotConfigured = "provider_not_configured"
	ErrorCodeStorage       = "storage_error"
	ErrorCodeCanceled      = "request_canceled"
	ErrorCodeInternal      = "internal_error"
)

// ErrNoTextExtracted marks a document no strategy could read.
var ErrNoTextExtracted = errors.New("no extractable text found")

// NoTextError carries the diagnostics returned with a no-text response.
type NoTextError struct {
	ExtractedLength int
	Filename        string
	Size            int64
	Cause           error
}

func (e *NoTextError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v (extracted=%d file=%s size=%d): %v", ErrNoTextExtracted, e.ExtractedLength, e.Filename, e.Size, e.Cause)
	}
	return fmt.Sprintf("%v (extracted=%d file=%s size=%d)", ErrNoTextExtracted, e.ExtractedLength, e.Filename, e.Size)
}

func (e *NoTextError) Is(target error) bool {
	return target == ErrNoTextExtracted
}

func (e *NoTextError) Unwrap() error {
	return e.Cause
}

// StoreError is a persistence failure with the driver's diagnostic fields.
type StoreError struct {
	Message string
	Details string
	Hint    string
	Code    string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("store: %s (code %s)", e.Message, e.Code)
	}
	return "store: " + e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
