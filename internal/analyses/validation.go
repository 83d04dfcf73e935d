package analyses

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"atsense-api/internal/shared/util"
)

const mimePDF = "application/pdf"

// Product copy for upload validation failures.
const (
	MsgNoFile         = "No file provided"
	MsgInvalidFile    = "Please upload a valid PDF file"
	MsgNoText         = "No extractable text found. Please ensure the PDF is text-based (not a scanned image)."
	MsgAnalysisFailed = "Failed to analyze resume. Please try again."
)

// ValidationError is a client input problem reported with a 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// MsgFileTooLarge renders the size limit in megabytes, or kilobytes below
// one megabyte, rounding up.
func MsgFileTooLarge(maxBytes int64) string {
	const kb, mb = 1 << 10, 1 << 20
	if maxBytes < mb {
		return fmt.Sprintf("File size must be less than %dKB", (maxBytes+kb-1)/kb)
	}
	return fmt.Sprintf("File size must be less than %dMB", (maxBytes+mb-1)/mb)
}

// MsgJobDescTooLong renders the job description limit.
func MsgJobDescTooLong(maxChars int) string {
	return fmt.Sprintf("Job description must be less than %d characters", maxChars)
}

// validateUpload checks the declared media type, extension and size of the resume part.
// It returns the sanitized file name.
func validateUpload(fh *multipart.FileHeader, maxBytes int64) (string, error) {
	if fh == nil {
		return "", &ValidationError{Field: "resume", Message: MsgNoFile}
	}
	mediaType, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type"))
	if err != nil || !strings.EqualFold(mediaType, mimePDF) {
		return "", &ValidationError{Field: "resume", Message: MsgInvalidFile}
	}
	name, err := util.SanitizeFileName(fh.Filename)
	if err != nil || !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", &ValidationError{Field: "resume", Message: MsgInvalidFile}
	}
	if fh.Size > maxBytes {
		return "", &ValidationError{Field: "resume", Message: MsgFileTooLarge(maxBytes)}
	}
	return name, nil
}

func validateJobDescription(jobDesc string, maxChars int) error {
	if utf8.RuneCountInString(jobDesc) > maxChars {
		return &ValidationError{Field: "jobDesc", Message: MsgJobDescTooLong(maxChars)}
	}
	return nil
}

// readUpload reads the part into memory, refusing anything over maxBytes.
func readUpload(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, &ValidationError{Field: "resume", Message: MsgFileTooLarge(maxBytes)}
	}
	return data, nil
}

func isValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	ok := errors.As(err, &verr)
	return verr, ok
}
