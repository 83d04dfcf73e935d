// Package extract turns uploaded resume documents into plain text.
//
// Strategies are tried in a fixed order by a Cascade; the first one that
// yields enough text wins and the rest are never invoked.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Strategy names recorded in attempt diagnostics.
const (
	StrategyStructured = "structured"
	StrategyAlternate  = "alternate"
	StrategyVision     = "vision"
)

// Document is an uploaded file held in memory for extraction.
type Document struct {
	Data     []byte
	MIMEType string
	FileName string
}

// Size returns the document length in bytes.
func (d Document) Size() int64 {
	return int64(len(d.Data))
}

// Extractor pulls text out of a document.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, doc Document) (string, error)
}

// Error records why one strategy could not produce text.
type Error struct {
	Strategy string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s extraction: %v", e.Strategy, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrEmptyDocument is returned for zero-length input.
var ErrEmptyDocument = errors.New("document is empty")

// recoverPanic converts parser panics on malformed input into an *Error.
func recoverPanic(strategy string, err *error) {
	if r := recover(); r != nil {
		*err = &Error{Strategy: strategy, Err: fmt.Errorf("parser panic: %v", r)}
	}
}

// collapseWhitespace folds every whitespace run into a single space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// normalizeLines collapses whitespace within lines and drops blank ones.
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = collapseWhitespace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
