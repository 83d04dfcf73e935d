package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"atsense-api/internal/shared/telemetry"
)

// DefaultMinLength is the trimmed character count a strategy must reach to be accepted.
const DefaultMinLength = 50

// Attempt is the diagnostic record for one strategy run.
type Attempt struct {
	Strategy   string `json:"strategy"`
	Length     int    `json:"length"`
	Succeeded  bool   `json:"succeeded"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// Outcome is the result of a cascade run. Strategy is empty when nothing qualified.
type Outcome struct {
	Text     string    `json:"-"`
	Strategy string    `json:"strategy,omitempty"`
	Attempts []Attempt `json:"attempts"`
}

// Succeeded reports whether some strategy produced enough text.
func (o Outcome) Succeeded() bool {
	return o.Strategy != ""
}

// BestLength is the longest trimmed text any strategy produced.
func (o Outcome) BestLength() int {
	best := 0
	for _, a := range o.Attempts {
		if a.Length > best {
			best = a.Length
		}
	}
	return best
}

// Cascade runs extractors in order until one yields at least minLength characters.
type Cascade struct {
	extractors []Extractor
	minLength  int
}

// NewCascade builds a cascade; a non-positive minLength uses DefaultMinLength.
func NewCascade(minLength int, extractors ...Extractor) *Cascade {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return &Cascade{extractors: extractors, minLength: minLength}
}

// MinLength returns the acceptance threshold.
func (c *Cascade) MinLength() int {
	return c.minLength
}

// Strategies lists extractor names in execution order.
func (c *Cascade) Strategies() []string {
	names := make([]string, 0, len(c.extractors))
	for _, e := range c.extractors {
		names = append(names, e.Name())
	}
	return names
}

// Run never returns an error: strategy failures are recorded in the outcome
// and the next strategy is tried. Cancellation stops the cascade early.
func (c *Cascade) Run(ctx context.Context, doc Document) Outcome {
	out := Outcome{Attempts: make([]Attempt, 0, len(c.extractors))}
	for _, extractor := range c.extractors {
		if err := ctx.Err(); err != nil {
			out.Attempts = append(out.Attempts, Attempt{Strategy: extractor.Name(), Error: err.Error()})
			break
		}

		started := time.Now()
		text, err := runExtractor(ctx, extractor, doc)
		trimmed := strings.TrimSpace(text)
		attempt := Attempt{
			Strategy:   extractor.Name(),
			Length:     utf8.RuneCountInString(trimmed),
			DurationMs: time.Since(started).Milliseconds(),
		}

		switch {
		case err != nil:
			attempt.Error = err.Error()
		case attempt.Length < c.minLength:
			attempt.Error = fmt.Sprintf("insufficient text: %d of %d characters", attempt.Length, c.minLength)
		default:
			attempt.Succeeded = true
		}
		out.Attempts = append(out.Attempts, attempt)

		if attempt.Succeeded {
			out.Text = trimmed
			out.Strategy = attempt.Strategy
			telemetry.Info("extract.success", map[string]any{
				"strategy": attempt.Strategy,
				"length":   attempt.Length,
				"attempts": len(out.Attempts),
			})
			return out
		}
		telemetry.Warn("extract.attempt_failed", map[string]any{
			"strategy":   attempt.Strategy,
			"length":     attempt.Length,
			"error":      attempt.Error,
			"durationMs": attempt.DurationMs,
		})
	}

	telemetry.Warn("extract.exhausted", map[string]any{
		"attempts":   len(out.Attempts),
		"bestLength": out.BestLength(),
		"filename":   doc.FileName,
		"size":       doc.Size(),
	})
	return out
}

// runExtractor shields the cascade from extractor panics.
func runExtractor(ctx context.Context, e Extractor, doc Document) (text string, err error) {
	defer recoverPanic(e.Name(), &err)
	return e.Extract(ctx, doc)
}
