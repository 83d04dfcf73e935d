package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"atsense-api/internal/llm"
	"atsense-api/internal/shared/metrics"
	"atsense-api/internal/shared/telemetry"
)

// DefaultMaxRetries is the total number of provider attempts per analysis.
const DefaultMaxRetries = 3

// ErrRateLimitExceeded is returned once every retry hit a rate or quota limit.
var ErrRateLimitExceeded = errors.New("rate limit exceeded, please try again later")

// ProviderError is a non-transient provider failure; it is never retried.
type ProviderError struct {
	Model   string
	Attempt int
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("analysis provider model=%s attempt=%d: %v", e.Model, e.Attempt, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Input is the resume payload handed to the model.
type Input struct {
	Kind           PayloadKind
	Text           string
	Document       []byte
	MIMEType       string
	FileName       string
	JobDescription string
}

// Response is a parsed analysis with the model that produced it.
type Response struct {
	Result   Result
	Model    string
	Attempts int
	Raw      string
}

// Requester sends analysis prompts, walking the model list on rate limits.
type Requester struct {
	Provider   llm.Provider
	Models     []string
	MaxRetries int

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRequester builds a Requester; maxRetries <= 0 uses DefaultMaxRetries.
func NewRequester(provider llm.Provider, models []string, maxRetries int) *Requester {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Requester{
		Provider:   provider,
		Models:     append([]string(nil), models...),
		MaxRetries: maxRetries,
		sleep:      sleepContext,
	}
}

// Analyze runs the prompt against the model ladder. Rate-limit errors are
// retried with exponential backoff up to MaxRetries attempts; any other
// provider error fails immediately. Parse failures are not retried.
func (r *Requester) Analyze(ctx context.Context, in Input) (Response, error) {
	if r.Provider == nil {
		return Response{}, llm.ErrMissingAPIKey
	}
	if len(r.Models) == 0 {
		return Response{}, errors.New("no analysis models configured")
	}
	parts, err := buildParts(in)
	if err != nil {
		return Response{}, err
	}
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; ; attempt++ {
		model := ModelForAttempt(r.Models, attempt)
		reply, err := r.Provider.Generate(ctx, llm.Request{Model: model, Parts: parts, JSON: true})
		if err == nil {
			result, perr := ParseReply(reply)
			if perr != nil {
				telemetry.Warn("analysis.parse_failed", map[string]any{
					"model":   model,
					"attempt": attempt,
					"error":   sanitizeError(perr),
					"reply":   truncate(reply, 2000),
				})
				return Response{}, perr
			}
			return Response{Result: result, Model: model, Attempts: attempt + 1, Raw: reply}, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}
		if !isRateLimited(err) {
			return Response{}, &ProviderError{Model: model, Attempt: attempt, Err: err}
		}
		if attempt+1 >= maxRetries {
			telemetry.Warn("analysis.rate_limit_exhausted", map[string]any{
				"model":    model,
				"attempts": attempt + 1,
				"error":    sanitizeError(err),
			})
			return Response{}, fmt.Errorf("%w after %d attempts: %w", ErrRateLimitExceeded, attempt+1, err)
		}

		wait := backoff(attempt)
		metrics.IncProviderRetry()
		telemetry.Warn("analysis.rate_limited", map[string]any{
			"model":      model,
			"attempt":    attempt,
			"next_model": ModelForAttempt(r.Models, attempt+1),
			"wait_ms":    wait.Milliseconds(),
			"error":      sanitizeError(err),
		})
		if err := sleep(ctx, wait); err != nil {
			return Response{}, err
		}
	}
}

func buildParts(in Input) ([]llm.Part, error) {
	jobDesc := strings.TrimSpace(in.JobDescription)
	parts := []llm.Part{llm.TextPart(llm.AnalysisPrompt(jobDesc != ""))}

	switch in.Kind {
	case PayloadText, "":
		if strings.TrimSpace(in.Text) == "" {
			return nil, errors.New("analysis input has no resume text")
		}
		parts = append(parts, llm.TextPart("Resume:\n"+in.Text))
	case PayloadDocument:
		if len(in.Document) == 0 {
			return nil, errors.New("analysis input has no document bytes")
		}
		mime := in.MIMEType
		if mime == "" {
			mime = "application/pdf"
		}
		parts = append(parts,
			llm.TextPart(documentHeader(in.FileName, len(in.Document))),
			llm.BlobPart(mime, in.Document),
		)
	default:
		return nil, fmt.Errorf("unknown payload kind %q", in.Kind)
	}

	if jobDesc != "" {
		parts = append(parts, llm.TextPart("Job Description:\n"+jobDesc))
	}
	return parts, nil
}

func documentHeader(fileName string, size int) string {
	kb := (size + 1023) / 1024
	if fileName == "" {
		return fmt.Sprintf("Resume: attached PDF document (%d KB).", kb)
	}
	return fmt.Sprintf("Resume: attached PDF document %q (%d KB).", fileName, kb)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
