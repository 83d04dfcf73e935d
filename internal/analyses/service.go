package analyses

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"atsense-api/internal/extract"
	"atsense-api/internal/llm"
	"atsense-api/internal/queue"
	"atsense-api/internal/shared/metrics"
	"atsense-api/internal/shared/storage/object"
	"atsense-api/internal/shared/telemetry"
)

// Service runs extraction, analysis and persistence for one upload.
type Service struct {
	Cascade   *extract.Cascade
	Requester *Requester
	Repo      Repo
	// Archive and Events are optional; failures there never fail a request.
	Archive object.ObjectStore
	Events  queue.Client
	// DocumentFallback sends the raw PDF to the model when no strategy found text.
	DocumentFallback bool

	now   func() time.Time
	newID func() string
}

// NewService constructs a Service with the real clock and UUID ids.
func NewService(cascade *extract.Cascade, requester *Requester, repo Repo) *Service {
	return &Service{
		Cascade:   cascade,
		Requester: requester,
		Repo:      repo,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// AnalyzeRequest is one validated upload.
type AnalyzeRequest struct {
	UserID         string
	RequestID      string
	Document       extract.Document
	JobDescription string
}

// Outcome is a stored analysis together with how it was produced.
type Outcome struct {
	Record     Record
	Result     Result
	Extraction extract.Outcome
	Model      string
	Kind       PayloadKind
}

// Analyze extracts text, requests the analysis and stores it.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (Outcome, error) {
	started := s.clock()
	metrics.IncAnalyzeRequest()

	out := Outcome{Extraction: s.Cascade.Run(ctx, req.Document)}
	if err := ctx.Err(); err != nil {
		return out, s.fail(req, started, err)
	}

	noText := &NoTextError{
		ExtractedLength: utf8.RuneCountInString(out.Extraction.Text),
		Filename:        req.Document.FileName,
		Size:            req.Document.Size(),
	}
	in := Input{
		FileName:       req.Document.FileName,
		MIMEType:       req.Document.MIMEType,
		JobDescription: req.JobDescription,
	}
	if out.Extraction.Succeeded() {
		metrics.IncStrategyHit(out.Extraction.Strategy)
		in.Kind = PayloadText
		in.Text = out.Extraction.Text
	} else {
		metrics.IncExtractionExhausted()
		if !s.DocumentFallback {
			return out, s.fail(req, started, noText)
		}
		metrics.IncDocumentFallback()
		in.Kind = PayloadDocument
		in.Document = req.Document.Data
	}
	out.Kind = in.Kind

	resp, err := s.Requester.Analyze(ctx, in)
	if err != nil {
		if in.Kind == PayloadDocument && fallbackUnreadable(ctx, err) {
			noText.Cause = err
			err = noText
		}
		return out, s.fail(req, started, err)
	}
	out.Result = resp.Result
	out.Model = resp.Model

	id := s.id()
	rec := Record{
		ID:        id,
		UserID:    req.UserID,
		Content:   out.Extraction.Text,
		CreatedAt: s.clock().UTC(),
		Metadata: Metadata{
			Score:        resp.Result.Score,
			Grade:        Grade(resp.Result.Score),
			Summary:      resp.Result.Summary,
			Strengths:    orDefault(resp.Result.Strengths, emptyArray),
			Improvements: orDefault(resp.Result.Improvements, emptyArray),
			Feedback:     resp.Result.Feedback,
			Sections:     orDefault(resp.Result.Sections, emptyObject),
			Extra:        resp.Result.Extra,
			Filename:     req.Document.FileName,
			PayloadKind:  in.Kind,
			Model:        resp.Model,
			Extraction:   &out.Extraction,
		},
	}
	rec.Metadata.AnalyzedAt = rec.CreatedAt
	if jd := strings.TrimSpace(req.JobDescription); jd != "" {
		rec.Metadata.JobDesc = &jd
	}
	rec.Metadata.ArchiveKey = s.archive(ctx, req, id, out.Extraction)

	if err := s.Repo.Insert(ctx, rec); err != nil {
		return out, s.fail(req, started, err)
	}
	out.Record = rec

	s.publish(ctx, req, rec, out.Extraction.Strategy)

	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(msSince(started, s.clock()))
	telemetry.Info("analysis.completed", map[string]any{
		"request_id":          req.RequestID,
		"user_id":             req.UserID,
		"analysis_id":         id,
		"payload_kind":        in.Kind,
		"model":               resp.Model,
		"model_attempts":      resp.Attempts,
		"extraction_strategy": out.Extraction.Strategy,
		"score":               resp.Result.Score,
		"duration_ms":         msSince(started, s.clock()),
	})
	return out, nil
}

// Get returns one of the user's analyses.
func (s *Service) Get(ctx context.Context, userID, id string) (Record, error) {
	return s.Repo.GetByID(ctx, userID, id)
}

// List returns the user's analyses, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// fallbackUnreadable reports whether a document-mode failure means the PDF
// could not be read, as opposed to a limit, deadline or configuration problem.
func fallbackUnreadable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch {
	case errors.Is(err, ErrRateLimitExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, llm.ErrMissingAPIKey):
		return false
	}
	return true
}

func (s *Service) archive(ctx context.Context, req AnalyzeRequest, id string, extraction extract.Outcome) string {
	if s.Archive == nil || !extraction.Succeeded() {
		return ""
	}
	key := object.ExtractedTextKey(req.UserID, id)
	if _, err := s.Archive.Put(ctx, key, "text/plain; charset=utf-8", strings.NewReader(extraction.Text)); err != nil {
		telemetry.Warn("analysis.archive_failed", map[string]any{
			"request_id":  req.RequestID,
			"analysis_id": id,
			"error":       sanitizeError(err),
		})
		return ""
	}
	return key
}

func (s *Service) publish(ctx context.Context, req AnalyzeRequest, rec Record, strategy string) {
	if s.Events == nil {
		return
	}
	msg := queue.Message{
		Type:        queue.EventAnalysisCompleted,
		AnalysisID:  rec.ID,
		UserID:      rec.UserID,
		RequestID:   req.RequestID,
		Score:       rec.Metadata.Score,
		Grade:       rec.Metadata.Grade,
		PayloadKind: string(rec.Metadata.PayloadKind),
		Model:       rec.Metadata.Model,
		Strategy:    strategy,
		CompletedAt: rec.CreatedAt.Format(time.RFC3339),
		Version:     queue.MessageVersion,
	}
	if err := s.Events.Send(ctx, msg); err != nil {
		telemetry.Warn("analysis.publish_failed", map[string]any{
			"request_id":  req.RequestID,
			"analysis_id": rec.ID,
			"error":       sanitizeError(err),
		})
	}
}

func (s *Service) fail(req AnalyzeRequest, started time.Time, err error) error {
	code := classifyFailure(err)
	metrics.IncAnalysisFailed(code)
	metrics.ObserveAnalysisDurationMs(msSince(started, s.clock()))
	telemetry.Warn("analysis.failed", map[string]any{
		"request_id":  req.RequestID,
		"user_id":     req.UserID,
		"filename":    req.Document.FileName,
		"size":        req.Document.Size(),
		"code":        code,
		"error":       sanitizeError(err),
		"duration_ms": msSince(started, s.clock()),
	})
	return err
}

// classifyFailure maps a pipeline error to its API error code.
func classifyFailure(err error) string {
	var (
		storeErr    *StoreError
		providerErr *ProviderError
	)
	switch {
	case err == nil:
		return ErrorCodeInternal
	case errors.Is(err, ErrNoTextExtracted):
		return ErrorCodeNoText
	case errors.Is(err, ErrRateLimitExceeded):
		return ErrorCodeRateLimited
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeTimeout
	case errors.Is(err, context.Canceled):
		return ErrorCodeCanceled
	case errors.Is(err, llm.ErrMissingAPIKey):
		return ErrorCodeNotConfigured
	case errors.Is(err, ErrNoJSON), errors.Is(err, ErrMalformedJSON), errors.Is(err, ErrSchemaMismatch):
		return ErrorCodeParse
	case errors.As(err, &storeErr):
		return ErrorCodeStorage
	case errors.As(err, &providerErr):
		return ErrorCodeProvider
	default:
		return ErrorCodeInternal
	}
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *Service) id() string {
	if s.newID == nil {
		return uuid.NewString()
	}
	return s.newID()
}

func msSince(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000.0
}
