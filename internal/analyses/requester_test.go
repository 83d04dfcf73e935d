package analyses

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"atsense-api/internal/llm"
)

const validReply = `{"score":82,"summary":"Strong backend profile","feedback":["Quantify impact"]}`

type scriptedProvider struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	models  []string
	reqs    []llm.Request
}

func (p *scriptedProvider) Generate(ctx context.Context, req llm.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := len(p.reqs)
	p.reqs = append(p.reqs, req)
	p.models = append(p.models, req.Model)
	var err error
	if i < len(p.errs) {
		err = p.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(p.replies) {
		return p.replies[i], nil
	}
	return validReply, nil
}

func newTestRequester(p llm.Provider, models []string, waits *[]time.Duration) *Requester {
	r := NewRequester(p, models, 3)
	r.sleep = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
	return r
}

func TestModelForAttemptClamps(t *testing.T) {
	models := []string{"a", "b", "c"}
	assert.Equal(t, "a", ModelForAttempt(models, 0))
	assert.Equal(t, "b", ModelForAttempt(models, 1))
	assert.Equal(t, "c", ModelForAttempt(models, 2))
	assert.Equal(t, "c", ModelForAttempt(models, 7))
	assert.Equal(t, "a", ModelForAttempt(models, -1))
	assert.Equal(t, "", ModelForAttempt(nil, 0))
}

func TestIsRateLimited(t *testing.T) {
	transient := []error{
		errors.New("googleapi: Error 429: Resource has been exhausted"),
		errors.New("You exceeded your current quota"),
		errors.New("RATE_LIMIT_EXCEEDED"),
		errors.New("rate limit hit"),
		&googleapi.Error{Code: 429},
	}
	for _, err := range transient {
		assert.True(t, isRateLimited(err), "%v", err)
	}
	permanent := []error{
		nil,
		errors.New("invalid argument: unsupported mime type"),
		errors.New("failed to generate content"),
		&googleapi.Error{Code: 400, Message: "bad request"},
	}
	for _, err := range permanent {
		assert.False(t, isRateLimited(err), "%v", err)
	}
}

func TestBackoffDoubles(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoff(0))
	assert.Equal(t, 4*time.Second, backoff(1))
	assert.Equal(t, 8*time.Second, backoff(2))
}

func TestAnalyzeSucceedsAfterRateLimits(t *testing.T) {
	p := &scriptedProvider{errs: []error{
		errors.New("status 429"),
		errors.New("quota exhausted"),
	}}
	var waits []time.Duration
	r := newTestRequester(p, []string{"m0", "m1", "m2"}, &waits)

	resp, err := r.Analyze(context.Background(), Input{Kind: PayloadText, Text: "resume text"})
	require.NoError(t, err)

	assert.Equal(t, []string{"m0", "m1", "m2"}, p.models)
	assert.Equal(t, "m2", resp.Model)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits)
	assert.Equal(t, float64(82), resp.Result.Score)
}

func TestAnalyzeStopsAfterMaxRetries(t *testing.T) {
	rateErr := errors.New("429 too many requests")
	p := &scriptedProvider{errs: []error{rateErr, rateErr, rateErr, rateErr, rateErr}}
	var waits []time.Duration
	r := newTestRequester(p, []string{"only"}, &waits)

	_, err := r.Analyze(context.Background(), Input{Text: "resume text"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimitExceeded)
	assert.Len(t, p.reqs, 3)
	assert.Equal(t, []string{"only", "only", "only"}, p.models)
	assert.Len(t, waits, 2)
}

func TestAnalyzeFailsFastOnOtherErrors(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("invalid api key")}}
	var waits []time.Duration
	r := newTestRequester(p, []string{"m0", "m1"}, &waits)

	_, err := r.Analyze(context.Background(), Input{Text: "resume text"})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "m0", perr.Model)
	assert.Len(t, p.reqs, 1)
	assert.Empty(t, waits)
	assert.NotErrorIs(t, err, ErrRateLimitExceeded)
}

func TestAnalyzeDoesNotRetryParseFailures(t *testing.T) {
	p := &scriptedProvider{replies: []string{"I'm sorry, I can't help with that."}}
	var waits []time.Duration
	r := newTestRequester(p, []string{"m0"}, &waits)

	_, err := r.Analyze(context.Background(), Input{Text: "resume text"})
	assert.ErrorIs(t, err, ErrNoJSON)
	assert.Len(t, p.reqs, 1)
}

func TestAnalyzeHonoursCancellationDuringBackoff(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("429"), errors.New("429")}}
	r := NewRequester(p, []string{"m0", "m1"}, 3)
	ctx, cancel := context.WithCancel(context.Background())
	r.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	_, err := r.Analyze(ctx, Input{Text: "resume text"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, p.reqs, 1)
}

func TestAnalyzeRequiresProviderAndModels(t *testing.T) {
	_, err := (&Requester{}).Analyze(context.Background(), Input{Text: "x"})
	assert.ErrorIs(t, err, llm.ErrMissingAPIKey)

	_, err = NewRequester(&scriptedProvider{}, nil, 0).Analyze(context.Background(), Input{Text: "x"})
	assert.Error(t, err)
}

func TestBuildPartsText(t *testing.T) {
	parts, err := buildParts(Input{Kind: PayloadText, Text: "Jane Doe", JobDescription: "  Go engineer  "})
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Contains(t, parts[0].Text, "against the provided job description")
	assert.Equal(t, "Resume:\nJane Doe", parts[1].Text)
	assert.Equal(t, "Job Description:\nGo engineer", parts[2].Text)
}

func TestBuildPartsDocument(t *testing.T) {
	parts, err := buildParts(Input{Kind: PayloadDocument, Document: make([]byte, 2048), FileName: "cv.pdf"})
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.NotContains(t, parts[0].Text, "against the provided job description")
	assert.True(t, strings.Contains(parts[1].Text, `"cv.pdf" (2 KB)`), parts[1].Text)
	assert.True(t, parts[2].IsBlob())
	assert.Equal(t, "application/pdf", parts[2].MIMEType)
}

func TestBuildPartsRejectsEmptyPayload(t *testing.T) {
	_, err := buildParts(Input{Kind: PayloadText, Text: "  "})
	assert.Error(t, err)
	_, err = buildParts(Input{Kind: PayloadDocument})
	assert.Error(t, err)
	_, err = buildParts(Input{Kind: "fax", Text: "x"})
	assert.Error(t, err)
}
