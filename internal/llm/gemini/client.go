package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"atsense-api/internal/llm"
)

const defaultTemperature = 0.2

type generateFunc func(ctx context.Context, model string, json bool, parts ...genai.Part) (*genai.GenerateContentResponse, error)

// Client implements llm.Provider on the Gemini API.
type Client struct {
	client   *genai.Client
	generate generateFunc
}

// New constructs a Gemini client for the given API key.
func New(ctx context.Context, apiKey string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, llm.ErrMissingAPIKey
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	c := &Client{client: gc}
	c.generate = func(ctx context.Context, model string, json bool, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
		m := gc.GenerativeModel(model)
		m.SetTemperature(defaultTemperature)
		if json {
			m.ResponseMIMEType = "application/json"
		}
		return m.GenerateContent(ctx, parts...)
	}
	return c, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Generate sends the request parts to the named model and returns the reply text.
func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", errors.New("gemini: model is required")
	}
	resp, err := c.generate(ctx, req.Model, req.JSON, toParts(req.Parts)...)
	if err != nil {
		return "", wrapError(req.Model, err)
	}
	return responseText(resp)
}

func toParts(parts []llm.Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsBlob() {
			mime := p.MIMEType
			if mime == "" {
				mime = "application/octet-stream"
			}
			out = append(out, genai.Blob{MIMEType: mime, Data: p.Data})
			continue
		}
		if p.Text == "" {
			continue
		}
		out = append(out, genai.Text(p.Text))
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", llm.ErrEmptyResponse
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if b.Len() > 0 {
			return b.String(), nil
		}
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("%w: prompt blocked (%s)", llm.ErrEmptyResponse, resp.PromptFeedback.BlockReason)
	}
	return "", llm.ErrEmptyResponse
}

// wrapError keeps the HTTP status in the message so callers can classify it.
func wrapError(model string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("gemini model %s: status %d: %w", model, apiErr.Code, err)
	}
	return fmt.Errorf("gemini model %s: %w", model, err)
}

var _ llm.Provider = (*Client)(nil)
