package langchain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/schema"

	"atsense-api/internal/llm"
)

// contentGenerator is the part of llms.Model the client relies on.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Client implements llm.Provider through langchaingo's Google AI backend.
type Client struct {
	model contentGenerator
}

// New builds a langchaingo Google AI model with defaultModel as fallback.
func New(ctx context.Context, apiKey, defaultModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, llm.ErrMissingAPIKey
	}
	opts := []googleai.Option{googleai.WithAPIKey(apiKey)}
	if defaultModel != "" {
		opts = append(opts, googleai.WithDefaultModel(defaultModel))
	}
	model, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain googleai: %w", err)
	}
	return &Client{model: model}, nil
}

// Generate sends a single human turn built from the request parts.
func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", errors.New("langchain: model is required")
	}
	msg := llms.MessageContent{Role: schema.ChatMessageTypeHuman}
	for _, p := range req.Parts {
		switch {
		case p.IsBlob():
			msg.Parts = append(msg.Parts, llms.BinaryPart(p.MIMEType, p.Data))
		case p.Text != "":
			msg.Parts = append(msg.Parts, llms.TextPart(p.Text))
		}
	}

	opts := []llms.CallOption{llms.WithModel(req.Model)}
	if req.JSON {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := c.model.GenerateContent(ctx, []llms.MessageContent{msg}, opts...)
	if err != nil {
		return "", fmt.Errorf("langchain model %s: %w", req.Model, err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil || resp.Choices[0].Content == "" {
		return "", llm.ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

var _ llm.Provider = (*Client)(nil)
