package extract

import (
	"context"
	"errors"
	"strings"

	"atsense-api/internal/llm"
)

// VisionExtractor asks a multimodal model to transcribe the document.
// It is the most expensive strategy and belongs at the end of a cascade.
type VisionExtractor struct {
	Provider llm.Provider
	Model    string
}

// Name implements Extractor.
func (VisionExtractor) Name() string { return StrategyVision }

// Extract sends the raw document bytes with a transcription instruction.
func (v VisionExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	if v.Provider == nil {
		return "", &Error{Strategy: StrategyVision, Err: llm.ErrMissingAPIKey}
	}
	if strings.TrimSpace(v.Model) == "" {
		return "", &Error{Strategy: StrategyVision, Err: errors.New("vision model is not configured")}
	}
	if len(doc.Data) == 0 {
		return "", &Error{Strategy: StrategyVision, Err: ErrEmptyDocument}
	}
	mime := doc.MIMEType
	if mime == "" {
		mime = "application/pdf"
	}

	reply, err := v.Provider.Generate(ctx, llm.Request{
		Model: v.Model,
		Parts: []llm.Part{
			llm.TextPart(llm.TranscriptionPrompt()),
			llm.BlobPart(mime, doc.Data),
		},
	})
	if err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			return "", nil
		}
		return "", &Error{Strategy: StrategyVision, Err: err}
	}
	return normalizeLines(stripFences(reply)), nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

var _ Extractor = VisionExtractor{}
