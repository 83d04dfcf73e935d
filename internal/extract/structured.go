package extract

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
)

// StructuredExtractor reads the PDF object tree page by page.
type StructuredExtractor struct{}

// Name implements Extractor.
func (StructuredExtractor) Name() string { return StrategyStructured }

// Extract returns whitespace-collapsed page text with pages separated by a blank line.
func (StructuredExtractor) Extract(ctx context.Context, doc Document) (text string, err error) {
	defer recoverPanic(StrategyStructured, &err)

	if len(doc.Data) == 0 {
		return "", &Error{Strategy: StrategyStructured, Err: ErrEmptyDocument}
	}
	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), doc.Size())
	if err != nil {
		return "", &Error{Strategy: StrategyStructured, Err: err}
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		raw, err := page.GetPlainText(nil)
		if err != nil {
			return "", &Error{Strategy: StrategyStructured, Err: err}
		}
		if pageText := collapseWhitespace(raw); pageText != "" {
			pages = append(pages, pageText)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

var _ Extractor = StructuredExtractor{}
