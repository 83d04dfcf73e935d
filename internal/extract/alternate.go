package extract

import (
	"bytes"
	"context"
	"strings"

	"github.com/dslipak/pdf"
)

// AlternateExtractor uses a second PDF library with different content-stream handling.
type AlternateExtractor struct{}

// Name implements Extractor.
func (AlternateExtractor) Name() string { return StrategyAlternate }

// Extract returns page text with per-line whitespace collapsed and pages
// separated by a blank line.
func (AlternateExtractor) Extract(ctx context.Context, doc Document) (text string, err error) {
	defer recoverPanic(StrategyAlternate, &err)

	if len(doc.Data) == 0 {
		return "", &Error{Strategy: StrategyAlternate, Err: ErrEmptyDocument}
	}
	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), doc.Size())
	if err != nil {
		return "", &Error{Strategy: StrategyAlternate, Err: err}
	}

	// Fonts are shared across pages so charmaps are parsed once.
	fonts := make(map[string]*pdf.Font)
	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		raw, err := page.GetPlainText(fonts)
		if err != nil {
			return "", &Error{Strategy: StrategyAlternate, Err: err}
		}
		if pageText := normalizeLines(raw); pageText != "" {
			pages = append(pages, pageText)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

var _ Extractor = AlternateExtractor{}
