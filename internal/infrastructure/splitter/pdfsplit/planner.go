package pdfsplit

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/docstream/internal/core/domain"
)

// Planner decides the child-document page spans of a multi-invoice
// submission. Manual mode parses the user-supplied range hint; automatic
// mode treats every page as one document, leaving smarter boundary
// detection to the analysis layer.
type Planner struct{}

func NewPlanner() *Planner {
	return &Planner{}
}

func (p *Planner) Plan(
	_ context.Context,
	pre *domain.PreResource,
	r io.ReaderAt,
	size int64,
) ([]domain.PageSpan, error) {
	pages, err := countPages(r, size, pre.MimeType)
	if err != nil {
		return nil, err
	}
	if pages <= 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	if pre.SplitMode == domain.SplitModeManual && strings.TrimSpace(pre.PageRanges) != "" {
		return ParseRanges(pre.PageRanges, pages)
	}

	spans := make([]domain.PageSpan, pages)
	for i := range spans {
		spans[i] = domain.PageSpan{From: i + 1, To: i + 1}
	}
	return spans, nil
}

func countPages(r io.ReaderAt, size int64, mimeType string) (pages int, err error) {
	// Single-page image formats go through the split path too when a user
	// flags them; they always yield exactly one span.
	if strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return 1, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf parse panic: %v", rec)
		}
	}()
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}
