package pdfsplit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/docstream/internal/core/domain"
)

// ParseRanges parses a manual split hint like "1-2,3,5-7" into page spans.
// Pages are 1-based and inclusive; spans beyond the document are clamped to
// pageCount. The grammar is owned here, server-side; clients forward the
// string untouched.
func ParseRanges(raw string, pageCount int) ([]domain.PageSpan, error) {
	var spans []domain.PageSpan
	for _, chunk := range strings.Split(raw, ",") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}

		span, err := parseChunk(chunk)
		if err != nil {
			return nil, err
		}
		if span.From > pageCount {
			return nil, fmt.Errorf("range %q starts past the last page (%d)", chunk, pageCount)
		}
		if span.To > pageCount {
			span.To = pageCount
		}
		spans = append(spans, span)
	}
	if len(spans) == 0 {
		return nil, fmt.Errorf("page ranges %q contain no usable spans", raw)
	}
	return spans, nil
}

func parseChunk(chunk string) (domain.PageSpan, error) {
	from, to, found := strings.Cut(chunk, "-")
	if !found {
		page, err := parsePage(chunk)
		if err != nil {
			return domain.PageSpan{}, err
		}
		return domain.PageSpan{From: page, To: page}, nil
	}

	start, err := parsePage(from)
	if err != nil {
		return domain.PageSpan{}, err
	}
	end, err := parsePage(to)
	if err != nil {
		return domain.PageSpan{}, err
	}
	if end < start {
		return domain.PageSpan{}, fmt.Errorf("range %q ends before it starts", chunk)
	}
	return domain.PageSpan{From: start, To: end}, nil
}

func parsePage(s string) (int, error) {
	page, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid page number %q", s)
	}
	if page < 1 {
		return 0, fmt.Errorf("page numbers are 1-based, got %d", page)
	}
	return page, nil
}
