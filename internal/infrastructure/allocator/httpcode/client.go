package httpcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
)

// Client reserves resource codes from the backend ahead of an upload
// invocation. One call per invocation; a failed reservation aborts the
// invocation before any upload starts, so there is nothing to roll back.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Reserve(ctx context.Context, count int) ([]string, error) {
	payload, err := json.Marshal(map[string]int{"count": count})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/v1/codes/reserve", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, domain.WrapError(domain.ErrNetwork, "reserve codes", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		kind := domain.ErrBadRequest
		if resp.StatusCode >= 500 {
			kind = domain.ErrServer
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, domain.WrapError(kind, "reserve codes",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	var body struct {
		Codes []string `json:"codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, domain.WrapError(domain.ErrServer, "reserve codes", fmt.Errorf("decode response: %w", err))
	}
	if len(body.Codes) != count {
		return nil, domain.WrapError(domain.ErrServer, "reserve codes",
			fmt.Errorf("requested %d codes, got %d", count, len(body.Codes)))
	}
	return body.Codes, nil
}
