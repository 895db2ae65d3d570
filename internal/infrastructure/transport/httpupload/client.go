package httpupload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/ports"
)

// Client implements the two logical upload paths and the pre-resource
// lookup against the backend API. Transfers stream through an io.Pipe so
// byte progress reflects what actually left the client.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) UploadResource(
	ctx context.Context,
	req ports.PlainUploadRequest,
	progress ports.ProgressFunc,
) (*domain.Resource, error) {
	fields := map[string]string{
		"project_id":  req.ProjectID,
		"title":       req.Title,
		"namespace":   req.Namespace,
		"type":        req.Type,
		"description": req.Description,
		"code":        req.Code,
	}
	resp, err := c.postMultipart(ctx, "/v1/resources", fields, req.FileName, req.Body, req.ByteSize, progress)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, errorFromResponse("upload resource", resp)
	}
	var res domain.Resource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, domain.WrapError(domain.ErrServer, "upload resource", fmt.Errorf("decode response: %w", err))
	}
	return &res, nil
}

func (c *Client) SubmitSplit(
	ctx context.Context,
	req ports.SplitUploadRequest,
	progress ports.ProgressFunc,
) (*domain.PreResource, error) {
	fields := map[string]string{
		"project_id": req.ProjectID,
		"split_mode": string(req.SplitMode),
		"code":       req.Code,
	}
	if req.PageRanges != "" {
		// Passed through verbatim; the worker owns the grammar.
		fields["page_ranges"] = req.PageRanges
	}

	resp, err := c.postMultipart(ctx, "/v1/resources/split", fields, req.FileName, req.Body, req.ByteSize, progress)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return nil, errorFromResponse("submit split", resp)
	}
	var pre domain.PreResource
	if err := json.NewDecoder(resp.Body).Decode(&pre); err != nil {
		return nil, domain.WrapError(domain.ErrServer, "submit split", fmt.Errorf("decode response: %w", err))
	}
	return &pre, nil
}

func (c *Client) FindPreResource(ctx context.Context, id string) (*domain.PreResource, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/pre-resources/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, domain.WrapError(domain.ErrNetwork, "find pre-resource", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse("find pre-resource", resp)
	}
	var pre domain.PreResource
	if err := json.NewDecoder(resp.Body).Decode(&pre); err != nil {
		return nil, domain.WrapError(domain.ErrServer, "find pre-resource", fmt.Errorf("decode response: %w", err))
	}
	return &pre, nil
}

func (c *Client) postMultipart(
	ctx context.Context,
	path string,
	fields map[string]string,
	filename string,
	file io.Reader,
	size int64,
	progress ports.ProgressFunc,
) (*http.Response, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := writeForm(writer, fields, filename, file, size, progress)
		if closeErr := writer.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, domain.WrapError(domain.ErrNetwork, "post "+path, err)
	}
	return resp, nil
}

func writeForm(
	writer *multipart.Writer,
	fields map[string]string,
	filename string,
	file io.Reader,
	size int64,
	progress ports.ProgressFunc,
) error {
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return fmt.Errorf("write field %s: %w", name, err)
		}
	}

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, newProgressReader(file, size, progress)); err != nil {
		return fmt.Errorf("stream file: %w", err)
	}
	return nil
}

func errorFromResponse(operation string, resp *http.Response) error {
	detail := readErrorDetail(resp.Body)

	var kind error
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		kind = domain.ErrAuthentication
	case resp.StatusCode == http.StatusForbidden:
		kind = domain.ErrAuthorization
	case resp.StatusCode == http.StatusNotFound:
		kind = domain.ErrResourceNotFound
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		kind = domain.ErrPayloadTooLarge
	case resp.StatusCode >= 500:
		kind = domain.ErrServer
	default:
		kind = domain.ErrBadRequest
	}
	return domain.WrapError(kind, operation, fmt.Errorf("status %d: %s", resp.StatusCode, detail))
}

func readErrorDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4<<10))
	if err != nil {
		return "unreadable error body"
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	if trimmed := strings.TrimSpace(string(raw)); trimmed != "" {
		return trimmed
	}
	return "no error detail"
}
