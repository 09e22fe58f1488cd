// Package api is the REST transport under the resource services: bearer
// injection, JSON bodies, and the error taxonomy the UI layers display.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenSource supplies the current bearer token. The session store satisfies
// this; an empty token means the call goes out unauthenticated.
type TokenSource interface {
	AccessToken() string
}

// Client issues requests against the SiPanit REST backend.
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenSource
	logger  *slog.Logger
}

// NewClient constructs a Client for the given base URL. A nil httpc falls
// back to a client with a conservative overall timeout.
func NewClient(baseURL string, httpc *http.Client, tokens TokenSource, logger *slog.Logger) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   httpc,
		tokens:  tokens,
		logger:  logger,
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func (c *Client) do(op string, req *http.Request) (*http.Response, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Message: fmt.Sprintf("%s failed: %v", op, err), Err: err}
	}
	return resp, nil
}

// JSON issues a request with an optional JSON body and decodes a JSON
// response into out when out is non-nil.
func (c *Client) JSON(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf("%s failed: %v", op, err), Err: err}
		}
		body = bytes.NewReader(encoded)
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Message: fmt.Sprintf("%s failed: %v", op, err), Err: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(op, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: fmt.Sprintf("%s failed: unreadable response", op), Err: err}
	}
	return nil
}

// Get issues an authenticated GET decoding JSON into out.
func (c *Client) Get(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.JSON(ctx, op, http.MethodGet, path, query, nil, out)
}

// Post issues an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, op, path string, in, out any) error {
	return c.JSON(ctx, op, http.MethodPost, path, nil, in, out)
}

// Patch issues an authenticated PATCH with a JSON body (partial update).
func (c *Client) Patch(ctx context.Context, op, path string, in, out any) error {
	return c.JSON(ctx, op, http.MethodPatch, path, nil, in, out)
}

// Put issues an authenticated PUT with a JSON body.
func (c *Client) Put(ctx context.Context, op, path string, in, out any) error {
	return c.JSON(ctx, op, http.MethodPut, path, nil, in, out)
}

// Delete issues an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, op, path string) error {
	return c.JSON(ctx, op, http.MethodDelete, path, nil, nil, nil)
}

// PostMultipart uploads a single file plus form fields, decoding a JSON
// response into out when out is non-nil. Used by the CSV guest import.
func (c *Client) PostMultipart(ctx context.Context, op, path string, fields map[string]string, fileField, filename string, file io.Reader, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf("%s failed: %v", op, err), Err: err}
		}
	}
	part, err := writer.CreateFormFile(fileField, filename)
	if err != nil {
		return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf("%s failed: %v", op, err), Err: err}
	}
	if _, err := io.Copy(part, file); err != nil {
		return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf("%s failed: %v", op, err), Err: err}
	}
	if err := writer.Close(); err != nil {
		return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf("%s failed: %v", op, err), Err: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, nil, &buf)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Message: fmt.Sprintf("%s failed: %v", op, err), Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(op, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: fmt.Sprintf("%s failed: unreadable response", op), Err: err}
	}
	return nil
}

// GetBlob issues an authenticated GET returning the raw response body. Used
// for QR code images.
func (c *Client) GetBlob(ctx context.Context, op, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Message: fmt.Sprintf("%s failed: %v", op, err), Err: err}
	}

	resp, err := c.do(op, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.decodeError(op, resp)
	}
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: fmt.Sprintf("%s failed: unreadable response", op), Err: err}
	}
	return blob, nil
}

// decodeError extracts a display message from an error response. Server
// detail fields take precedence over the generic fallback.
func (c *Client) decodeError(op string, resp *http.Response) error {
	apiErr := &Error{
		Kind:    kindForStatus(resp.StatusCode),
		Op:      op,
		Status:  resp.StatusCode,
		Message: fmt.Sprintf("%s failed: %d", op, resp.StatusCode),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var payload struct {
		Detail  string `json:"detail"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}
	for _, candidate := range []string{payload.Detail, payload.Error, payload.Message} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			apiErr.Message = trimmed
			break
		}
	}
	return apiErr
}
