// Package meta provides the shared Graph API client used by the Facebook,
// Instagram, and Threads adapters: form-encoded requests, bearer token
// handling, and translation of Graph error payloads into typed publish errors.
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/castpost/castpost-api/internal/publish"
)

// Graph API error codes that signal throttling rather than a broken request.
var rateLimitCodes = map[int]bool{
	4:   true, // application request limit
	17:  true, // user request limit
	32:  true, // page request limit
	613: true, // custom rate limit
}

const invalidTokenCode = 190

// Client is a minimal Graph API client. BaseURL is overridable for tests.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Graph client with the given base URL and per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// graphError is the Graph API error envelope.
type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// PostForm sends a form-encoded POST to path with the access token included
// and returns the raw response body on success.
func (c *Client) PostForm(ctx context.Context, path, token string, params url.Values) (json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, publish.NewError(publish.KindUnknown, "", "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

// Get sends a GET to path with the access token appended as a query parameter.
func (c *Client) Get(ctx context.Context, path, token string, params url.Values) (json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, publish.NewError(publish.KindUnknown, "", "failed to build request", err)
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, publish.NewError(publish.KindTransient, "", "graph request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, publish.NewError(publish.KindTransient, "", "failed to read graph response", err)
	}

	if resp.StatusCode >= 400 {
		return nil, mapGraphError(resp.StatusCode, body)
	}

	return body, nil
}

// mapGraphError prefers the Graph error envelope's code over the raw HTTP
// status when classifying a failure.
func mapGraphError(status int, body []byte) error {
	var envelope graphError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		kind := publish.ClassifyStatus(status)
		switch {
		case envelope.Error.Code == invalidTokenCode:
			kind = publish.KindAuth
		case rateLimitCodes[envelope.Error.Code]:
			kind = publish.KindRateLimit
		}

		return publish.NewError(
			kind,
			fmt.Sprintf("%d", envelope.Error.Code),
			envelope.Error.Message,
			nil,
		)
	}

	return publish.StatusError(status, string(body), nil)
}
