// Package openai is the typed client boundary for the OpenAI REST API. It
// defines the request and response wire objects the tasks assemble and
// extract, plus a thin transport. Every call is a single synchronous
// attempt; retry policy belongs to the orchestrator, not here.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 10 * time.Second
)

type Config struct {
	APIKey  string
	BaseURL string
	// Timeout bounds the whole HTTP exchange. Zero means the 10s default.
	Timeout time.Duration
}

type Client struct {
	http *resty.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(cfg.APIKey)
	return &Client{http: http}
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(out).
		SetError(&errorEnvelope{}).
		Post(path)
	if err != nil {
		return fmt.Errorf("openai request failed: %w", err)
	}
	if resp.IsError() {
		return apiErrorFromResponse(resp)
	}
	return nil
}
