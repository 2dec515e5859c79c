// Package client reads fragment resources from a remote app-declaring
// server over HTTP, with retries and backoff. Its ReadResource method
// plugs directly into the loader as its fetch function.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/hostbridge/hostbridge/internal/logging"
	"github.com/hostbridge/hostbridge/internal/protocol"
)

// Options configures the resource client.
type Options struct {
	// BaseURL of the app-declaring server, without trailing slash.
	BaseURL string
	// Timeout bounds each attempt. Zero means 30s.
	Timeout time.Duration
	// MaxRetries for transient failures. Zero means 3.
	MaxRetries int
	Logger     *logging.Logger
}

// Client fetches resources from one upstream server.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
	log     *logging.Logger
}

// New creates a resource client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	retries := opts.MaxRetries
	if retries == 0 {
		retries = 3
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil

	return &Client{
		http:    rc,
		baseURL: opts.BaseURL,
		log:     log.Named("client"),
	}
}

// ReadResource fetches the resource behind uri via the upstream's
// resources/read endpoint. Matches loader.ReadResourceFunc.
func (c *Client) ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error) {
	body, err := sonic.Marshal(protocol.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, fmt.Errorf("marshal read request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/resources/read", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build read request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read resource %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("read resource %s: upstream returned %s", uri, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read resource %s: %w", uri, err)
	}

	var result protocol.ReadResourceResult
	if err := sonic.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("read resource %s: decode response: %w", uri, err)
	}
	return &result, nil
}
