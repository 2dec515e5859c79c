package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/hostbridge/hostbridge/internal/protocol"
)

// CallTool invokes a named tool on the upstream server. Matches
// host.ToolCaller, so a Client can back the whole capability surface.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*protocol.CallToolResult, error) {
	body, err := sonic.Marshal(protocol.CallToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, fmt.Errorf("marshal tool call: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/tools/call", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tool call: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call tool %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("call tool %s: upstream returned %s", name, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("call tool %s: %w", name, err)
	}

	var result protocol.CallToolResult
	if err := sonic.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("call tool %s: decode response: %w", name, err)
	}
	return &result, nil
}
