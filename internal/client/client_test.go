package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostbridge/hostbridge/internal/protocol"
)

func strPtr(s string) *string { return &s }

func TestReadResource(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/resources/read", r.URL.Path)

		var params protocol.ReadResourceParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "ui://app/demo", params.URI)

		json.NewEncoder(w).Encode(protocol.ReadResourceResult{
			Contents: []protocol.ResourceContents{
				{URI: params.URI, MimeType: protocol.MIMEType, Text: strPtr("<html></html>")},
			},
		})
	}))
	defer ts.Close()

	c := New(Options{BaseURL: ts.URL})
	result, err := c.ReadResource(context.Background(), "ui://app/demo")
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	require.NotNil(t, result.Contents[0].Text)
	assert.Equal(t, "<html></html>", *result.Contents[0].Text)
}

func TestReadResourceUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer ts.Close()

	c := New(Options{BaseURL: ts.URL})
	_, err := c.ReadResource(context.Background(), "ui://app/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestReadResourceRetriesTransientFailures(t *testing.T) {
	var calls int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(protocol.ReadResourceResult{
			Contents: []protocol.ResourceContents{{URI: "ui://app/demo", Text: strPtr("<html></html>")}},
		})
	}))
	defer ts.Close()

	c := New(Options{BaseURL: ts.URL, MaxRetries: 2})
	result, err := c.ReadResource(context.Background(), "ui://app/demo")
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&calls), int64(2))
}

func TestCallTool(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tools/call", r.URL.Path)

		var params protocol.CallToolParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "sum", params.Name)

		json.NewEncoder(w).Encode(protocol.CallToolResult{
			Content: []protocol.ContentItem{{Type: "text", Text: "3"}},
		})
	}))
	defer ts.Close()

	c := New(Options{BaseURL: ts.URL})
	result, err := c.CallTool(context.Background(), "sum", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "3", result.Content[0].Text)
}
