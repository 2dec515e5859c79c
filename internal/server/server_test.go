package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostbridge/hostbridge/internal/config"
	"github.com/hostbridge/hostbridge/internal/protocol"
)

func strPtr(s string) *string { return &s }

// stubUpstream serves canned fragment resources.
func stubUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/resources/read":
			var params protocol.ReadResourceParams
			require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
			json.NewEncoder(w).Encode(protocol.ReadResourceResult{
				Contents: []protocol.ResourceContents{{
					URI:      params.URI,
					MimeType: protocol.MIMEType,
					Text:     strPtr("<html><head></head><body>stub app</body></html>"),
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Upstream.BaseURL = stubUpstream(t).URL

	srv, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func openTestSession(t *testing.T, srv *Server) string {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"uri": "ui://app/demo", "tool_name": "demo"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func TestHealth(t *testing.T) {
	srv := testServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestOpenSessionAndFetchHTML(t *testing.T) {
	srv := testServer(t)
	id := openTestSession(t, srv)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/html", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Content-Security-Policy")
	assert.Contains(t, w.Body.String(), "stub app")
}

func TestOpenSessionRejectsBadURI(t *testing.T) {
	srv := testServer(t)

	body, _ := json.Marshal(map[string]any{"uri": "https://not-a-fragment"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "invalid URI scheme")
}

func TestCloseSession(t *testing.T) {
	srv := testServer(t)
	id := openTestSession(t, srv)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/sessions/"+id, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestToolResultRequiresAttachedSurface(t *testing.T) {
	srv := testServer(t)
	id := openTestSession(t, srv)

	body, _ := json.Marshal(map[string]any{"tool_name": "demo", "result": map[string]any{"x": 1}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/tool-result", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, req)

	// No guest attached yet: delivery is refused, not dropped silently.
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)
	openTestSession(t, srv)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "apphost_fragment_loads_total")
}
