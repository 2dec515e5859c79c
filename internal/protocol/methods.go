package protocol

import "encoding/json"

// Fragment markup constants.
const (
	// MIMEType identifies fragment markup served by app-declaring servers.
	MIMEType = "text/html;profile=mcp-app"
	// URIScheme is the fixed prefix every fragment URI must carry.
	URIScheme = "ui://"
)

// Host -> guest methods.
const (
	MethodInitialize = "ui/initialize"
	MethodToolResult = "ui/notifications/tool-result"
)

// Guest -> host methods.
const (
	MethodCallTool     = "tools/call"
	MethodReadResource = "resources/read"
	MethodOpenLink     = "ui/open-link"
	MethodSizeChanged  = "ui/notifications/size-changed"
	MethodMessage      = "ui/message"
)

// HostContext is the immutable snapshot passed to the guest exactly
// once, during the ui/initialize handshake.
type HostContext struct {
	InstanceID   string       `json:"instanceId"`
	DisplayMode  string       `json:"displayMode"`
	Theme        string       `json:"theme"`
	Locale       string       `json:"locale,omitempty"`
	Device       DeviceInfo   `json:"device"`
	Capabilities HostFeatures `json:"capabilities"`
}

// DeviceInfo describes the embedding device surface.
type DeviceInfo struct {
	Type   string `json:"type"` // "desktop", "mobile", "tablet"
	Touch  bool   `json:"touch"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// HostFeatures advertises which capability-surface operations the host
// will honor.
type HostFeatures struct {
	Tools     bool `json:"tools"`
	Resources bool `json:"resources"`
	OpenLink  bool `json:"openLink"`
}

// InitializeParams is the ui/initialize request payload.
type InitializeParams struct {
	HostContext HostContext     `json:"hostContext"`
	ToolName    string          `json:"toolName,omitempty"`
	ToolInput   map[string]any  `json:"toolInput,omitempty"`
	ToolResult  *CallToolResult `json:"toolResult,omitempty"`
}

// InitializeResult is the guest's handshake reply.
type InitializeResult struct {
	GuestCapabilities *GuestCapabilities `json:"guestCapabilities,omitempty"`
}

// GuestCapabilities is what the guest advertises back during handshake.
type GuestCapabilities struct {
	PreferredDisplayModes []string `json:"preferredDisplayModes,omitempty"`
}

// ToolResultParams is the ui/notifications/tool-result payload.
type ToolResultParams struct {
	ToolName string          `json:"toolName"`
	Result   json.RawMessage `json:"result"`
	IsError  bool            `json:"isError"`
}

// CallToolParams is the tools/call request payload.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult is the tools/call response payload.
type CallToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ContentItem is one element of a tool result.
type ContentItem struct {
	Type     string `json:"type"` // "text", "image", "resource"
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// ReadResourceParams is the resources/read request payload.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ReadResourceResult is the resources/read response payload.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// ResourceContents is one entry of a resource read. A present Text
// field carries markup verbatim, even when empty; Blob carries
// base64-encoded bytes.
type ResourceContents struct {
	URI      string  `json:"uri"`
	MimeType string  `json:"mimeType,omitempty"`
	Text     *string `json:"text,omitempty"`
	Blob     string  `json:"blob,omitempty"`
}

// OpenLinkParams is the ui/open-link request payload.
type OpenLinkParams struct {
	URL    string `json:"url"`
	Target string `json:"target,omitempty"` // "_blank" or "_self"
}

// OpenLinkResult is the ui/open-link response payload.
type OpenLinkResult struct {
	Success bool `json:"success"`
}

// SizeChangedParams is the ui/notifications/size-changed payload.
type SizeChangedParams struct {
	Width  *int `json:"width,omitempty"`
	Height int  `json:"height"`
}

// MessageParams is the ui/message payload: the guest asks the host to
// append a message to the surrounding conversation.
type MessageParams struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}
