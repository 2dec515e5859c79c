// Package host defines the capability surface a host application
// exposes to guest fragments, and the immutable context snapshot
// handed to the guest during handshake. All guest capability is
// mediated here; the fragment never touches host state directly.
package host

import (
	"context"

	"github.com/hostbridge/hostbridge/internal/protocol"
)

// ToolCaller invokes a named tool on the guest's behalf.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, arguments map[string]any) (*protocol.CallToolResult, error)
}

// ResourceReader reads a named resource on the guest's behalf.
type ResourceReader interface {
	ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error)
}

// OpenLinkFunc handles a guest request to open an external link.
type OpenLinkFunc func(ctx context.Context, url, target string) error

// SizeChangedFunc receives guest size-change notifications. Width is
// nil when the guest reports only a height.
type SizeChangedFunc func(width *int, height int)

// MessageFunc receives guest conversation messages.
type MessageFunc func(role, content string)

// Capabilities bundles the operations the protocol engine may invoke
// on the guest's behalf. Tools and Resources are required for the
// corresponding guest requests to succeed; the rest are optional.
type Capabilities struct {
	Tools     ToolCaller
	Resources ResourceReader

	// OpenLink, when nil, falls back to OpenExternal.
	OpenLink OpenLinkFunc

	OnSizeChanged SizeChangedFunc
	OnMessage     MessageFunc
}

// Features reports which capability-surface operations are wired, for
// advertisement in the host context.
func (c Capabilities) Features() protocol.HostFeatures {
	return protocol.HostFeatures{
		Tools:     c.Tools != nil,
		Resources: c.Resources != nil,
		OpenLink:  true, // always honored, via callback or fallback
	}
}
