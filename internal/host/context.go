package host

import (
	"github.com/google/uuid"

	"github.com/hostbridge/hostbridge/internal/protocol"
)

// ContextOptions configures the host-context snapshot.
type ContextOptions struct {
	DisplayMode string // defaults to "inline"
	Theme       string // defaults to "light"
	Locale      string
	Device      protocol.DeviceInfo
}

// NewContext builds the immutable host-context snapshot passed to the
// guest during handshake. Each call generates a fresh instance id.
func NewContext(opts ContextOptions, caps Capabilities) protocol.HostContext {
	displayMode := opts.DisplayMode
	if displayMode == "" {
		displayMode = "inline"
	}
	theme := opts.Theme
	if theme == "" {
		theme = "light"
	}
	device := opts.Device
	if device.Type == "" {
		device.Type = "desktop"
	}

	return protocol.HostContext{
		InstanceID:   uuid.New().String(),
		DisplayMode:  displayMode,
		Theme:        theme,
		Locale:       opts.Locale,
		Device:       device,
		Capabilities: caps.Features(),
	}
}
