package host

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// OpenExternal opens url with the operating system's default handler.
// It is the fallback when no OpenLink callback is configured. The
// target hint only distinguishes contexts inside a browser surface;
// at the OS level every open lands in a new top-level context.
func OpenExternal(ctx context.Context, url, target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open link %s: %w", url, err)
	}
	return nil
}
