package auth

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// RedirectOpener presents an authorization URL in a browser surface so an
// OAuth redirect flow can run. On hosts without a separate browser
// surface (a web shell, a test), callers supply their own implementation;
// the container never assumes one exists.
type RedirectOpener interface {
	Open(ctx context.Context, url string) error
}

// RedirectOpenerFunc adapts a function to the RedirectOpener interface.
type RedirectOpenerFunc func(ctx context.Context, url string) error

func (f RedirectOpenerFunc) Open(ctx context.Context, url string) error {
	return f(ctx, url)
}

// SystemBrowser opens URLs with the operating system's default browser.
type SystemBrowser struct{}

func (SystemBrowser) Open(ctx context.Context, url string) error {
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
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}
