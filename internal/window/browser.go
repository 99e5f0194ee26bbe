package window

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// BrowserPresenter opens the URL in the system browser. The launcher cannot
// see that tab close, so the window ends with ctx (Ctrl+C, SIGTERM, /quit).
type BrowserPresenter struct {
	// Opener launches the browser; nil uses the platform default.
	Opener func(url string) error
}

func (p BrowserPresenter) Open(ctx context.Context, url string, _ Options) (Window, error) {
	open := p.Opener
	if open == nil {
		open = openBrowser
	}
	if err := open(url); err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}
	slog.Info("Opened in browser; stop the launcher to shut the server down", "url", url)
	return newCtxWindow(ctx), nil
}

func browserCommand(goos, url string) *exec.Cmd {
	switch goos {
	case "windows":
		// #nosec G204 -- url comes from validated config
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		// #nosec G204
		return exec.Command("open", url)
	default:
		// #nosec G204
		return exec.Command("xdg-open", url)
	}
}

func openBrowser(url string) error {
	cmd := browserCommand(runtime.GOOS, url)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
