package window

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zserge/lorca"
)

// AppPresenter opens a chromeless Chrome/Chromium window. When no browser
// engine can be started it hands over to Fallback.
type AppPresenter struct {
	ProfileDir string // Chrome user-data dir; empty uses a temporary one
	Fallback   Presenter
}

func (p AppPresenter) Open(ctx context.Context, url string, o Options) (Window, error) {
	if lorca.LocateChrome() == "" {
		return p.fallback(ctx, url, o, fmt.Errorf("chrome not found"))
	}
	ui, err := lorca.New(url, p.ProfileDir, o.Width, o.Height, "--remote-allow-origins=*")
	if err != nil {
		return p.fallback(ctx, url, o, err)
	}
	if o.Title != "" {
		_ = ui.Eval(fmt.Sprintf("document.title = %q", o.Title))
	}
	slog.Info("Window opened", "url", url, "width", o.Width, "height", o.Height)
	return lorcaWindow{ui: ui}, nil
}

func (p AppPresenter) fallback(ctx context.Context, url string, o Options, cause error) (Window, error) {
	if p.Fallback == nil {
		return nil, fmt.Errorf("open app window: %w", cause)
	}
	slog.Warn("App window unavailable, falling back", "error", cause)
	return p.Fallback.Open(ctx, url, o)
}

type lorcaWindow struct{ ui lorca.UI }

func (w lorcaWindow) Done() <-chan struct{} { return w.ui.Done() }
func (w lorcaWindow) Close() error          { return w.ui.Close() }
