package window

import "fmt"

// Modes accepted by New.
const (
	ModeApp     = "app"
	ModeBrowser = "browser"
	ModeNone    = "none"
)

// New returns the presenter for mode. App windows fall back to the browser.
func New(mode, profileDir string) (Presenter, error) {
	switch mode {
	case ModeApp, "":
		return AppPresenter{ProfileDir: profileDir, Fallback: BrowserPresenter{}}, nil
	case ModeBrowser:
		return BrowserPresenter{}, nil
	case ModeNone:
		return Headless{}, nil
	default:
		return nil, fmt.Errorf("unknown window mode %q", mode)
	}
}
