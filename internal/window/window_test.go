package window

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedWithin(w Window, d time.Duration) bool {
	select {
	case <-w.Done():
		return true
	case <-time.After(d):
		return false
	}
}

func TestHeadlessClosesWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w, err := Headless{}.Open(ctx, "http://localhost:8501", Options{})
	require.NoError(t, err)
	assert.False(t, closedWithin(w, 20*time.Millisecond))
	cancel()
	assert.True(t, closedWithin(w, time.Second))
}

func TestCtxWindowCloseIsIdempotent(t *testing.T) {
	w := newCtxWindow(context.Background())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.True(t, closedWithin(w, time.Second))
}

func TestBrowserPresenterUsesOpener(t *testing.T) {
	var opened string
	p := BrowserPresenter{Opener: func(url string) error { opened = url; return nil }}
	w, err := p.Open(context.Background(), "http://localhost:8501", Options{})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8501", opened)
	require.NoError(t, w.Close())
	assert.True(t, closedWithin(w, time.Second))
}

func TestBrowserPresenterError(t *testing.T) {
	p := BrowserPresenter{Opener: func(string) error { return errors.New("no display") }}
	_, err := p.Open(context.Background(), "http://localhost:8501", Options{})
	assert.ErrorContains(t, err, "no display")
}

func TestBrowserCommand(t *testing.T) {
	assert.Equal(t, []string{"xdg-open", "http://x"}, browserCommand("linux", "http://x").Args)
	assert.Equal(t, []string{"open", "http://x"}, browserCommand("darwin", "http://x").Args)
	assert.Equal(t, []string{"rundll32", "url.dll,FileProtocolHandler", "http://x"}, browserCommand("windows", "http://x").Args)
}

func TestAppPresenterFallback(t *testing.T) {
	p := AppPresenter{}
	_, err := p.fallback(context.Background(), "http://x", Options{}, errors.New("boom"))
	assert.ErrorContains(t, err, "boom")

	p.Fallback = Headless{}
	w, err := p.fallback(context.Background(), "http://x", Options{}, errors.New("boom"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestNew(t *testing.T) {
	for mode, want := range map[string]any{ModeApp: AppPresenter{}, ModeBrowser: BrowserPresenter{}, ModeNone: Headless{}} {
		p, err := New(mode, "")
		require.NoError(t, err)
		assert.IsType(t, want, p)
	}
	_, err := New("fullscreen", "")
	assert.Error(t, err)
}
