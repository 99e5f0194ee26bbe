package window

import (
	"context"
	"sync"
)

// Options describes the initial window.
type Options struct {
	Title  string
	Width  int
	Height int
}

// Window is an open presentation surface. Done is closed when the user
// closes it or Close is called.
type Window interface {
	Done() <-chan struct{}
	Close() error
}

// Presenter opens url in some kind of window.
type Presenter interface {
	Open(ctx context.Context, url string, o Options) (Window, error)
}

// ctxWindow is a window the launcher cannot observe directly; it counts as
// closed when ctx ends or Close is called.
type ctxWindow struct {
	done chan struct{}
	once sync.Once
}

func newCtxWindow(ctx context.Context) *ctxWindow {
	w := &ctxWindow{done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			_ = w.Close()
		case <-w.done:
		}
	}()
	return w
}

func (w *ctxWindow) Done() <-chan struct{} { return w.done }

func (w *ctxWindow) Close() error {
	w.once.Do(func() { close(w.done) })
	return nil
}

// Headless shows nothing; the "window" stays open until ctx ends.
type Headless struct{}

func (Headless) Open(ctx context.Context, _ string, _ Options) (Window, error) {
	return newCtxWindow(ctx), nil
}
