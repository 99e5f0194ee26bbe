package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/deskgate/internal/history"
	"github.com/loykin/deskgate/internal/instance"
	"github.com/loykin/deskgate/internal/metrics"
	"github.com/loykin/deskgate/internal/server"
)

// Run is the whole launcher: it takes the instance lock, starts the admin
// API when configured, launches, and then serves lifecycle events until the
// window closes, Quit is called or ctx ends. The server is always terminated
// and awaited before Run returns. A shutdown requested through ctx or Quit
// is not an error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.mu.Lock()
	a.stop = cancel
	quit := a.quit
	a.mu.Unlock()
	if quit {
		return nil
	}

	if a.cfg.Instance.Lock {
		lock, err := instance.Acquire(a.cfg.LockPath())
		if err != nil {
			return err
		}
		defer func() { _ = lock.Release() }()
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	metrics.SetServerPID(a.serverPID)
	if addr := a.cfg.Admin.Listen; addr != "" {
		reader, _ := a.sink.(history.Reader)
		srv, err := server.NewServer(addr, server.NewRouter(adminController{a}, reader, ""))
		if err != nil {
			return err
		}
		defer server.Shutdown(srv, 2*time.Second)
	}

	defer a.shutdown()
	if err := a.Launch(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return a.loop(ctx)
}

func (a *App) loop(ctx context.Context) error {
	for {
		var closed <-chan struct{}
		a.mu.Lock()
		if a.win != nil {
			closed = a.win.Done()
		}
		a.mu.Unlock()

		select {
		case <-ctx.Done():
			slog.Info("Shutting down", "reason", context.Cause(ctx))
			return nil
		case <-closed:
			slog.Info("Window closed")
			a.WindowClosed()
			if a.AllWindowsClosed() {
				return nil
			}
			slog.Info("No windows open, waiting for activate or quit")
		case <-a.activate:
			if err := a.Activate(ctx); err != nil {
				if errors.Is(err, ctx.Err()) {
					return nil
				}
				return err
			}
		}
	}
}

// shutdown runs BeforeQuit and waits for the server to be gone.
func (a *App) shutdown() {
	a.BeforeQuit()
	a.mu.Lock()
	p := a.proc
	a.mu.Unlock()
	if p != nil && !p.Wait(a.exitWait()) {
		slog.Warn("Server still running at exit", "pid", p.Snapshot().PID)
	}
}

// Quit asks Run to shut down. It may be called from any goroutine.
func (a *App) Quit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.quit = true
	if a.stop != nil {
		a.stop()
	}
}

// RequestActivate queues an Activate for the Run loop.
func (a *App) RequestActivate() {
	select {
	case a.activate <- struct{}{}:
	default:
	}
}

// State reports the current launch for the admin API.
func (a *App) State() server.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := server.State{
		LaunchID:   a.launchID,
		Phase:      a.phase,
		URL:        a.cfg.URL,
		WindowOpen: a.win != nil,
	}
	if a.proc != nil {
		s := a.proc.Snapshot()
		st.Process = &s
		st.Children = a.proc.Descendants()
	}
	return st
}

// serverPID is the PID of the running server, or 0.
func (a *App) serverPID() int {
	a.mu.Lock()
	p := a.proc
	a.mu.Unlock()
	if p == nil {
		return 0
	}
	if s := p.Snapshot(); s.Running {
		return s.PID
	}
	return 0
}

type adminController struct{ a *App }

func (c adminController) State() server.State { return c.a.State() }
func (c adminController) Activate()           { c.a.RequestActivate() }
func (c adminController) Quit()               { c.a.Quit() }
