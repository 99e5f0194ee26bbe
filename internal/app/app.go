package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/deskgate/internal/config"
	"github.com/loykin/deskgate/internal/history"
	"github.com/loykin/deskgate/internal/history/factory"
	"github.com/loykin/deskgate/internal/instance"
	"github.com/loykin/deskgate/internal/locate"
	"github.com/loykin/deskgate/internal/metrics"
	"github.com/loykin/deskgate/internal/process"
	"github.com/loykin/deskgate/internal/readiness"
	"github.com/loykin/deskgate/internal/window"
)

// Phases reported by State.
const (
	PhaseIdle      = "idle"
	PhaseLaunching = "launching"
	PhaseReady     = "ready"
	PhaseFailed    = "failed"
	PhaseQuitting  = "quitting"
)

// Options replaces the parts of an App that are normally derived from its
// configuration. Zero fields use the defaults.
type Options struct {
	Presenter window.Presenter
	Sink      history.Sink
	GOOS      string
	Exists    func(path string) bool
	NewGate   func(cfg *config.Config) *readiness.Gate
}

// App owns the server process and the window for one launcher run. The
// lifecycle handlers and Launch are meant to be called from a single
// goroutine; State, Quit and the exit watcher may run concurrently.
type App struct {
	cfg       *config.Config
	presenter window.Presenter
	sink      history.Sink
	goos      string
	exists    func(string) bool
	newGate   func(cfg *config.Config) *readiness.Gate

	mu       sync.Mutex
	launchID string
	phase    string
	proc     *process.Process
	win      window.Window
	stop     context.CancelFunc
	quit     bool

	activate chan struct{}
}

// New builds an App for cfg. The history sink, if any, is opened here and
// closed by Close.
func New(cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &App{
		cfg:       cfg,
		presenter: opts.Presenter,
		sink:      opts.Sink,
		goos:      opts.GOOS,
		exists:    opts.Exists,
		newGate:   opts.NewGate,
		phase:     PhaseIdle,
		activate:  make(chan struct{}, 1),
	}
	if a.goos == "" {
		a.goos = runtime.GOOS
	}
	if a.exists == nil {
		a.exists = locate.FileExists
	}
	if a.newGate == nil {
		a.newGate = func(c *config.Config) *readiness.Gate {
			return readiness.NewGate(c.URL, c.Readiness.Timeout, c.Readiness.Interval, c.Readiness.ProbeTimeout)
		}
	}
	if a.presenter == nil {
		p, err := window.New(cfg.Window.Mode, "")
		if err != nil {
			return nil, err
		}
		a.presenter = p
	}
	if a.sink == nil {
		a.sink = history.Nop{}
		if cfg.History.DSN != "" {
			s, err := factory.NewSinkFromDSN(cfg.History.DSN)
			if err != nil {
				return nil, fmt.Errorf("open history: %w", err)
			}
			a.sink = s
		}
	}
	return a, nil
}

// Close releases the history sink.
func (a *App) Close() error { return a.sink.Close() }

// Launch resolves and spawns the server, waits until it answers and opens
// the window. On failure the server is terminated and the error returned:
// *process.LaunchError when it could not start, *readiness.TimeoutError
// when it never became ready, or ctx.Err() when the launcher is shutting down.
func (a *App) Launch(ctx context.Context) error {
	id := uuid.NewString()
	a.mu.Lock()
	a.launchID = id
	a.phase = PhaseLaunching
	a.proc = nil
	a.win = nil
	a.mu.Unlock()
	a.record(history.EventLaunch, 0, "")

	cands := locate.Candidates(a.goos, a.cfg.Layout(), a.cfg.Name)
	path, err := locate.Resolve(cands, a.exists)
	if err != nil {
		return a.launchFailed(&process.LaunchError{Path: locate.ExecutableName(a.goos, a.cfg.Name), Err: err})
	}
	if a.cfg.Instance.CheckPort {
		if err := instance.CheckPortFree(a.cfg.URL, time.Second); err != nil {
			return a.launchFailed(err)
		}
	}
	slog.Info("Starting server", "name", a.cfg.Name, "path", path, "launch_id", id)
	proc, err := process.Start(a.cfg.ProcessSpec(path))
	if err != nil {
		return a.launchFailed(err)
	}
	a.mu.Lock()
	a.proc = proc
	a.mu.Unlock()
	go a.watch(id, proc)

	gate := a.newGate(a.cfg)
	gate.OnProbe = func(at readiness.Attempt) { metrics.IncProbe(at.Result.String()) }
	start := time.Now()
	err = gate.WaitUntilReady(ctx)
	metrics.ObserveReadinessWait(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, readiness.ErrTimeout) {
			slog.Error("Server did not become ready", "url", a.cfg.URL, "error", err)
			metrics.IncLaunch("timeout")
			a.record(history.EventTimeout, proc.Snapshot().PID, err.Error())
		} else {
			slog.Info("Launch canceled", "url", a.cfg.URL, "error", err)
			metrics.IncLaunch("canceled")
		}
		a.setPhase(PhaseFailed)
		a.terminate("readiness failed")
		return err
	}
	metrics.IncLaunch("ready")
	a.record(history.EventReady, proc.Snapshot().PID, "")

	w := a.cfg.Window
	win, err := a.presenter.Open(ctx, a.cfg.URL, window.Options{Title: w.Title, Width: w.Width, Height: w.Height})
	if err != nil {
		slog.Error("Could not open window", "url", a.cfg.URL, "error", err)
		a.setPhase(PhaseFailed)
		a.terminate("window failed")
		return err
	}
	a.mu.Lock()
	a.win = win
	a.phase = PhaseReady
	a.mu.Unlock()
	return nil
}

func (a *App) launchFailed(err error) error {
	slog.Error("Could not start server", "name", a.cfg.Name, "error", err)
	metrics.IncLaunch("launch_failed")
	a.record(history.EventLaunchFailed, 0, err.Error())
	a.setPhase(PhaseFailed)
	return err
}

// watch consumes the exit notification of one run. An exit never changes
// control flow: before readiness the gate keeps polling until its deadline.
func (a *App) watch(launchID string, p *process.Process) {
	ev := <-p.Exits()
	metrics.IncExit(ev.Expected)
	detail := "code=" + strconv.Itoa(ev.Code)
	if ev.Signal != "" {
		detail += " signal=" + ev.Signal
	}
	if ev.Expected {
		slog.Info("Server stopped", "name", ev.Name, "pid", ev.PID, "code", ev.Code, "signal", ev.Signal)
	} else {
		slog.Warn("Server exited unexpectedly", "name", ev.Name, "pid", ev.PID, "code", ev.Code, "signal", ev.Signal, "error", ev.Err)
	}
	a.recordFor(launchID, history.EventExit, ev.PID, detail)
}

// WindowClosed handles the window going away.
func (a *App) WindowClosed() {
	a.mu.Lock()
	a.win = nil
	a.mu.Unlock()
	a.terminate("window closed")
}

// BeforeQuit closes the window, if any, and terminates the server.
func (a *App) BeforeQuit() {
	a.mu.Lock()
	win := a.win
	a.win = nil
	if a.phase != PhaseFailed {
		a.phase = PhaseQuitting
	}
	a.mu.Unlock()
	if win != nil {
		_ = win.Close()
	}
	a.terminate("before quit")
}

// AllWindowsClosed reports whether the launcher should quit now that no
// window is left. Platforms that keep applications alive without windows
// leave the server state untouched and wait for Activate.
func (a *App) AllWindowsClosed() bool {
	if !a.cfg.QuitOnAllClosed {
		return false
	}
	a.terminate("all windows closed")
	return true
}

// Activate relaunches the server and window when no window is open.
func (a *App) Activate(ctx context.Context) error {
	a.mu.Lock()
	open := a.win != nil
	prev := a.proc
	a.mu.Unlock()
	if open {
		slog.Debug("Activate ignored, window already open")
		return nil
	}
	if prev != nil {
		prev.Terminate()
		if !prev.Wait(a.exitWait()) {
			slog.Warn("Previous server still running", "pid", prev.Snapshot().PID)
		}
	}
	slog.Info("Activating, relaunching server")
	return a.Launch(ctx)
}

// terminate signals the current server once per run. Every lifecycle
// trigger funnels through here.
func (a *App) terminate(reason string) bool {
	a.mu.Lock()
	p := a.proc
	a.mu.Unlock()
	if p == nil || !p.Terminate() {
		return false
	}
	metrics.IncTerminate()
	a.record(history.EventTerminate, p.Snapshot().PID, reason)
	return true
}

// exitWait bounds how long shutdown waits for the server after terminate:
// the kill escalation must fire before the launcher exits.
func (a *App) exitWait() time.Duration {
	g := a.cfg.Terminate.Grace
	if g <= 0 {
		g = process.DefaultGrace
	}
	return g + time.Second
}

func (a *App) setPhase(p string) {
	a.mu.Lock()
	a.phase = p
	a.mu.Unlock()
}

func (a *App) record(t history.EventType, pid int, detail string) {
	a.mu.Lock()
	id := a.launchID
	a.mu.Unlock()
	a.recordFor(id, t, pid, detail)
}

func (a *App) recordFor(launchID string, t history.EventType, pid int, detail string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	e := history.Event{
		Type:       t,
		OccurredAt: time.Now().UTC(),
		LaunchID:   launchID,
		Name:       a.cfg.Name,
		URL:        a.cfg.URL,
		PID:        pid,
		Detail:     detail,
	}
	if err := a.sink.Send(ctx, e); err != nil {
		slog.Warn("History write failed", "type", string(t), "error", err)
	}
}
