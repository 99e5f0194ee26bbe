package process

import (
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// Process owns one run of the supervised executable.
// A Process is started at most once; relaunching creates a new Process.
type Process struct {
	spec       Spec
	cmd        *exec.Cmd
	status     Status
	mu         sync.Mutex
	terminated bool // Terminate already signalled this run
	outCloser  io.WriteCloser
	errCloser  io.WriteCloser
	done       chan struct{}  // closed by monitor when cmd.Wait returns
	exits      chan ExitEvent // buffered; receives exactly one event per run
	killTimer  *time.Timer
}

func New(spec Spec) *Process {
	return &Process{
		spec:  spec,
		done:  make(chan struct{}),
		exits: make(chan ExitEvent, 1),
	}
}

// Start is New followed by (*Process).Start.
func Start(spec Spec) (*Process, error) {
	p := New(spec)
	if err := p.Start(); err != nil {
		return nil, err
	}
	return p, nil
}

// Start spawns the executable with inherited (or file-backed) stdio and
// begins watching for its exit. Failures are returned as *LaunchError.
func (p *Process) Start() error {
	p.mu.Lock()
	if p.cmd != nil {
		p.mu.Unlock()
		return &LaunchError{Path: p.spec.Path, Err: errors.New("already started")}
	}
	spec := p.spec
	p.mu.Unlock()

	if spec.Path == "" {
		return &LaunchError{Path: spec.Path, Err: errors.New("empty executable path")}
	}
	cmd := spec.BuildCommand()
	out, errOut, outCloser, errCloser := spec.writers()
	cmd.Stdout = out
	cmd.Stderr = errOut
	if err := cmd.Start(); err != nil {
		closeQuietly(outCloser)
		closeQuietly(errCloser)
		return &LaunchError{Path: spec.Path, Err: err}
	}

	p.mu.Lock()
	p.cmd = cmd
	p.outCloser, p.errCloser = outCloser, errCloser
	p.status = Status{
		Name:      spec.Name,
		Path:      spec.Path,
		Running:   true,
		PID:       cmd.Process.Pid,
		StartedAt: time.Now(),
	}
	p.mu.Unlock()

	slog.Info("Process started", "name", spec.Name, "path", spec.Path, "pid", cmd.Process.Pid)
	go p.monitor(cmd)
	return nil
}

// monitor is the only caller of cmd.Wait.
func (p *Process) monitor(cmd *exec.Cmd) {
	err := cmd.Wait()
	code, sig := exitDetails(cmd.ProcessState)

	p.mu.Lock()
	p.status.Running = false
	p.status.StoppedAt = time.Now()
	p.status.ExitCode = code
	p.status.Signal = sig
	p.status.ExitErr = err
	if p.killTimer != nil {
		p.killTimer.Stop()
		p.killTimer = nil
	}
	ev := ExitEvent{
		Name:     p.status.Name,
		PID:      p.status.PID,
		Code:     code,
		Signal:   sig,
		Err:      err,
		Expected: p.terminated,
		At:       p.status.StoppedAt,
	}
	p.mu.Unlock()

	p.closeWriters()
	close(p.done)
	p.exits <- ev
}

// Exits delivers one ExitEvent when the process exits. It is independent of
// any readiness wait; consumers decide what an exit means.
func (p *Process) Exits() <-chan ExitEvent { return p.exits }

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// Alive reports whether the process was started and has not exited.
func (p *Process) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil && p.status.Running
}

// Snapshot returns a copy of the current status.
func (p *Process) Snapshot() Status {
	p.mu.Lock()
	s := p.status
	s.Terminated = p.terminated
	p.mu.Unlock()
	return s
}

// Terminate asks the process tree to exit and escalates to a kill after the
// configured grace period. It signals at most once per run and reports whether
// it did; calling it on a never-started, exited or already terminated
// process is a no-op.
func (p *Process) Terminate() bool {
	p.mu.Lock()
	if p.cmd == nil || p.cmd.Process == nil || !p.status.Running || p.terminated {
		p.mu.Unlock()
		return false
	}
	p.terminated = true
	pid := p.cmd.Process.Pid
	name := p.spec.Name
	grace := p.spec.grace()
	p.mu.Unlock()

	slog.Info("Terminating process", "name", name, "pid", pid)
	if err := terminateTree(pid); err != nil {
		slog.Debug("Terminate signal failed", "name", name, "pid", pid, "error", err)
	}
	if grace > 0 {
		t := time.AfterFunc(grace, func() {
			if !p.Alive() {
				return
			}
			slog.Warn("Process ignored terminate, killing", "name", name, "pid", pid, "grace", grace)
			if err := killTree(pid); err != nil {
				slog.Debug("Kill failed", "name", name, "pid", pid, "error", err)
			}
		})
		p.mu.Lock()
		if p.status.Running {
			p.killTimer = t
		} else {
			t.Stop()
		}
		p.mu.Unlock()
	}
	return true
}

// Wait blocks until the process exits or timeout elapses and reports
// whether it exited. A process that was never started counts as exited.
func (p *Process) Wait(timeout time.Duration) bool {
	p.mu.Lock()
	started := p.cmd != nil
	p.mu.Unlock()
	if !started {
		return true
	}
	select {
	case <-p.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (p *Process) closeWriters() {
	p.mu.Lock()
	closeQuietly(p.outCloser)
	closeQuietly(p.errCloser)
	p.outCloser, p.errCloser = nil, nil
	p.mu.Unlock()
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
