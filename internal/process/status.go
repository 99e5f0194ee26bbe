package process

import (
	"os"
	"syscall"
	"time"
)

// Status is a point-in-time copy of the managed process state.
type Status struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Running    bool      `json:"running"`
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
	StoppedAt  time.Time `json:"stopped_at"`
	ExitCode   int       `json:"exit_code"`
	Signal     string    `json:"signal,omitempty"`
	ExitErr    error     `json:"-"`
	Terminated bool      `json:"terminated"` // Terminate has signalled this run
}

// ExitEvent is delivered once per run when the process exits.
// Expected is true when the exit followed a Terminate call.
type ExitEvent struct {
	Name     string
	PID      int
	Code     int
	Signal   string
	Err      error
	Expected bool
	At       time.Time
}

// LaunchError reports that the executable could not be found or started.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return "launch " + e.Path + ": " + e.Err.Error()
}

func (e *LaunchError) Unwrap() error { return e.Err }

// exitDetails extracts exit code and terminating signal from a finished process.
func exitDetails(state *os.ProcessState) (int, string) {
	if state == nil {
		return -1, ""
	}
	sig := ""
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		sig = ws.Signal().String()
	}
	return state.ExitCode(), sig
}
