package process

import (
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/loykin/deskgate/internal/env"
	"github.com/loykin/deskgate/internal/logger"
)

// DefaultGrace is how long Terminate waits after the polite signal before
// force-killing the process tree.
const DefaultGrace = 5 * time.Second

// Spec describes the single server process the launcher supervises.
type Spec struct {
	Name    string            `json:"name"`
	Path    string            `json:"path"`     // absolute path of the executable; started without arguments
	WorkDir string            `json:"work_dir"` // optional working dir
	Env     []string          `json:"env"`      // KEY=VALUE pairs over the inherited environment, ${VAR} expanded
	Grace   time.Duration     `json:"grace"`    // 0 uses DefaultGrace, negative disables escalation
	Log     logger.FileConfig `json:"log"`      // when empty, stdout/stderr are inherited
}

func (s Spec) grace() time.Duration {
	if s.Grace == 0 {
		return DefaultGrace
	}
	return s.Grace
}

// BuildCommand constructs the *exec.Cmd for the spec. The executable is run
// directly, never through a shell, and receives no arguments.
func (s Spec) BuildCommand() *exec.Cmd {
	// #nosec G204 -- path comes from locate.Resolve, not user input
	cmd := exec.Command(s.Path)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	if len(s.Env) > 0 {
		cmd.Env = env.Compose(os.Environ(), s.Env)
	}
	cmd.Stdin = nil
	configureSysProcAttr(cmd)
	return cmd
}

// writers returns the stdout/stderr destinations for the child. Inherited
// streams are returned with nil closers.
func (s Spec) writers() (io.Writer, io.Writer, io.WriteCloser, io.WriteCloser) {
	if s.Log.Empty() {
		return os.Stdout, os.Stderr, nil, nil
	}
	if s.Log.Dir != "" {
		_ = os.MkdirAll(s.Log.Dir, 0o750)
	}
	outW, errW := s.Log.Writers(s.Name)
	var out io.Writer = os.Stdout
	var errOut io.Writer = os.Stderr
	if outW != nil {
		out = outW
	}
	if errW != nil {
		errOut = errW
	}
	return out, errOut, outW, errW
}
